// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
)

// RetryBackoff controls the base duration for exponential backoff between
// attempts. Tests override this to avoid real sleeps.
var RetryBackoff = time.Second

// Retrying bounds every call with a timeout and retries transient failures.
type Retrying struct {
	next       CompletionService
	maxRetries int
	timeout    time.Duration
	log        zerolog.Logger
}

var _ CompletionService = (*Retrying)(nil)
var _ JSONCompleter = (*Retrying)(nil)

// WithRetry wraps svc so each attempt runs under timeout (0 disables it) and
// transient errors are retried up to maxRetries times.
func WithRetry(svc CompletionService, maxRetries int, timeout time.Duration, log zerolog.Logger) *Retrying {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Retrying{next: svc, maxRetries: maxRetries, timeout: timeout, log: log}
}

// Model returns the wrapped model identifier.
func (r *Retrying) Model() string { return r.next.Model() }

// Complete calls the wrapped service with retry.
func (r *Retrying) Complete(ctx context.Context, prompt string) (string, error) {
	return r.do(ctx, r.next.Complete, prompt)
}

// CompleteJSON calls the wrapped service's structured path with retry, or
// returns ErrStructuredUnsupported.
func (r *Retrying) CompleteJSON(ctx context.Context, prompt string) (string, error) {
	jc, ok := r.next.(JSONCompleter)
	if !ok {
		return "", ErrStructuredUnsupported
	}
	return r.do(ctx, jc.CompleteJSON, prompt)
}

func (r *Retrying) do(ctx context.Context, call func(context.Context, string) (string, error), prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * RetryBackoff
			r.log.Debug().Err(lastErr).Int("attempt", attempt).Dur("backoff", backoff).Msg("retrying completion")
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		out, err := r.attempt(ctx, call, prompt)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil || !IsTransient(err) {
			return "", err
		}
	}
	return "", fmt.Errorf("after %d retries: %w", r.maxRetries, lastErr)
}

func (r *Retrying) attempt(ctx context.Context, call func(context.Context, string) (string, error), prompt string) (string, error) {
	if r.timeout <= 0 {
		return call(ctx, prompt)
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return call(ctx, prompt)
}
