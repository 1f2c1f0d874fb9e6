// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"time"

	"github.com/pdiddy/survey-engine/internal/observability"
)

// Instrumented records request counts, failures and latency for one
// operation (e.g. "extract_params", "table").
type Instrumented struct {
	next      CompletionService
	metrics   *observability.Metrics
	operation string
}

var _ CompletionService = (*Instrumented)(nil)
var _ JSONCompleter = (*Instrumented)(nil)

// Instrument wraps svc with metrics under the given operation label.
func Instrument(svc CompletionService, metrics *observability.Metrics, operation string) *Instrumented {
	return &Instrumented{next: svc, metrics: metrics, operation: operation}
}

// Model returns the wrapped model identifier.
func (i *Instrumented) Model() string { return i.next.Model() }

// Complete calls the wrapped service and records the outcome.
func (i *Instrumented) Complete(ctx context.Context, prompt string) (string, error) {
	return i.observe(func() (string, error) { return i.next.Complete(ctx, prompt) })
}

// CompleteJSON calls the wrapped structured path and records the outcome.
func (i *Instrumented) CompleteJSON(ctx context.Context, prompt string) (string, error) {
	jc, ok := i.next.(JSONCompleter)
	if !ok {
		return "", ErrStructuredUnsupported
	}
	return i.observe(func() (string, error) { return jc.CompleteJSON(ctx, prompt) })
}

func (i *Instrumented) observe(call func() (string, error)) (string, error) {
	start := time.Now()
	out, err := call()
	if err != nil {
		i.metrics.RecordLLMRequestFailed(i.operation, i.next.Model(), errorType(err))
		return "", err
	}
	i.metrics.RecordLLMRequest(i.operation, i.next.Model(), time.Since(start).Seconds())
	return out, nil
}
