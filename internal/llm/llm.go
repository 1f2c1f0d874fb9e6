// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm provides the text-completion service consumed by the parameter
// extractor and the survey table builder. Two variants exist: a remote hosted
// model reached through an OpenAI-compatible chat API, and a local model
// served by Ollama. The variant is selected once by New; callers hold the
// resulting CompletionService and never re-dispatch on the model name.
package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pdiddy/survey-engine/pkg/types"
)

// CompletionService turns a fully rendered prompt into free text. The output
// carries no structural guarantee.
type CompletionService interface {
	Complete(ctx context.Context, prompt string) (string, error)

	// Model returns the model identifier, used for logging and metrics.
	Model() string
}

// JSONCompleter is implemented by services that can constrain their output
// to a single JSON object.
type JSONCompleter interface {
	CompleteJSON(ctx context.Context, prompt string) (string, error)
}

// New builds the completion service selected by cfg.Backend. The remote
// variant fails with ErrMissingAPIKey when no key is configured.
func New(cfg types.LLMConfig, client *http.Client) (CompletionService, error) {
	switch cfg.Backend {
	case types.BackendRemote, "":
		return NewRemoteModel(cfg, client)
	case types.BackendLocal:
		return NewLocalModel(cfg, client), nil
	default:
		return nil, fmt.Errorf("unknown llm backend %q", cfg.Backend)
	}
}
