// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package params

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/survey-engine/internal/llm"
	"github.com/pdiddy/survey-engine/internal/prompt"
	"github.com/pdiddy/survey-engine/pkg/types"
)

// Extractor asks the completion service to classify a researcher's request
// and parses the answer.
type Extractor struct {
	completion llm.CompletionService
	catalog    *prompt.Catalog
	log        zerolog.Logger

	// now is replaceable in tests.
	now func() time.Time
}

// Result is the outcome of one extraction.
type Result struct {
	Params types.QueryParameters
	// Raw is the model output the parameters were parsed from.
	Raw string
	// Structured reports whether the JSON path produced the parameters.
	Structured bool
}

// NewExtractor returns an Extractor using svc for completions and catalog
// for the extraction prompts.
func NewExtractor(svc llm.CompletionService, catalog *prompt.Catalog, log zerolog.Logger) *Extractor {
	return &Extractor{completion: svc, catalog: catalog, log: log, now: time.Now}
}

// Extract classifies query. When the service can produce JSON, the structured
// prompt is tried first; any failure there falls back to the free-text
// prompt and the line-scanning parser. A failed free-text completion is
// returned to the caller.
func (e *Extractor) Extract(ctx context.Context, query string) (Result, error) {
	data := prompt.KeywordsData{Query: query, CurrentYear: e.now().Year()}

	if jc, ok := e.completion.(llm.JSONCompleter); ok {
		res, err := e.extractStructured(ctx, jc, data)
		if err == nil {
			return res, nil
		}
		e.log.Debug().Err(err).Msg("structured extraction unavailable, using line scan")
	}

	text, err := e.catalog.Render(prompt.KeywordsExtraction, data)
	if err != nil {
		return Result{}, err
	}
	out, err := e.completion.Complete(ctx, text)
	if err != nil {
		return Result{}, fmt.Errorf("extracting parameters: %w", err)
	}
	return Result{Params: Parse(out), Raw: out}, nil
}

func (e *Extractor) extractStructured(ctx context.Context, jc llm.JSONCompleter, data prompt.KeywordsData) (Result, error) {
	text, err := e.catalog.Render(prompt.KeywordsExtractionJSON, data)
	if err != nil {
		return Result{}, err
	}
	out, err := jc.CompleteJSON(ctx, text)
	if err != nil {
		return Result{}, err
	}
	p, err := ParseJSON(out)
	if err != nil {
		return Result{}, err
	}
	return Result{Params: p, Raw: out, Structured: true}, nil
}
