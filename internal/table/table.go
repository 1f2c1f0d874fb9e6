// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package table builds survey tables: one model completion per requested
// column, run over a paper's body text.
package table

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/survey-engine/internal/llm"
	"github.com/pdiddy/survey-engine/internal/observability"
	"github.com/pdiddy/survey-engine/internal/prompt"
)

// Result holds the extracted cells of one paper. Values has an entry for
// every column that succeeded; Missing lists the failed ones in column order.
type Result struct {
	Values  map[string]string
	Missing []string
}

// Ordered returns the values for columns in the given order, with "" for
// columns that have no value.
func (r Result) Ordered(columns []string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = r.Values[c]
	}
	return out
}

// Builder runs column extraction against a completion service.
type Builder struct {
	completion llm.CompletionService
	catalog    *prompt.Catalog
	metrics    *observability.Metrics
	log        zerolog.Logger
}

// NewBuilder returns a Builder. metrics may be nil.
func NewBuilder(svc llm.CompletionService, catalog *prompt.Catalog, metrics *observability.Metrics, log zerolog.Logger) *Builder {
	return &Builder{completion: svc, catalog: catalog, metrics: metrics, log: log}
}

// Prepare registers a template for every column. It must be called before
// Build; Build on an unregistered column panics.
func (b *Builder) Prepare(columns []string) error {
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if strings.TrimSpace(c) == "" {
			return fmt.Errorf("column name is empty")
		}
		if seen[c] {
			return fmt.Errorf("column %q requested twice", c)
		}
		if prompt.IsBuiltin(c) {
			return fmt.Errorf("column %q clashes with a built-in prompt", c)
		}
		seen[c] = true
		if err := b.catalog.RegisterColumn(c); err != nil {
			return fmt.Errorf("registering column %q: %w", c, err)
		}
	}
	return nil
}

// Build extracts every column from text, one completion per column, in
// column order. The text is cut at the bibliography first. A failed column
// is recorded in Missing and the remaining columns still run. Once ctx is
// done no further completions are issued.
func (b *Builder) Build(ctx context.Context, text string, columns []string) Result {
	body := TruncateAtReferences(text)
	res := Result{Values: make(map[string]string, len(columns))}

	for _, col := range columns {
		if ctx.Err() != nil {
			res.Missing = append(res.Missing, col)
			continue
		}
		value, err := b.column(ctx, col, body)
		if err != nil {
			b.log.Warn().Err(err).Str("column", col).Msg("column extraction failed")
			b.metrics.RecordColumn(observability.OutcomeFailure)
			res.Missing = append(res.Missing, col)
			continue
		}
		b.metrics.RecordColumn(observability.OutcomeSuccess)
		res.Values[col] = value
	}
	return res
}

func (b *Builder) column(ctx context.Context, col, body string) (string, error) {
	p, err := b.catalog.Render(col, prompt.ColumnData{
		Column:      col,
		Instruction: prompt.ColumnInstruction(col),
		Text:        body,
	})
	if err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}
	out, err := b.completion.Complete(ctx, p)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", llm.ErrEmptyResponse
	}
	return out, nil
}

// TruncateAtReferences returns text up to, not including, the first line
// that reads "references" once trimmed and case-folded. Text without such a
// line is returned whole.
func TruncateAtReferences(text string) string {
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), len(text)+1)

	var b strings.Builder
	for sc.Scan() {
		line := sc.Text()
		if strings.EqualFold(strings.TrimSpace(line), "references") {
			return b.String()
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return text
}
