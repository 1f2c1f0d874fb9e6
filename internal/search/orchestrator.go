// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search turns structured query parameters into a batch of paper
// records: one provider search, a client-side year filter, normalization,
// and a per-paper fetch and survey table pipeline. The batch export is
// written here and nowhere else.
package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"

	"github.com/pdiddy/survey-engine/internal/acquire"
	"github.com/pdiddy/survey-engine/internal/export"
	"github.com/pdiddy/survey-engine/internal/history"
	"github.com/pdiddy/survey-engine/internal/observability"
	"github.com/pdiddy/survey-engine/internal/table"
	"github.com/pdiddy/survey-engine/pkg/types"
)

var (
	// ErrEmptyQuery is returned when the parameters hold no searchable term.
	ErrEmptyQuery = errors.New("query is empty: provide keywords, authors, institutions or conferences")

	// ErrCitingUnsupported is returned when a citing-papers run is requested
	// from a provider that cannot list citations.
	ErrCitingUnsupported = errors.New("provider cannot list citing papers")
)

// Fetcher downloads a paper's full text into dir and returns the local path.
type Fetcher interface {
	Fetch(ctx context.Context, pdfURL, dir, title string) (string, error)
}

// TextExtractor reads plain text from a downloaded file.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// TableBuilder fills survey table columns from paper text.
type TableBuilder interface {
	Prepare(columns []string) error
	Build(ctx context.Context, text string, columns []string) table.Result
}

// Recorder persists completed batches.
type Recorder interface {
	Record(ctx context.Context, b history.Batch) error
}

// Options configures an Orchestrator. Provider and ResultsDir are required.
// A nil Fetcher disables downloads; a nil Table disables column extraction.
type Options struct {
	Provider    Provider
	Fetcher     Fetcher
	Text        TextExtractor
	Table       TableBuilder
	Recorder    Recorder
	ResultsDir  string
	Concurrency int
	Metrics     *observability.Metrics
	Logger      zerolog.Logger

	// Progress receives one line per paper (fetched, failed, skipped) and a
	// batch summary. Nil discards.
	Progress io.Writer

	// Now is the clock used to name runs. Nil uses time.Now.
	Now func() time.Time
}

// Orchestrator runs search batches. It holds no per-batch state, so one
// Orchestrator may run several batches at once.
type Orchestrator struct {
	opts     Options
	progress *lockedWriter
}

// New returns an Orchestrator.
func New(opts Options) *Orchestrator {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Progress == nil {
		opts.Progress = io.Discard
	}
	return &Orchestrator{opts: opts, progress: &lockedWriter{w: opts.Progress}}
}

// Request describes one batch.
type Request struct {
	// Query is the researcher's original request, kept for the history.
	Query string

	Params     types.QueryParameters
	MaxResults int

	// Columns are the survey table columns, in display order.
	Columns []string

	// CitingPaperID, when set, lists papers citing that paper instead of
	// running a keyword search. Params still supply the year filter.
	CitingPaperID string

	// Refine narrows the normalized records before any download, so the
	// export and the history hold only the papers it keeps.
	Refine Filter
}

// Paper is one record of a batch plus the gaps recorded while enriching it.
type Paper struct {
	Record types.PaperRecord

	// FetchErr is set when the full text could not be obtained; the record
	// then carries no survey table values.
	FetchErr error

	// Skipped is set when downloads are disabled.
	Skipped bool

	// MissingColumns lists survey table columns whose extraction failed.
	MissingColumns []string
}

// Batch is the outcome of one Run.
type Batch struct {
	RunID      string
	Provider   string
	Query      string
	Columns    []string
	Papers     []Paper
	Filtered   int
	PapersDir  string
	ExportPath string

	// SearchErr is set when the provider failed; Papers is then empty.
	SearchErr error
}

// Records returns the batch's paper records in rank order.
func (b Batch) Records() []types.PaperRecord {
	out := make([]types.PaperRecord, len(b.Papers))
	for i, p := range b.Papers {
		out[i] = p.Record
	}
	return out
}

// Gaps counts papers with a failed fetch and papers with missing columns.
func (b Batch) Gaps() (fetchFailures, incomplete int) {
	for _, p := range b.Papers {
		if p.FetchErr != nil {
			fetchFailures++
		}
		if len(p.MissingColumns) > 0 {
			incomplete++
		}
	}
	return fetchFailures, incomplete
}

// Run executes one batch. Provider failures and per-paper failures are
// recorded in the returned Batch rather than returned as errors. Run returns
// an error only when the request itself is unusable or the export cannot be
// written; in the latter case the Batch is still returned.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Batch, error) {
	provider := o.opts.Provider
	citing, _ := provider.(CitationSource)
	switch {
	case req.CitingPaperID != "" && citing == nil:
		return Batch{}, fmt.Errorf("%w: %s", ErrCitingUnsupported, provider.Name())
	case req.CitingPaperID == "" && req.Params.IsEmpty():
		return Batch{}, ErrEmptyQuery
	}
	if len(req.Columns) > 0 && o.opts.Table != nil {
		if err := o.opts.Table.Prepare(req.Columns); err != nil {
			return Batch{}, fmt.Errorf("preparing survey table: %w", err)
		}
	}
	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = types.DefaultMaxResults
	}

	started := o.opts.Now()
	layout := acquire.Layout{Base: o.opts.ResultsDir, RunID: acquire.NewRunID(started)}
	if err := layout.Prepare(); err != nil {
		return Batch{}, err
	}

	log := observability.WithBatch(o.opts.Logger, layout.RunID, provider.Name())
	batch := Batch{
		RunID:      layout.RunID,
		Provider:   provider.Name(),
		Columns:    req.Columns,
		PapersDir:  layout.PapersDir(),
		ExportPath: layout.ExportPath(),
	}

	var hits []types.Hit
	var err error
	if req.CitingPaperID != "" {
		batch.Query = "citing:" + req.CitingPaperID
		hits, err = citing.Citing(ctx, req.CitingPaperID, maxResults)
	} else {
		batch.Query = provider.BuildQuery(req.Params)
		hits, err = provider.Search(ctx, batch.Query, maxResults)
	}
	if err != nil {
		log.Warn().Err(err).Str("query", batch.Query).Msg("provider search failed")
		o.opts.Metrics.RecordSearch(provider.Name(), observability.OutcomeFailure, 0, 0)
		fmt.Fprintf(o.progress, "warning: %s search failed: %v\n", provider.Name(), err)
		batch.SearchErr = err
		hits = nil
	}

	kept, filtered := FilterYears(hits, req.Params)
	if len(kept) > maxResults {
		kept = kept[:maxResults]
	}
	batch.Filtered = filtered
	if err == nil {
		o.opts.Metrics.RecordSearch(provider.Name(), observability.OutcomeSuccess, len(kept), filtered)
	}
	log.Info().Int("hits", len(hits)).Int("kept", len(kept)).Int("filtered", filtered).Msg("search complete")

	batch.Papers = make([]Paper, len(kept))
	for i, h := range kept {
		batch.Papers[i] = Paper{Record: Normalize(h, req.Params, provider.Name())}
	}
	if !req.Refine.IsZero() {
		before := len(batch.Papers)
		batch = RefineBatch(batch, req.Refine)
		log.Info().Int("kept", len(batch.Papers)).Int("refined", before-len(batch.Papers)).Msg("refined batch")
	}
	o.enrichAll(ctx, log, batch.Papers, layout.PapersDir(), req.Columns)

	fetchFailures, incomplete := batch.Gaps()
	fmt.Fprintf(o.progress, "\npapers: %d, filtered by year: %d, fetch failures: %d, incomplete tables: %d\n",
		len(batch.Papers), filtered, fetchFailures, incomplete)

	if err := export.WriteCSVFile(batch.ExportPath, batch.Records(), req.Columns); err != nil {
		return batch, fmt.Errorf("writing batch export: %w", err)
	}

	if o.opts.Recorder != nil {
		rec := history.Batch{
			RunID:      batch.RunID,
			Query:      req.Query,
			Provider:   batch.Provider,
			Params:     req.Params,
			Columns:    req.Columns,
			StartedAt:  started,
			ExportPath: batch.ExportPath,
			Papers:     batch.Records(),
		}
		if err := o.opts.Recorder.Record(context.WithoutCancel(ctx), rec); err != nil {
			log.Warn().Err(err).Msg("recording batch history failed")
		}
	}
	return batch, nil
}

// enrichAll runs the per-paper pipeline on a bounded pool. Each paper owns
// its slot in papers, so results stay in rank order.
func (o *Orchestrator) enrichAll(ctx context.Context, log zerolog.Logger, papers []Paper, dir string, columns []string) {
	if len(papers) == 0 {
		return
	}
	pool, err := ants.NewPool(o.opts.Concurrency, ants.WithPanicHandler(func(p any) {
		log.Error().Interface("panic", p).Msg("paper pipeline panicked")
	}))
	if err != nil {
		log.Warn().Err(err).Msg("worker pool unavailable, processing sequentially")
		for i := range papers {
			o.enrich(ctx, log, &papers[i], dir, columns)
		}
		return
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i := range papers {
		wg.Add(1)
		p := &papers[i]
		if err := pool.Submit(func() {
			defer wg.Done()
			o.enrich(ctx, log, p, dir, columns)
		}); err != nil {
			wg.Done()
			p.FetchErr = fmt.Errorf("scheduling: %w", err)
		}
	}
	wg.Wait()
}

// enrich fetches one paper's full text and builds its survey table row.
func (o *Orchestrator) enrich(ctx context.Context, log zerolog.Logger, p *Paper, dir string, columns []string) {
	title := p.Record.Title
	if o.opts.Fetcher == nil {
		p.Skipped = true
		o.opts.Metrics.RecordFetch(observability.OutcomeSkipped)
		fmt.Fprintf(o.progress, "skipped %s\n", title)
		return
	}
	if err := ctx.Err(); err != nil {
		p.FetchErr = err
		return
	}

	path, err := o.opts.Fetcher.Fetch(ctx, p.Record.PDFURL, dir, title)
	if err != nil {
		p.FetchErr = err
		o.opts.Metrics.RecordFetch(observability.OutcomeFailure)
		log.Warn().Err(err).Str("paper", title).Msg("full-text fetch failed")
		fmt.Fprintf(o.progress, "failed  %s: %v\n", title, err)
		return
	}
	p.Record.PDFPath = path
	o.opts.Metrics.RecordFetch(observability.OutcomeSuccess)
	fmt.Fprintf(o.progress, "fetched %s\n", title)

	if len(columns) == 0 || o.opts.Table == nil || o.opts.Text == nil {
		return
	}
	text, err := o.opts.Text.Extract(ctx, path)
	if err != nil {
		p.FetchErr = fmt.Errorf("extracting text: %w", err)
		log.Warn().Err(err).Str("paper", title).Msg("text extraction failed")
		fmt.Fprintf(o.progress, "failed  %s: %v\n", title, p.FetchErr)
		return
	}
	res := o.opts.Table.Build(ctx, text, columns)
	p.Record.ExtraColumns = res.Values
	p.MissingColumns = res.Missing
	if len(res.Missing) > 0 {
		fmt.Fprintf(o.progress, "partial %s: missing %s\n", title, strings.Join(res.Missing, ", "))
	}
}

// FilterYears keeps hits whose year lies within the requested range. Without
// a range every hit is kept. With a range, hits of unknown year are dropped.
func FilterYears(hits []types.Hit, params types.QueryParameters) (kept []types.Hit, filtered int) {
	lo, hi, ok := params.YearBounds()
	if !ok {
		return hits, 0
	}
	kept = make([]types.Hit, 0, len(hits))
	for _, h := range hits {
		if h.Year == types.UnknownYear || h.Year < lo || h.Year > hi {
			filtered++
			continue
		}
		kept = append(kept, h)
	}
	return kept, filtered
}

// Normalize maps a provider hit into a PaperRecord. Every field the provider
// did not supply is set to types.Unknown. URL points at the full text when
// one is known. Keywords summarize the requested keywords, falling back to
// the provider's subject terms.
func Normalize(h types.Hit, params types.QueryParameters, provider string) types.PaperRecord {
	pdfURL := acquire.ResolvePDFURL(h.PDFURL, h.ID, h.DOI)
	rec := types.PaperRecord{
		Title:    orUnknown(collapseSpace(h.Title)),
		Year:     h.Year,
		Author:   orUnknown(joinNonEmpty(h.Authors)),
		URL:      orUnknown(firstNonEmpty(pdfURL, h.URL)),
		Abstract: orUnknown(collapseSpace(h.Abstract)),
		Keywords: types.Unknown,
		Source:   orUnknown(firstNonEmpty(h.Source, provider)),
		PDFURL:   pdfURL,
	}
	if h.Year < 0 {
		rec.Year = types.UnknownYear
	}
	switch {
	case len(params.Keywords) > 0:
		rec.Keywords = "keywords: " + strings.Join(params.Keywords, ", ")
	case len(h.Keywords) > 0:
		rec.Keywords = "keywords: " + strings.Join(h.Keywords, ", ")
	}
	return rec
}

func orUnknown(s string) string {
	if s == "" {
		return types.Unknown
	}
	return s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func joinNonEmpty(names []string) string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return strings.Join(out, ", ")
}

// lockedWriter serializes progress lines written from pool workers.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
