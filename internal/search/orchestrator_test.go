// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/survey-engine/internal/acquire"
	"github.com/pdiddy/survey-engine/internal/export"
	"github.com/pdiddy/survey-engine/internal/history"
	"github.com/pdiddy/survey-engine/internal/observability"
	"github.com/pdiddy/survey-engine/internal/table"
	"github.com/pdiddy/survey-engine/pkg/types"
)

// --- fakes ---

type fakeProvider struct {
	hits      []types.Hit
	err       error
	gotQuery  string
	gotMax    int
	citingFor string
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) BuildQuery(p types.QueryParameters) string { return ArxivGrammar.Build(p) }

func (f *fakeProvider) Search(_ context.Context, query string, max int) ([]types.Hit, error) {
	f.gotQuery, f.gotMax = query, max
	return f.hits, f.err
}

type citingProvider struct{ fakeProvider }

func (c *citingProvider) Citing(_ context.Context, id string, max int) ([]types.Hit, error) {
	c.citingFor, c.gotMax = id, max
	return c.hits, c.err
}

// fakeFetcher writes the title as file content, failing for titles in fail.
type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	fail  map[string]bool
}

func (f *fakeFetcher) Fetch(_ context.Context, pdfURL, dir, title string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.fail[title] || pdfURL == "" {
		return "", acquire.ErrNoSource
	}
	path := filepath.Join(dir, acquire.FileName(title))
	return path, os.WriteFile(path, []byte(title), 0o644)
}

type fileText struct{}

func (fileText) Extract(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	return string(data), err
}

// fakeTable answers "<column> of <text>" and fails columns in fail.
type fakeTable struct {
	prepared []string
	fail     map[string]bool
}

func (f *fakeTable) Prepare(columns []string) error {
	f.prepared = columns
	return nil
}

func (f *fakeTable) Build(_ context.Context, text string, columns []string) table.Result {
	res := table.Result{Values: map[string]string{}}
	for _, c := range columns {
		if f.fail[c] {
			res.Missing = append(res.Missing, c)
			continue
		}
		res.Values[c] = c + " of " + text
	}
	return res
}

type memRecorder struct{ batches []history.Batch }

func (m *memRecorder) Record(_ context.Context, b history.Batch) error {
	m.batches = append(m.batches, b)
	return nil
}

func threeHits() []types.Hit {
	return []types.Hit{
		{ID: "2001.00001", Title: "Old Paper", Year: 2015, Authors: []string{"A"}, PDFURL: "http://x/old.pdf"},
		{ID: "2001.00002", Title: "Good Paper", Year: 2020, Authors: []string{"Ada Lovelace", "Alan Turing"}, PDFURL: "http://x/good.pdf", Abstract: "abs"},
		{ID: "2001.00003", Title: "Unfetchable", Year: 2021, PDFURL: "http://x/bad.pdf"},
		{ID: "", Title: "Undated", PDFURL: "http://x/undated.pdf"},
	}
}

func newTestOrchestrator(t *testing.T, p Provider, f Fetcher, tb TableBuilder, rec Recorder, reg prometheus.Registerer) (*Orchestrator, *bytes.Buffer) {
	t.Helper()
	var progress bytes.Buffer
	var metrics *observability.Metrics
	if reg != nil {
		metrics = observability.NewMetrics("test", reg)
	}
	o := New(Options{
		Provider:    p,
		Fetcher:     f,
		Text:        fileText{},
		Table:       tb,
		Recorder:    rec,
		ResultsDir:  t.TempDir(),
		Concurrency: 3,
		Metrics:     metrics,
		Logger:      zerolog.Nop(),
		Progress:    &progress,
		Now:         func() time.Time { return time.Date(2024, 3, 7, 9, 5, 0, 0, time.UTC) },
	})
	return o, &progress
}

// --- Run ---

func TestRunFullPipeline(t *testing.T) {
	provider := &fakeProvider{hits: threeHits()}
	fetcher := &fakeFetcher{fail: map[string]bool{"Unfetchable": true}}
	tb := &fakeTable{fail: map[string]bool{"dataset": true}}
	rec := &memRecorder{}
	reg := prometheus.NewRegistry()
	o, progress := newTestOrchestrator(t, provider, fetcher, tb, rec, reg)

	params := types.QueryParameters{Keywords: []string{"graphs"}, YearRange: []int{2019, 2020, 2021}}
	columns := []string{"method", "dataset"}
	batch, err := o.Run(context.Background(), Request{Query: "graph papers", Params: params, MaxResults: 10, Columns: columns})
	require.NoError(t, err)

	assert.Equal(t, "graphs", provider.gotQuery)
	assert.Equal(t, 10, provider.gotMax)
	assert.Equal(t, columns, tb.prepared)
	assert.Regexp(t, `^2024-03-07_09-05_[0-9a-f]{8}$`, batch.RunID)
	assert.Equal(t, 2, batch.Filtered, "2015 and undated hits dropped")

	require.Len(t, batch.Papers, 2)
	good, bad := batch.Papers[0], batch.Papers[1]

	assert.Equal(t, "Good Paper", good.Record.Title, "rank order kept")
	assert.NoError(t, good.FetchErr)
	assert.Equal(t, map[string]string{"method": "method of Good Paper"}, good.Record.ExtraColumns)
	assert.Equal(t, []string{"dataset"}, good.MissingColumns)
	assert.Equal(t, filepath.Join(batch.PapersDir, "Good_Paper.pdf"), good.Record.PDFPath)

	assert.Equal(t, "Unfetchable", bad.Record.Title, "failed fetch keeps the record")
	assert.ErrorIs(t, bad.FetchErr, acquire.ErrNoSource)
	assert.Empty(t, bad.Record.ExtraColumns)
	assert.Equal(t, types.Unknown, bad.Record.Author)

	records, gotCols, err := export.ReadCSVFile(batch.ExportPath)
	require.NoError(t, err)
	assert.Equal(t, columns, gotCols)
	require.Len(t, records, 2)
	assert.Equal(t, "Ada Lovelace, Alan Turing", records[0].Author)
	assert.Equal(t, "keywords: graphs", records[0].Keywords)
	assert.Equal(t, "http://x/good.pdf", records[0].URL)

	require.Len(t, rec.batches, 1)
	assert.Equal(t, "graph papers", rec.batches[0].Query)
	assert.Len(t, rec.batches[0].Papers, 2)

	out := progress.String()
	assert.Contains(t, out, "fetched Good Paper")
	assert.Contains(t, out, "failed  Unfetchable")
	assert.Contains(t, out, "partial Good Paper: missing dataset")

}

func TestRunProviderFailureIsNotFatal(t *testing.T) {
	provider := &fakeProvider{err: errors.New("arXiv down")}
	fetcher := &fakeFetcher{}
	reg := prometheus.NewRegistry()
	o, progress := newTestOrchestrator(t, provider, fetcher, nil, nil, reg)

	batch, err := o.Run(context.Background(), Request{Params: types.QueryParameters{Keywords: []string{"x"}}})
	require.NoError(t, err)

	assert.EqualError(t, batch.SearchErr, "arXiv down")
	assert.Empty(t, batch.Papers)
	assert.Zero(t, fetcher.calls)
	assert.Contains(t, progress.String(), "search failed")

	records, _, err := export.ReadCSVFile(batch.ExportPath)
	require.NoError(t, err, "empty batches still get an export")
	assert.Empty(t, records)
}

func TestRunEmptyQuery(t *testing.T) {
	o, _ := newTestOrchestrator(t, &fakeProvider{}, nil, nil, nil, nil)
	_, err := o.Run(context.Background(), Request{Params: types.QueryParameters{YearRange: []int{2020}}})
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestRunSkipDownload(t *testing.T) {
	provider := &fakeProvider{hits: threeHits()[1:2]}
	tb := &fakeTable{}
	o, progress := newTestOrchestrator(t, provider, nil, tb, nil, nil)

	batch, err := o.Run(context.Background(), Request{Params: types.QueryParameters{Keywords: []string{"x"}}, Columns: []string{"method"}})
	require.NoError(t, err)
	require.Len(t, batch.Papers, 1)
	assert.True(t, batch.Papers[0].Skipped)
	assert.Empty(t, batch.Papers[0].Record.ExtraColumns)
	assert.Contains(t, progress.String(), "skipped Good Paper")
}

func TestRunTruncatesToMaxResults(t *testing.T) {
	hits := make([]types.Hit, 8)
	for i := range hits {
		hits[i] = types.Hit{Title: "P" + string(rune('a'+i)), Year: 2020}
	}
	o, _ := newTestOrchestrator(t, &fakeProvider{hits: hits}, nil, nil, nil, nil)

	batch, err := o.Run(context.Background(), Request{Params: types.QueryParameters{Keywords: []string{"x"}}, MaxResults: 3})
	require.NoError(t, err)
	require.Len(t, batch.Papers, 3)
	assert.Equal(t, "Pa", batch.Papers[0].Record.Title)
	assert.Equal(t, "Pc", batch.Papers[2].Record.Title)
}

func TestRunRefineAppliesBeforeExport(t *testing.T) {
	fetcher := &fakeFetcher{}
	rec := &memRecorder{}
	o, _ := newTestOrchestrator(t, &fakeProvider{hits: threeHits()}, fetcher, nil, rec, nil)

	batch, err := o.Run(context.Background(), Request{
		Query:      "turing",
		Params:     types.QueryParameters{Keywords: []string{"graphs"}},
		MaxResults: 10,
		Refine:     Filter{Authors: []string{"turing"}},
	})
	require.NoError(t, err)

	require.Len(t, batch.Papers, 1)
	assert.Equal(t, "Good Paper", batch.Papers[0].Record.Title)
	assert.Equal(t, 1, fetcher.calls, "refined-out papers are not downloaded")

	records, _, err := export.ReadCSVFile(batch.ExportPath)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Good Paper", records[0].Title)

	require.Len(t, rec.batches, 1)
	assert.Len(t, rec.batches[0].Papers, 1)
}

func TestRunCiting(t *testing.T) {
	p := &citingProvider{fakeProvider{hits: threeHits()[1:2]}}
	o, _ := newTestOrchestrator(t, p, nil, nil, nil, nil)

	batch, err := o.Run(context.Background(), Request{CitingPaperID: "arXiv:1706.03762", MaxResults: 7})
	require.NoError(t, err)
	assert.Equal(t, "arXiv:1706.03762", p.citingFor)
	assert.Equal(t, 7, p.gotMax)
	assert.Equal(t, "citing:arXiv:1706.03762", batch.Query)
	assert.Len(t, batch.Papers, 1)

	o2, _ := newTestOrchestrator(t, &fakeProvider{}, nil, nil, nil, nil)
	_, err = o2.Run(context.Background(), Request{CitingPaperID: "x"})
	assert.ErrorIs(t, err, ErrCitingUnsupported)
}

func TestRunCancelledStopsFetching(t *testing.T) {
	fetcher := &fakeFetcher{}
	o, _ := newTestOrchestrator(t, &fakeProvider{hits: threeHits()}, fetcher, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	batch, err := o.Run(ctx, Request{Params: types.QueryParameters{Keywords: []string{"x"}}})
	require.NoError(t, err)
	assert.Zero(t, fetcher.calls)
	for _, p := range batch.Papers {
		assert.ErrorIs(t, p.FetchErr, context.Canceled)
	}
}

func TestRunRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	fetcher := &fakeFetcher{fail: map[string]bool{"Unfetchable": true}}
	o, _ := newTestOrchestrator(t, &fakeProvider{hits: threeHits()}, fetcher, nil, nil, reg)

	_, err := o.Run(context.Background(), Request{Params: types.QueryParameters{Keywords: []string{"x"}, YearRange: []int{2020, 2021}}})
	require.NoError(t, err)

	m := o.opts.Metrics
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchesTotal.WithLabelValues("fake", observability.OutcomeSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PapersFiltered))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchesTotal.WithLabelValues(observability.OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchesTotal.WithLabelValues(observability.OutcomeFailure)))
}

// --- FilterYears / Normalize ---

func TestFilterYears(t *testing.T) {
	hits := []types.Hit{{Year: 2018}, {Year: 2019}, {Year: 2021}, {Year: 2022}, {Year: 0}}

	kept, filtered := FilterYears(hits, types.QueryParameters{YearRange: []int{2021, 2019, 2020}})
	assert.Equal(t, []types.Hit{{Year: 2019}, {Year: 2021}}, kept)
	assert.Equal(t, 3, filtered)

	kept, filtered = FilterYears(hits, types.QueryParameters{})
	assert.Len(t, kept, 5)
	assert.Zero(t, filtered)
}

func TestNormalize(t *testing.T) {
	t.Run("sparse hit gets sentinels", func(t *testing.T) {
		rec := Normalize(types.Hit{Title: "  Spaced\n title "}, types.QueryParameters{}, "scholar")
		assert.Equal(t, types.PaperRecord{
			Title:    "Spaced title",
			Year:     types.UnknownYear,
			Author:   types.Unknown,
			URL:      types.Unknown,
			Abstract: types.Unknown,
			Keywords: types.Unknown,
			Source:   "scholar",
		}, rec)
	})

	t.Run("arXiv ID resolves the PDF", func(t *testing.T) {
		rec := Normalize(types.Hit{ID: "1706.03762", URL: "https://landing"}, types.QueryParameters{}, "semantic_scholar")
		assert.Equal(t, "https://arxiv.org/pdf/1706.03762", rec.PDFURL)
		assert.Equal(t, rec.PDFURL, rec.URL)
	})

	t.Run("landing page when no PDF", func(t *testing.T) {
		rec := Normalize(types.Hit{ID: "opaque", URL: "https://landing"}, types.QueryParameters{}, "scholar")
		assert.Empty(t, rec.PDFURL)
		assert.Equal(t, "https://landing", rec.URL)
	})

	t.Run("keywords prefer the query", func(t *testing.T) {
		hit := types.Hit{Keywords: []string{"cs.LG"}}
		assert.Equal(t, "keywords: a, b", Normalize(hit, types.QueryParameters{Keywords: []string{"a", "b"}}, "arxiv").Keywords)
		assert.Equal(t, "keywords: cs.LG", Normalize(hit, types.QueryParameters{}, "arxiv").Keywords)
	})
}

func TestProgressLinesAreWhole(t *testing.T) {
	hits := make([]types.Hit, 20)
	for i := range hits {
		hits[i] = types.Hit{Title: strings.Repeat("t", i+1), PDFURL: "http://x"}
	}
	o, progress := newTestOrchestrator(t, &fakeProvider{hits: hits}, &fakeFetcher{}, nil, nil, nil)
	_, err := o.Run(context.Background(), Request{Params: types.QueryParameters{Keywords: []string{"x"}}, MaxResults: 20})
	require.NoError(t, err)

	for _, line := range strings.Split(strings.TrimSpace(progress.String()), "\n") {
		if line == "" || strings.HasPrefix(line, "papers:") {
			continue
		}
		assert.Regexp(t, `^fetched t+$`, line)
	}
}
