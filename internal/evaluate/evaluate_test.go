// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package evaluate

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/survey-engine/internal/params"
	"github.com/pdiddy/survey-engine/pkg/types"
)

func TestScore(t *testing.T) {
	expected := []types.QueryParameters{
		{Keywords: []string{"machine learning"}, YearRange: []int{2019, 2020}, Authors: []string{"Michael Smith"}},
		{Keywords: []string{"graph neural networks"}, Institutions: []string{"MIT"}, Conferences: []string{"NeurIPS"}},
	}
	predicted := []types.QueryParameters{
		// "learning" shared; years equal as sets; author case differs.
		{Keywords: []string{"deep learning"}, YearRange: []int{2020, 2019, 2019}, Authors: []string{"michael smith"}},
		// No shared keyword word; institution missing.
		{Keywords: []string{"transformers"}, Conferences: []string{"neurips"}},
	}

	got := Score(expected, predicted)
	assert.Equal(t, Accuracy{
		Keywords:     0.5,
		YearRange:    1,
		Authors:      1,
		Institutions: 0.5,
		Conferences:  1,
	}, got)
}

func TestScoreEmpty(t *testing.T) {
	assert.Equal(t, Accuracy{}, Score(nil, nil))
}

type fakeExtractor struct {
	answers map[string]types.QueryParameters
}

func (f fakeExtractor) Extract(_ context.Context, q string) (params.Result, error) {
	p, ok := f.answers[q]
	if !ok {
		return params.Result{}, errors.New("model offline")
	}
	return params.Result{Params: p}, nil
}

func TestRun(t *testing.T) {
	cases := []Case{
		{Query: "q1", Expected: types.QueryParameters{Keywords: []string{"ai"}}},
		{Query: "q2", Expected: types.QueryParameters{Keywords: []string{"ml"}}},
	}
	ex := fakeExtractor{answers: map[string]types.QueryParameters{"q1": {Keywords: []string{"AI"}}}}

	var progress bytes.Buffer
	report, err := Run(context.Background(), "llama3", ex, cases, &progress)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Cases)
	assert.Equal(t, 1, report.Failures)
	assert.Equal(t, 0.5, report.Accuracy.Keywords)
	assert.Equal(t, 1.0, report.Accuracy.Authors, "empty matches empty")
	assert.Contains(t, progress.String(), "failed  case 2: model offline")

	var table bytes.Buffer
	FormatReports([]Report{report}, &table)
	assert.Contains(t, table.String(), "llama3")
	assert.Contains(t, table.String(), "1/2")
}

func TestLoadCases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- query: "papers by Michael Smith on machine learning from 2019 to 2021"
  expected:
    keywords: [machine learning]
    year_range: [2019, 2020, 2021]
    authors: [Michael Smith]
`), 0o644))

	cases, err := LoadCases(path)
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, []int{2019, 2020, 2021}, cases[0].Expected.YearRange)
	assert.Equal(t, []string{"Michael Smith"}, cases[0].Expected.Authors)

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("[]\n"), 0o644))
	_, err = LoadCases(empty)
	assert.Error(t, err)
}

func TestBaselineRoundTrip(t *testing.T) {
	dir := t.TempDir()
	queries := filepath.Join(dir, "queries.txt")
	require.NoError(t, os.WriteFile(queries, []byte("q1\n\n  q2  \nq3\n"), 0o644))

	qs, err := ReadQueries(queries)
	require.NoError(t, err)
	assert.Equal(t, []string{"q1", "q2", "q3"}, qs)

	ex := fakeExtractor{answers: map[string]types.QueryParameters{
		"q1": {Keywords: []string{"ai"}},
		"q3": {Authors: []string{"Ada Lovelace"}},
	}}
	var progress bytes.Buffer
	cases, err := Baseline(context.Background(), ex, qs, &progress)
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Contains(t, progress.String(), "failed  query 2")

	path := filepath.Join(dir, "cases.yaml")
	require.NoError(t, WriteCases(path, cases))
	loaded, err := LoadCases(path)
	require.NoError(t, err)
	assert.Equal(t, "q3", loaded[1].Query)
	assert.Equal(t, []string{"Ada Lovelace"}, loaded[1].Expected.Authors)
}
