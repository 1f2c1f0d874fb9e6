// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package params

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/survey-engine/internal/llm"
	"github.com/pdiddy/survey-engine/internal/prompt"
	"github.com/pdiddy/survey-engine/pkg/types"
)

// textOnly is a completion service without structured output.
type textOnly struct {
	out     string
	err     error
	prompts []string
}

func (s *textOnly) Model() string { return "text-only" }

func (s *textOnly) Complete(_ context.Context, p string) (string, error) {
	s.prompts = append(s.prompts, p)
	return s.out, s.err
}

// withJSON also supports structured output.
type withJSON struct {
	textOnly
	jsonOut string
	jsonErr error
	jsonN   int
}

func (s *withJSON) CompleteJSON(_ context.Context, p string) (string, error) {
	s.jsonN++
	s.prompts = append(s.prompts, p)
	return s.jsonOut, s.jsonErr
}

func newTestExtractor(svc llm.CompletionService) *Extractor {
	e := NewExtractor(svc, prompt.NewCatalog(), zerolog.Nop())
	e.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	return e
}

func TestExtract_LineScan(t *testing.T) {
	svc := &textOnly{out: "Keywords: ['neural networks']\nConferences: ['CVPR', 'ICCV']"}
	res, err := newTestExtractor(svc).Extract(context.Background(), "neural nets at CVPR or ICCV")
	require.NoError(t, err)

	assert.False(t, res.Structured)
	assert.Equal(t, []string{"neural networks"}, res.Params.Keywords)
	assert.Equal(t, []string{"CVPR", "ICCV"}, res.Params.Conferences)
	require.Len(t, svc.prompts, 1)
	assert.Contains(t, svc.prompts[0], "User Query: neural nets at CVPR or ICCV")
	assert.Contains(t, svc.prompts[0], "which is 2024")
}

func TestExtract_StructuredPreferred(t *testing.T) {
	svc := &withJSON{jsonOut: `{"keywords":["ml"],"year_range":[2023],"authors":[],"institutions":[],"conferences":[]}`}
	res, err := newTestExtractor(svc).Extract(context.Background(), "ml papers from 2023")
	require.NoError(t, err)

	assert.True(t, res.Structured)
	assert.Equal(t, []string{"ml"}, res.Params.Keywords)
	assert.Equal(t, []int{2023}, res.Params.YearRange)
	assert.Equal(t, 1, svc.jsonN)
	require.Len(t, svc.prompts, 1)
	assert.Contains(t, svc.prompts[0], "single JSON object")
}

func TestExtract_StructuredFallsBack(t *testing.T) {
	tests := []struct {
		name    string
		jsonOut string
		jsonErr error
	}{
		{"structured call fails", "", errors.New("format unsupported")},
		{"structured output unparseable", "sorry, I cannot", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &withJSON{
				textOnly: textOnly{out: "Authors: ['Alice Johnson']"},
				jsonOut:  tt.jsonOut,
				jsonErr:  tt.jsonErr,
			}
			res, err := newTestExtractor(svc).Extract(context.Background(), "q")
			require.NoError(t, err)
			assert.False(t, res.Structured)
			assert.Equal(t, []string{"Alice Johnson"}, res.Params.Authors)
			assert.Len(t, svc.prompts, 2)
		})
	}
}

func TestExtract_CompletionFailure(t *testing.T) {
	svc := &textOnly{err: errors.New("connection refused")}
	_, err := newTestExtractor(svc).Extract(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestExtract_ProseDegradesToEmpty(t *testing.T) {
	svc := &textOnly{out: "I could not find any parameters in this request."}
	res, err := newTestExtractor(svc).Extract(context.Background(), "hello")
	require.NoError(t, err)
	assert.True(t, res.Params.IsEmpty())
	assert.Empty(t, res.Params.YearRange)
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.yaml")
	in := File{
		Query:       "quantum computing at QIP",
		Model:       "llama3",
		ExtractedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Parameters: types.QueryParameters{
			Keywords:    []string{"quantum computing"},
			YearRange:   []int{2020, 2018, 2019},
			Conferences: []string{"QIP"},
		},
	}
	require.NoError(t, WriteFile(path, in))

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, in.Query, got.Query)
	assert.Equal(t, []string{"quantum computing"}, got.Parameters.Keywords)
	assert.Equal(t, []int{2018, 2019, 2020}, got.Parameters.YearRange)
	assert.True(t, in.ExtractedAt.Equal(got.ExtractedAt))
}

func TestReadFile_Errors(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("parameters: [not, a, map]\n"), 0o644))
	_, err = ReadFile(path)
	assert.Error(t, err)
}
