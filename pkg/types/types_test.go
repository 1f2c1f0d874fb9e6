// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYearBounds(t *testing.T) {
	tests := []struct {
		name   string
		years  []int
		lo, hi int
		ok     bool
	}{
		{"empty", nil, 0, 0, false},
		{"single", []int{2020}, 2020, 2020, true},
		{"descending", []int{2021, 2020, 2019}, 2019, 2021, true},
		{"unordered", []int{2018, 2024, 2020}, 2018, 2024, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi, ok := QueryParameters{YearRange: tt.years}.YearBounds()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.lo, lo)
			assert.Equal(t, tt.hi, hi)
		})
	}
}

func TestYearSet(t *testing.T) {
	assert.Equal(t, []int{2019, 2020, 2021}, YearSet([]int{2021, 2020, 2019, 2020}))
	assert.Equal(t, []int{}, YearSet(nil))
}

func TestYearSpan(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
		want     []int
		wantErr  bool
	}{
		{name: "none", want: nil},
		{name: "range", from: 2019, to: 2021, want: []int{2019, 2020, 2021}},
		{name: "from only", from: 2020, want: []int{2020}},
		{name: "to only", to: 2020, want: []int{2020}},
		{name: "reversed", from: 2022, to: 2020, wantErr: true},
		{name: "absurd upper bound", from: 1, to: 2000000000, wantErr: true},
		{name: "far future", from: 2020, to: 3000, wantErr: true},
		{name: "negative", from: -5, to: 2020, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := YearSpan(tt.from, tt.to)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQueryParametersIsEmpty(t *testing.T) {
	assert.True(t, QueryParameters{}.IsEmpty())
	assert.True(t, QueryParameters{YearRange: []int{2020}}.IsEmpty())
	assert.False(t, QueryParameters{Conferences: []string{"CVPR"}}.IsEmpty())
}

func TestPaperRecordYearString(t *testing.T) {
	assert.Equal(t, Unknown, PaperRecord{}.YearString())
	assert.Equal(t, "2021", PaperRecord{Year: 2021}.YearString())
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	assert.Equal(t, BackendRemote, cfg.LLM.Backend)
	assert.Equal(t, DefaultRemoteModel, cfg.LLM.Model)
	assert.Equal(t, DefaultTemperature, cfg.LLM.Temperature)
	assert.Equal(t, DefaultTopP, cfg.LLM.TopP)
	assert.Equal(t, DefaultMaxTokens, cfg.LLM.MaxTokens)
	assert.Equal(t, ProviderArxiv, cfg.Search.Provider)
	assert.Equal(t, DefaultResultsDir, cfg.Search.ResultsDir)
	assert.Equal(t, DefaultUserAgent, cfg.Search.UserAgent)
	assert.Equal(t, "stderr", cfg.Logging.Output)
}

func TestApplyDefaults_LocalModel(t *testing.T) {
	cfg := Config{LLM: LLMConfig{Backend: BackendLocal}}
	cfg.ApplyDefaults()
	assert.Equal(t, DefaultLocalModel, cfg.LLM.Model)
}

func TestApplyDefaults_KeepsUserValues(t *testing.T) {
	cfg := Config{Search: SearchConfig{MaxResults: 50, Provider: ProviderScholar}}
	cfg.ApplyDefaults()
	assert.Equal(t, 50, cfg.Search.MaxResults)
	assert.Equal(t, ProviderScholar, cfg.Search.Provider)
}

func TestValidate_MissingRemoteAPIKey(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	err := Validate(cfg.LLM)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
	assert.Contains(t, err.Error(), "APIKey is required")
}

func TestValidate_LocalNeedsNoKey(t *testing.T) {
	cfg := Config{LLM: LLMConfig{Backend: BackendLocal}}
	cfg.ApplyDefaults()
	assert.NoError(t, Validate(cfg.LLM))
}

func TestValidate_ScholarNeedsSerpAPIKey(t *testing.T) {
	cfg := Config{Search: SearchConfig{Provider: ProviderScholar}}
	cfg.ApplyDefaults()
	require.ErrorIs(t, Validate(cfg.Search), ErrInvalidConfig)

	cfg.Search.SerpAPIKey = "key"
	assert.NoError(t, Validate(cfg.Search))
}

func TestValidate_UnknownProvider(t *testing.T) {
	cfg := Config{Search: SearchConfig{Provider: "pubmed"}}
	cfg.ApplyDefaults()
	err := Validate(cfg.Search)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be one of")
}

func TestValidate_Zotero(t *testing.T) {
	assert.ErrorIs(t, Validate(ZoteroConfig{}), ErrInvalidConfig)
	assert.NoError(t, Validate(ZoteroConfig{UserID: "12345", APIKey: "k"}))
}
