// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/survey-engine/internal/observability"
	"github.com/pdiddy/survey-engine/pkg/types"
)

func TestMain(m *testing.M) {
	RetryBackoff = time.Millisecond
	os.Exit(m.Run())
}

// scriptedService returns errs[i] (or out) on the i-th call.
type scriptedService struct {
	calls int32
	errs  []error
	out   string
}

func (s *scriptedService) Model() string { return "scripted" }

func (s *scriptedService) Complete(ctx context.Context, _ string) (string, error) {
	n := int(atomic.AddInt32(&s.calls, 1)) - 1
	if n < len(s.errs) && s.errs[n] != nil {
		return "", s.errs[n]
	}
	return s.out, nil
}

func TestNew_SelectsVariant(t *testing.T) {
	svc, err := New(types.LLMConfig{Backend: types.BackendLocal, Model: "mistral"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &LocalModel{}, svc)
	assert.Equal(t, "mistral", svc.Model())

	svc, err = New(types.LLMConfig{Backend: types.BackendRemote, APIKey: "sk-test"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &RemoteModel{}, svc)
	assert.Equal(t, types.DefaultRemoteModel, svc.Model())

	_, err = New(types.LLMConfig{Backend: "bedrock"}, nil)
	assert.Error(t, err)
}

func TestNew_RemoteMissingKey(t *testing.T) {
	_, err := New(types.LLMConfig{Backend: types.BackendRemote}, nil)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func openAIServer(t *testing.T, status int, body string, captured *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		if captured != nil {
			raw, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(raw, captured))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
}

const chatResponse = `{"id":"chatcmpl-1","object":"chat.completion","created":1700000000,"model":"gpt-3.5-turbo",
"choices":[{"index":0,"message":{"role":"assistant","content":"Keywords: ['machine learning']"},"finish_reason":"stop"}]}`

func TestRemoteModel_Complete(t *testing.T) {
	var req map[string]any
	ts := openAIServer(t, http.StatusOK, chatResponse, &req)
	defer ts.Close()

	m, err := NewRemoteModel(types.LLMConfig{
		APIKey:      "sk-test",
		BaseURL:     ts.URL + "/v1/",
		Model:       "gpt-3.5-turbo",
		Temperature: 0.7,
		TopP:        0.8,
		MaxTokens:   2000,
	}, ts.Client())
	require.NoError(t, err)

	out, err := m.Complete(context.Background(), "classify this query")
	require.NoError(t, err)
	assert.Equal(t, "Keywords: ['machine learning']", out)

	assert.Equal(t, "gpt-3.5-turbo", req["model"])
	assert.Equal(t, 0.7, req["temperature"])
	assert.Equal(t, 0.8, req["top_p"])
	assert.Equal(t, float64(2000), req["max_completion_tokens"])
	assert.NotContains(t, req, "response_format")

	msgs := req["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "classify this query", msgs[0].(map[string]any)["content"])
}

func TestRemoteModel_CompleteJSON(t *testing.T) {
	var req map[string]any
	ts := openAIServer(t, http.StatusOK, chatResponse, &req)
	defer ts.Close()

	m, err := NewRemoteModel(types.LLMConfig{APIKey: "sk-test", BaseURL: ts.URL + "/v1/"}, ts.Client())
	require.NoError(t, err)

	_, err = m.CompleteJSON(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"type": "json_object"}, req["response_format"])
}

func TestRemoteModel_APIError(t *testing.T) {
	ts := openAIServer(t, http.StatusTooManyRequests,
		`{"error":{"message":"Rate limit reached","type":"requests","param":null,"code":"rate_limit_exceeded"}}`, nil)
	defer ts.Close()

	m, err := NewRemoteModel(types.LLMConfig{APIKey: "sk-test", BaseURL: ts.URL + "/v1/"}, ts.Client())
	require.NoError(t, err)

	_, err = m.Complete(context.Background(), "p")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.True(t, IsTransient(err))
}

func TestRemoteModel_EmptyChoices(t *testing.T) {
	ts := openAIServer(t, http.StatusOK, `{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`, nil)
	defer ts.Close()

	m, err := NewRemoteModel(types.LLMConfig{APIKey: "sk-test", BaseURL: ts.URL + "/v1/"}, ts.Client())
	require.NoError(t, err)

	_, err = m.Complete(context.Background(), "p")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestLocalModel_Complete(t *testing.T) {
	var got ollamaGenerateRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: "  Authors: ['Bob Lee']\n", Done: true})
	}))
	defer ts.Close()

	m := NewLocalModel(types.LLMConfig{BaseURL: ts.URL + "/", Model: "gemma", Temperature: 0.7, MaxTokens: 100}, ts.Client())

	out, err := m.Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "Authors: ['Bob Lee']", out)
	assert.Equal(t, "gemma", got.Model)
	assert.Equal(t, "hello", got.Prompt)
	assert.False(t, got.Stream)
	assert.Empty(t, got.Format)
	assert.Equal(t, 100, got.Options.NumPredict)

	_, err = m.CompleteJSON(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "json", got.Format)
}

func TestLocalModel_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		check   func(t *testing.T, err error)
	}{
		{
			name: "non-200 status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "model not found", http.StatusNotFound)
			},
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
				assert.Contains(t, apiErr.Message, "model not found")
				assert.False(t, IsTransient(err))
			},
		},
		{
			name: "empty response",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				io.WriteString(w, `{"response":"","done":true}`)
			},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrEmptyResponse)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				io.WriteString(w, `not json`)
			},
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "decoding response")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(tt.handler)
			defer ts.Close()
			_, err := NewLocalModel(types.LLMConfig{BaseURL: ts.URL}, ts.Client()).Complete(context.Background(), "p")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestWithRetry(t *testing.T) {
	transient := &APIError{Provider: "test", StatusCode: http.StatusServiceUnavailable}
	permanent := &APIError{Provider: "test", StatusCode: http.StatusUnauthorized}

	tests := []struct {
		name       string
		errs       []error
		maxRetries int
		wantCalls  int32
		wantErr    bool
	}{
		{"succeeds first time", nil, 1, 1, false},
		{"retries once on transient", []error{transient}, 1, 2, false},
		{"gives up after budget", []error{transient, transient, transient}, 1, 2, true},
		{"no retry on permanent", []error{permanent}, 3, 1, true},
		{"retries empty response", []error{ErrEmptyResponse}, 1, 2, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &scriptedService{errs: tt.errs, out: "ok"}
			r := WithRetry(svc, tt.maxRetries, 0, zerolog.Nop())

			out, err := r.Complete(context.Background(), "p")
			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(&svc.calls))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "ok", out)
		})
	}
}

// slowService blocks until its context ends.
type slowService struct{ calls int32 }

func (s *slowService) Model() string { return "slow" }

func (s *slowService) Complete(ctx context.Context, _ string) (string, error) {
	atomic.AddInt32(&s.calls, 1)
	<-ctx.Done()
	return "", ctx.Err()
}

func TestWithRetry_PerCallTimeout(t *testing.T) {
	svc := &slowService{}
	r := WithRetry(svc, 1, 10*time.Millisecond, zerolog.Nop())

	_, err := r.Complete(context.Background(), "p")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(2), atomic.LoadInt32(&svc.calls))
}

func TestWithRetry_ParentCancelStops(t *testing.T) {
	svc := &slowService{}
	r := WithRetry(svc, 3, 0, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := r.Complete(ctx, "p")
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&svc.calls))
}

func TestWithRetry_StructuredUnsupported(t *testing.T) {
	r := WithRetry(&scriptedService{out: "x"}, 1, 0, zerolog.Nop())
	_, err := r.CompleteJSON(context.Background(), "p")
	assert.True(t, errors.Is(err, ErrStructuredUnsupported))
}

func TestInstrument(t *testing.T) {
	m := observability.NewMetrics("llm_test", prometheus.NewRegistry())
	svc := &scriptedService{errs: []error{&APIError{StatusCode: 503}}, out: "ok"}
	inst := Instrument(svc, m, "table")

	_, err := inst.Complete(context.Background(), "p")
	require.Error(t, err)
	_, err = inst.Complete(context.Background(), "p")
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LLMRequestsTotal.WithLabelValues("table", "scripted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMRequestsFailed.WithLabelValues("table", "scripted", "transient")))
}
