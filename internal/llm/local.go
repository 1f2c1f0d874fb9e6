// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pdiddy/survey-engine/pkg/types"
)

const (
	// DefaultOllamaURL is the default Ollama API endpoint.
	DefaultOllamaURL = "http://localhost:11434"

	// apiPathGenerate is the Ollama API endpoint for single-prompt completion.
	apiPathGenerate = "/api/generate"
)

// LocalModel calls a model served by a local Ollama instance
// (e.g. llama3, mistral, gemma).
type LocalModel struct {
	baseURL     string
	model       string
	temperature float64
	topP        float64
	maxTokens   int
	client      *http.Client
}

var _ CompletionService = (*LocalModel)(nil)
var _ JSONCompleter = (*LocalModel)(nil)

// NewLocalModel creates a LocalModel from cfg. An empty BaseURL selects
// DefaultOllamaURL.
func NewLocalModel(cfg types.LLMConfig, client *http.Client) *LocalModel {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	model := cfg.Model
	if model == "" {
		model = types.DefaultLocalModel
	}
	return &LocalModel{
		baseURL:     baseURL,
		model:       model,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
		maxTokens:   cfg.MaxTokens,
		client:      client,
	}
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Format  string        `json:"format,omitempty"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// Model returns the model identifier.
func (m *LocalModel) Model() string { return m.model }

// Complete generates a non-streamed completion for prompt.
func (m *LocalModel) Complete(ctx context.Context, prompt string) (string, error) {
	return m.generate(ctx, prompt, "")
}

// CompleteJSON asks Ollama to constrain the output to JSON.
func (m *LocalModel) CompleteJSON(ctx context.Context, prompt string) (string, error) {
	return m.generate(ctx, prompt, "json")
}

func (m *LocalModel) generate(ctx context.Context, prompt, format string) (string, error) {
	body, err := json.Marshal(ollamaGenerateRequest{
		Model:  m.model,
		Prompt: prompt,
		Format: format,
		Options: ollamaOptions{
			Temperature: m.temperature,
			TopP:        m.topP,
			NumPredict:  m.maxTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+apiPathGenerate, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &APIError{
			Provider:   "ollama",
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(msg)),
		}
	}

	var result ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if result.Error != "" {
		return "", &APIError{Provider: "ollama", StatusCode: resp.StatusCode, Message: result.Error}
	}

	text := strings.TrimSpace(result.Response)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
