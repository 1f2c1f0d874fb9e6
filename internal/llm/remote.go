// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/pdiddy/survey-engine/pkg/types"
)

// RemoteModel calls a hosted OpenAI-compatible chat completion API.
type RemoteModel struct {
	client      openai.Client
	model       string
	temperature float64
	topP        float64
	maxTokens   int
}

var _ CompletionService = (*RemoteModel)(nil)
var _ JSONCompleter = (*RemoteModel)(nil)

// NewRemoteModel creates a RemoteModel from cfg. The SDK's own retries are
// disabled; WithRetry owns the retry budget.
func NewRemoteModel(cfg types.LLMConfig, client *http.Client) (*RemoteModel, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if client != nil {
		opts = append(opts, option.WithHTTPClient(client))
	}

	model := cfg.Model
	if model == "" {
		model = types.DefaultRemoteModel
	}

	return &RemoteModel{
		client:      openai.NewClient(opts...),
		model:       model,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Model returns the model identifier.
func (m *RemoteModel) Model() string { return m.model }

// Complete sends prompt as a single user message and returns the first choice.
func (m *RemoteModel) Complete(ctx context.Context, prompt string) (string, error) {
	return m.complete(ctx, prompt, false)
}

// CompleteJSON requests a json_object response format.
func (m *RemoteModel) CompleteJSON(ctx context.Context, prompt string) (string, error) {
	return m.complete(ctx, prompt, true)
}

func (m *RemoteModel) complete(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(m.model),
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
	}
	if m.temperature > 0 {
		params.Temperature = openai.Float(m.temperature)
	}
	if m.topP > 0 {
		params.TopP = openai.Float(m.topP)
	}
	if m.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(m.maxTokens))
	}
	if jsonMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &APIError{
				Provider:   "openai",
				StatusCode: apiErr.StatusCode,
				Message:    apiErr.Message,
				Err:        err,
			}
		}
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
