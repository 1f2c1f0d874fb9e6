// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidConfig is returned when a configuration section fails validation.
// It is always fatal: no stage can run on an invalid configuration.
var ErrInvalidConfig = errors.New("invalid configuration")

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "survey-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// LLMBackend selects the completion service variant.
type LLMBackend string

const (
	// BackendRemote is a hosted OpenAI-compatible chat completion API.
	BackendRemote LLMBackend = "remote"

	// BackendLocal is a locally served Ollama model.
	BackendLocal LLMBackend = "local"
)

// LLMConfig holds settings for the completion service.
type LLMConfig struct {
	// Backend selects remote or local inference.
	Backend LLMBackend `json:"backend" yaml:"backend" mapstructure:"backend" validate:"oneof=remote local"`

	// Model is the model identifier (e.g. "gpt-3.5-turbo", "llama3").
	Model string `json:"model" yaml:"model" mapstructure:"model" validate:"required"`

	// APIKey authenticates against the remote backend. Required for remote.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key" validate:"required_if=Backend remote"`

	// BaseURL overrides the API endpoint (OpenAI-compatible host or Ollama URL).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url" validate:"omitempty,url"`

	Temperature float64 `json:"temperature" yaml:"temperature" mapstructure:"temperature" validate:"gte=0,lte=2"`
	TopP        float64 `json:"top_p" yaml:"top_p" mapstructure:"top_p" validate:"gte=0,lte=1"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens" validate:"gte=1"`

	// Timeout bounds a single completion call.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// MaxRetries is the number of retries after a transient failure (default 1).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries" validate:"gte=0"`
}

// Search provider names.
const (
	ProviderArxiv           = "arxiv"
	ProviderScholar         = "scholar"
	ProviderSemanticScholar = "semantic_scholar"
)

// SearchConfig holds settings for the search stage.
type SearchConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Provider selects the paper-search backend.
	Provider string `json:"provider" yaml:"provider" mapstructure:"provider" validate:"oneof=arxiv scholar semantic_scholar"`

	// MaxResults is the number of hits requested from the provider (default 10).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results" validate:"gte=1"`

	// SerpAPIKey authenticates Google Scholar queries through SerpAPI.
	SerpAPIKey string `json:"serpapi_key,omitempty" yaml:"serpapi_key,omitempty" mapstructure:"serpapi_key" validate:"required_if=Provider scholar"`

	// SemanticScholarAPIKey is an optional API key for higher rate limits.
	SemanticScholarAPIKey string `json:"semantic_scholar_api_key,omitempty" yaml:"semantic_scholar_api_key,omitempty" mapstructure:"semantic_scholar_api_key"`

	// ResultsDir is the base directory for papers/ and info/ (default "results").
	ResultsDir string `json:"results_dir" yaml:"results_dir" mapstructure:"results_dir" validate:"required"`

	// Concurrency bounds the number of papers processed at once (default 4).
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency" validate:"gte=1"`

	// RequestsPerSecond limits calls to the provider (default 1/3 for arXiv).
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second" validate:"gt=0"`

	// SkipDownload disables full-text fetching; records are returned unenriched.
	SkipDownload bool `json:"skip_download" yaml:"skip_download" mapstructure:"skip_download"`
}

// TableConfig holds settings for survey table extraction.
type TableConfig struct {
	// Columns are the requested survey table columns in display order.
	Columns []string `json:"columns" yaml:"columns" mapstructure:"columns" validate:"dive,required"`

	// PromptFile is an optional YAML mapping of prompt name to template text.
	PromptFile string `json:"prompt_file,omitempty" yaml:"prompt_file,omitempty" mapstructure:"prompt_file"`
}

// ZoteroConfig holds reference-manager credentials.
type ZoteroConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	UserID  string `json:"user_id" yaml:"user_id" mapstructure:"user_id" validate:"required,numeric"`
	APIKey  string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key" validate:"required"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url" validate:"omitempty,url"`
}

// HistoryConfig controls the batch history database.
type HistoryConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Path    string `json:"path" yaml:"path" mapstructure:"path" validate:"required_if=Enabled true"`
}

// LoggingConfig contains logger configuration options.
type LoggingConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string `json:"level" yaml:"level" mapstructure:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`

	// Format is the output format (json, console, pretty).
	Format string `json:"format" yaml:"format" mapstructure:"format" validate:"omitempty,oneof=json console pretty"`

	// Output is the destination (stdout, stderr).
	Output string `json:"output" yaml:"output" mapstructure:"output" validate:"omitempty,oneof=stdout stderr"`

	// TimeFormat is the timestamp layout.
	TimeFormat string `json:"time_format" yaml:"time_format" mapstructure:"time_format"`
}

// Config groups all stage configurations.
type Config struct {
	LLM     LLMConfig     `json:"llm" yaml:"llm" mapstructure:"llm"`
	Search  SearchConfig  `json:"search" yaml:"search" mapstructure:"search"`
	Table   TableConfig   `json:"table" yaml:"table" mapstructure:"table"`
	Zotero  ZoteroConfig  `json:"zotero" yaml:"zotero" mapstructure:"zotero"`
	History HistoryConfig `json:"history" yaml:"history" mapstructure:"history"`
	Logging LoggingConfig `json:"logging" yaml:"logging" mapstructure:"logging"`
}

// Defaults used by ApplyDefaults.
const (
	DefaultRemoteModel     = "gpt-3.5-turbo"
	DefaultLocalModel      = "llama3"
	DefaultTemperature     = 0.7
	DefaultTopP            = 0.8
	DefaultMaxTokens       = 2000
	DefaultLLMTimeout      = 2 * time.Minute
	DefaultLLMRetries      = 1
	DefaultMaxResults      = 10
	DefaultResultsDir      = "results"
	DefaultConcurrency     = 4
	DefaultHTTPTimeout     = 60 * time.Second
	DefaultUserAgent       = "survey-engine/0.1"
	DefaultRequestsPerSec  = 1.0 / 3.0
	DefaultHistoryFileName = "history.db"
)

// ApplyDefaults fills zero values with defaults. It never overwrites a value
// the user set.
func (c *Config) ApplyDefaults() {
	if c.LLM.Backend == "" {
		c.LLM.Backend = BackendRemote
	}
	if c.LLM.Model == "" {
		if c.LLM.Backend == BackendLocal {
			c.LLM.Model = DefaultLocalModel
		} else {
			c.LLM.Model = DefaultRemoteModel
		}
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = DefaultTemperature
	}
	if c.LLM.TopP == 0 {
		c.LLM.TopP = DefaultTopP
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = DefaultMaxTokens
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = DefaultLLMTimeout
	}
	if c.LLM.MaxRetries == 0 {
		c.LLM.MaxRetries = DefaultLLMRetries
	}

	if c.Search.Provider == "" {
		c.Search.Provider = ProviderArxiv
	}
	if c.Search.MaxResults == 0 {
		c.Search.MaxResults = DefaultMaxResults
	}
	if c.Search.ResultsDir == "" {
		c.Search.ResultsDir = DefaultResultsDir
	}
	if c.Search.Concurrency == 0 {
		c.Search.Concurrency = DefaultConcurrency
	}
	if c.Search.RequestsPerSecond == 0 {
		c.Search.RequestsPerSecond = DefaultRequestsPerSec
	}
	c.Search.HTTPConfig.applyDefaults()
	c.Zotero.HTTPConfig.applyDefaults()

	if c.History.Enabled && c.History.Path == "" {
		c.History.Path = c.Search.ResultsDir + "/" + DefaultHistoryFileName
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stderr"
	}
	if c.Logging.TimeFormat == "" {
		c.Logging.TimeFormat = time.RFC3339
	}
}

func (h *HTTPConfig) applyDefaults() {
	if h.Timeout == 0 {
		h.Timeout = DefaultHTTPTimeout
	}
	if h.UserAgent == "" {
		h.UserAgent = DefaultUserAgent
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks one configuration section (LLMConfig, SearchConfig, ...)
// against its struct tags. Failures wrap ErrInvalidConfig and name every
// offending field.
func Validate(section any) error {
	err := validate.Struct(section)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", fe.Namespace())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", fe.Namespace(), fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param())
	}
}
