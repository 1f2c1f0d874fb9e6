// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the survey-engine CLI.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/survey-engine/internal/httputil"
	"github.com/pdiddy/survey-engine/internal/llm"
	"github.com/pdiddy/survey-engine/internal/observability"
	"github.com/pdiddy/survey-engine/internal/prompt"
	"github.com/pdiddy/survey-engine/internal/secrets"
	"github.com/pdiddy/survey-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

const metricsNamespace = "survey_engine"

// Process-wide state built once in PersistentPreRunE.
var (
	cfg           types.Config
	loadedSecrets secrets.Store
	logger        zerolog.Logger
	registry      *prometheus.Registry
	metrics       *observability.Metrics
)

// rootCmd is the base command for the survey-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "survey-engine",
	Short: "Find papers for a research question and build a survey table",
	Long: `survey-engine turns a natural-language research request into structured
search parameters, retrieves matching papers from arXiv, Google Scholar or
Semantic Scholar, downloads their full text, and asks a language model to
fill survey table columns for each paper. Batches are exported as CSV and can
be uploaded to Zotero or formatted as references.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: writeMetrics,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./survey-engine.yaml or ~/.config/survey-engine/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().String("metrics-file", "", "write a Prometheus textfile snapshot here on exit")
}

func initConfig() {
	// .env seeds the environment before viper reads it.
	if err := secrets.LoadEnvFile(".env"); err != nil {
		fmt.Fprintln(os.Stderr, "warning:", err)
	}

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("survey-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "survey-engine"))
		}
	}

	viper.SetEnvPrefix("SURVEY_ENGINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setViperDefaults()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setViperDefaults registers every key so AutomaticEnv can override keys
// that the config file does not mention.
func setViperDefaults() {
	viper.SetDefault("llm.backend", string(types.BackendRemote))
	viper.SetDefault("llm.model", "")
	viper.SetDefault("llm.api_key", "")
	viper.SetDefault("llm.base_url", "")
	viper.SetDefault("llm.temperature", types.DefaultTemperature)
	viper.SetDefault("llm.top_p", types.DefaultTopP)
	viper.SetDefault("llm.max_tokens", types.DefaultMaxTokens)
	viper.SetDefault("llm.timeout", types.DefaultLLMTimeout)
	viper.SetDefault("llm.max_retries", types.DefaultLLMRetries)

	viper.SetDefault("search.provider", types.ProviderArxiv)
	viper.SetDefault("search.max_results", types.DefaultMaxResults)
	viper.SetDefault("search.serpapi_key", "")
	viper.SetDefault("search.semantic_scholar_api_key", "")
	viper.SetDefault("search.results_dir", types.DefaultResultsDir)
	viper.SetDefault("search.concurrency", types.DefaultConcurrency)
	viper.SetDefault("search.requests_per_second", types.DefaultRequestsPerSec)
	viper.SetDefault("search.skip_download", false)
	viper.SetDefault("search.timeout", types.DefaultHTTPTimeout)
	viper.SetDefault("search.user_agent", types.DefaultUserAgent)

	viper.SetDefault("table.columns", []string{})
	viper.SetDefault("table.prompt_file", "")

	viper.SetDefault("zotero.user_id", "")
	viper.SetDefault("zotero.api_key", "")
	viper.SetDefault("zotero.base_url", "")

	viper.SetDefault("history.enabled", true)
	viper.SetDefault("history.path", "")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "console")
	viper.SetDefault("logging.output", "stderr")
}

// setup loads credentials, decodes the configuration and builds the logger
// and metrics shared by every subcommand.
func setup(cmd *cobra.Command, args []string) error {
	s, err := secrets.Load(".secrets/")
	if err != nil {
		return err
	}
	loadedSecrets = s
	if len(s) > 0 {
		keys := s.Keys()
		sort.Strings(keys)
		fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidConfig, err)
	}
	cfg.ApplyDefaults()
	cfg.LLM.APIKey = loadedSecrets.Resolve(secrets.OpenAIAPIKey, cfg.LLM.APIKey)
	cfg.Search.SerpAPIKey = loadedSecrets.Resolve(secrets.SerpAPIKey, cfg.Search.SerpAPIKey)
	cfg.Search.SemanticScholarAPIKey = loadedSecrets.Resolve(secrets.SemanticScholarAPIKey, cfg.Search.SemanticScholarAPIKey)
	cfg.Zotero.APIKey = loadedSecrets.Resolve(secrets.ZoteroAPIKey, cfg.Zotero.APIKey)
	cfg.Zotero.UserID = loadedSecrets.Resolve(secrets.ZoteroUserID, cfg.Zotero.UserID)

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if err := types.Validate(cfg.Logging); err != nil {
		return err
	}
	logger = observability.NewLogger(cfg.Logging).With().Str("command", cmd.Name()).Logger()

	registry = prometheus.NewRegistry()
	metrics = observability.NewMetrics(metricsNamespace, registry)
	return nil
}

func writeMetrics(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("metrics-file")
	if path == "" || registry == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, registry); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}

// newCompletion builds the configured completion service wrapped with the
// retry and metrics decorators.
func newCompletion(llmCfg types.LLMConfig, operation string) (llm.CompletionService, error) {
	if err := types.Validate(llmCfg); err != nil {
		return nil, err
	}
	svc, err := llm.New(llmCfg, &http.Client{})
	if err != nil {
		return nil, err
	}
	retrying := llm.WithRetry(svc, llmCfg.MaxRetries, llmCfg.Timeout, logger)
	return llm.Instrument(retrying, metrics, operation), nil
}

// newCatalog returns the built-in prompts merged with the configured prompt file.
func newCatalog() (*prompt.Catalog, error) {
	catalog := prompt.NewCatalog()
	if cfg.Table.PromptFile != "" {
		if err := catalog.LoadFile(cfg.Table.PromptFile); err != nil {
			return nil, err
		}
	}
	return catalog, nil
}

// newHTTPClient returns a client for one remote API limited to perSecond
// requests per second (0 disables limiting).
func newHTTPClient(httpCfg types.HTTPConfig, perSecond float64) *httputil.Client {
	return &httputil.Client{
		HTTP:       &http.Client{Timeout: httpCfg.Timeout},
		Limiter:    httputil.NewLimiter(perSecond, 1),
		MaxRetries: 1,
		UserAgent:  httpCfg.UserAgent,
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
