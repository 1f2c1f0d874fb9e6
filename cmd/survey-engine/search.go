// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/survey-engine/internal/acquire"
	"github.com/pdiddy/survey-engine/internal/history"
	"github.com/pdiddy/survey-engine/internal/params"
	"github.com/pdiddy/survey-engine/internal/pdftext"
	"github.com/pdiddy/survey-engine/internal/search"
	"github.com/pdiddy/survey-engine/internal/table"
	"github.com/pdiddy/survey-engine/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search for papers and build a survey table",
	Long: `Search retrieves papers matching a research request from one provider
(arXiv, Google Scholar through SerpAPI, or Semantic Scholar), keeps hits
within the requested year range, downloads each paper's full text, and fills
the requested survey table columns with the language model.

Parameters come from a saved file (--params), from explicit flags
(--keywords, --authors, ...), or from a free-text query that is first run
through parameter extraction. The batch is written to
<results>/info/<run>.csv with full texts under <results>/papers/<run>/.`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().String("params", "", "parameters file written by extract-params")
	searchCmd.Flags().StringSlice("keywords", nil, "topic keywords")
	searchCmd.Flags().StringSlice("authors", nil, "author names")
	searchCmd.Flags().StringSlice("institutions", nil, "institution names")
	searchCmd.Flags().StringSlice("conferences", nil, "conference or venue names")
	searchCmd.Flags().Int("from", 0, "earliest publication year")
	searchCmd.Flags().Int("to", 0, "latest publication year")
	searchCmd.Flags().String("citing", "", "list papers citing this Semantic Scholar paper ID instead of searching")

	searchCmd.Flags().String("provider", "", "search provider: arxiv, scholar, semantic_scholar")
	searchCmd.Flags().Int("max-results", 0, "maximum number of papers (default 10)")
	searchCmd.Flags().StringSlice("columns", nil, "survey table columns (e.g. methodology,limitations)")
	searchCmd.Flags().Bool("skip-download", false, "do not fetch full texts; no survey table is built")
	searchCmd.Flags().String("results-dir", "", "base directory for papers/ and info/ (default results)")
	searchCmd.Flags().Bool("no-history", false, "do not record the batch in the history database")

	searchCmd.Flags().StringSlice("require-author", nil, "keep only papers with one of these authors")
	searchCmd.Flags().StringSlice("require-keyword", nil, "keep only papers mentioning one of these keywords")
	searchCmd.Flags().String("format", "table", "output format: table or json")

	searchCmd.Flags().String("model", "", "override the configured model")
	searchCmd.Flags().String("backend", "", "override the configured backend: remote or local")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	searchCfg := searchConfigFromFlags(cmd)
	if err := types.Validate(searchCfg); err != nil {
		return err
	}
	columns := cfg.Table.Columns
	if cmd.Flags().Changed("columns") {
		columns, _ = cmd.Flags().GetStringSlice("columns")
	}
	format, _ := cmd.Flags().GetString("format")
	if format != "table" && format != "json" {
		return fmt.Errorf("unsupported format %q: use table or json", format)
	}

	llmCfg := llmConfigFromFlags(cmd)
	query, qp, err := searchParams(cmd, args, llmCfg)
	if err != nil {
		return err
	}

	provider, err := newProvider(searchCfg)
	if err != nil {
		return err
	}

	opts := search.Options{
		Provider:    provider,
		ResultsDir:  searchCfg.ResultsDir,
		Concurrency: searchCfg.Concurrency,
		Metrics:     metrics,
		Logger:      logger,
		Progress:    os.Stderr,
	}
	if !searchCfg.SkipDownload {
		fetchClient := newHTTPClient(searchCfg.HTTPConfig, 0)
		opts.Fetcher = acquire.NewHTTPFetcher(fetchClient, acquire.DefaultMaxBytes)
		opts.Text = pdftext.Extractor{}
		if len(columns) > 0 {
			svc, err := newCompletion(llmCfg, "table_column")
			if err != nil {
				return err
			}
			catalog, err := newCatalog()
			if err != nil {
				return err
			}
			opts.Table = table.NewBuilder(svc, catalog, metrics, logger)
		}
	}

	noHistory, _ := cmd.Flags().GetBool("no-history")
	if cfg.History.Enabled && !noHistory {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			logger.Warn().Err(err).Msg("history unavailable, batch will not be recorded")
		} else {
			defer store.Close()
			opts.Recorder = store
		}
	}

	citing, _ := cmd.Flags().GetString("citing")
	authors, _ := cmd.Flags().GetStringSlice("require-author")
	keywords, _ := cmd.Flags().GetStringSlice("require-keyword")
	batch, err := search.New(opts).Run(ctx, search.Request{
		Query:         query,
		Params:        qp,
		MaxResults:    searchCfg.MaxResults,
		Columns:       columns,
		CitingPaperID: citing,
		Refine:        search.Filter{Authors: authors, Keywords: keywords},
	})
	if err != nil {
		return err
	}

	if format == "json" {
		if err := search.FormatJSON(batch, os.Stdout); err != nil {
			return err
		}
	} else {
		search.FormatTable(batch, os.Stdout)
	}
	fmt.Fprintf(os.Stderr, "Export written to %s\n", batch.ExportPath)
	return nil
}

// searchParams resolves the query parameters from, in order: a parameters
// file, explicit flags, or extraction over the free-text query.
func searchParams(cmd *cobra.Command, args []string, llmCfg types.LLMConfig) (string, types.QueryParameters, error) {
	query := strings.Join(args, " ")

	if path, _ := cmd.Flags().GetString("params"); path != "" {
		f, err := params.ReadFile(path)
		if err != nil {
			return "", types.QueryParameters{}, err
		}
		if query == "" {
			query = f.Query
		}
		return query, f.Parameters, nil
	}

	var qp types.QueryParameters
	qp.Keywords, _ = cmd.Flags().GetStringSlice("keywords")
	qp.Authors, _ = cmd.Flags().GetStringSlice("authors")
	qp.Institutions, _ = cmd.Flags().GetStringSlice("institutions")
	qp.Conferences, _ = cmd.Flags().GetStringSlice("conferences")
	from, _ := cmd.Flags().GetInt("from")
	to, _ := cmd.Flags().GetInt("to")
	years, err := types.YearSpan(from, to)
	if err != nil {
		return "", qp, fmt.Errorf("--from/--to: %w", err)
	}
	qp.YearRange = years

	citing, _ := cmd.Flags().GetString("citing")
	if !qp.IsEmpty() || query == "" || citing != "" {
		return query, qp, nil
	}

	f, err := extractParams(cmd.Context(), llmCfg, query)
	if err != nil {
		return "", qp, err
	}
	extracted := f.Parameters
	if len(years) > 0 {
		extracted.YearRange = years
	}
	return query, extracted, nil
}

func searchConfigFromFlags(cmd *cobra.Command) types.SearchConfig {
	sc := cfg.Search
	if v, _ := cmd.Flags().GetString("provider"); v != "" {
		sc.Provider = v
	}
	if v, _ := cmd.Flags().GetInt("max-results"); v > 0 {
		sc.MaxResults = v
	}
	if v, _ := cmd.Flags().GetString("results-dir"); v != "" {
		sc.ResultsDir = v
	}
	if cmd.Flags().Changed("skip-download") {
		sc.SkipDownload, _ = cmd.Flags().GetBool("skip-download")
	}
	return sc
}

// newProvider builds the configured search provider behind its own rate limiter.
func newProvider(sc types.SearchConfig) (search.Provider, error) {
	client := newHTTPClient(sc.HTTPConfig, sc.RequestsPerSecond)
	switch sc.Provider {
	case types.ProviderArxiv:
		return search.NewArxivProvider(client), nil
	case types.ProviderScholar:
		if sc.SerpAPIKey == "" {
			return nil, fmt.Errorf("%w: scholar provider needs a SerpAPI key", types.ErrInvalidConfig)
		}
		return search.NewScholarProvider(client, sc.SerpAPIKey), nil
	case types.ProviderSemanticScholar:
		return search.NewSemanticScholarProvider(client, sc.SemanticScholarAPIKey), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", types.ErrInvalidConfig, sc.Provider)
	}
}
