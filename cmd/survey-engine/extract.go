// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/survey-engine/internal/params"
	"github.com/pdiddy/survey-engine/pkg/types"
)

var extractCmd = &cobra.Command{
	Use:   "extract-params [query]",
	Short: "Extract structured search parameters from a research request",
	Long: `Extract-params asks the configured language model to classify a
natural-language research request into keywords, a year range, authors,
institutions and conferences. The result is printed as YAML and can be saved
with --out for use by search --params.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().String("out", "", "write the parameters file here instead of stdout")
	extractCmd.Flags().String("model", "", "override the configured model")
	extractCmd.Flags().String("backend", "", "override the configured backend: remote or local")

	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	llmCfg := llmConfigFromFlags(cmd)

	file, err := extractParams(cmd.Context(), llmCfg, query)
	if err != nil {
		return err
	}

	out, _ := cmd.Flags().GetString("out")
	if out != "" {
		if err := params.WriteFile(out, *file); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Parameters written to %s\n", out)
		return nil
	}
	data, err := yaml.Marshal(file)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

// extractParams runs the parameter extractor once against query.
func extractParams(ctx context.Context, llmCfg types.LLMConfig, query string) (*params.File, error) {
	svc, err := newCompletion(llmCfg, "extract_params")
	if err != nil {
		return nil, err
	}
	catalog, err := newCatalog()
	if err != nil {
		return nil, err
	}
	res, err := params.NewExtractor(svc, catalog, logger).Extract(ctx, query)
	if err != nil {
		return nil, err
	}
	logger.Debug().Bool("structured", res.Structured).Str("model", svc.Model()).Msg("parameters extracted")
	return &params.File{
		Query:       query,
		Model:       svc.Model(),
		ExtractedAt: time.Now().UTC(),
		Parameters:  res.Params,
		Raw:         res.Raw,
	}, nil
}

// llmConfigFromFlags applies --backend and --model overrides to the
// configured LLM section.
func llmConfigFromFlags(cmd *cobra.Command) types.LLMConfig {
	llmCfg := cfg.LLM
	if backend, _ := cmd.Flags().GetString("backend"); backend != "" {
		llmCfg.Backend = types.LLMBackend(backend)
		if backend != string(cfg.LLM.Backend) {
			llmCfg.Model = types.DefaultRemoteModel
			if llmCfg.Backend == types.BackendLocal {
				llmCfg.Model = types.DefaultLocalModel
			}
		}
	}
	if model, _ := cmd.Flags().GetString("model"); model != "" {
		llmCfg.Model = model
	}
	return llmCfg
}
