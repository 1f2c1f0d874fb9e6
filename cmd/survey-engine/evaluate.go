// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/survey-engine/internal/evaluate"
	"github.com/pdiddy/survey-engine/internal/params"
	"github.com/pdiddy/survey-engine/pkg/types"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Measure parameter-extraction accuracy across models",
	Long: `Evaluate compares how well models extract search parameters. First record
a baseline with "evaluate baseline", which runs the configured model over a
file of queries and saves its answers as the expected parameters. Then
"evaluate run" extracts parameters with each candidate model and reports the
per-field accuracy against the baseline.`,
}

var evaluateBaselineCmd = &cobra.Command{
	Use:   "baseline <queries.txt>",
	Short: "Record expected parameters from the reference model",
	Args:  cobra.ExactArgs(1),
	RunE:  runEvaluateBaseline,
}

var evaluateRunCmd = &cobra.Command{
	Use:   "run <cases.yaml>",
	Short: "Score candidate models against a baseline",
	Args:  cobra.ExactArgs(1),
	RunE:  runEvaluate,
}

func init() {
	evaluateCmd.PersistentFlags().String("backend", "", "override the configured backend: remote or local")

	evaluateBaselineCmd.Flags().String("model", "", "reference model (default: configured model)")
	evaluateBaselineCmd.Flags().String("out", "cases.yaml", "cases file to write")

	evaluateRunCmd.Flags().StringSlice("models", []string{"mistral", "gemma", "llama3"}, "candidate models")
	evaluateRunCmd.Flags().String("report", "", "also write the full reports as YAML here")

	evaluateCmd.AddCommand(evaluateBaselineCmd)
	evaluateCmd.AddCommand(evaluateRunCmd)
	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluateBaseline(cmd *cobra.Command, args []string) error {
	queries, err := evaluate.ReadQueries(args[0])
	if err != nil {
		return err
	}
	ex, err := newExtractor(llmConfigFromFlags(cmd))
	if err != nil {
		return err
	}
	cases, err := evaluate.Baseline(cmd.Context(), ex, queries, os.Stderr)
	if err != nil {
		return err
	}
	out, _ := cmd.Flags().GetString("out")
	if err := evaluate.WriteCases(out, cases); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%d of %d cases written to %s\n", len(cases), len(queries), out)
	return nil
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cases, err := evaluate.LoadCases(args[0])
	if err != nil {
		return err
	}
	models, _ := cmd.Flags().GetStringSlice("models")
	if len(models) == 0 {
		return fmt.Errorf("no models to evaluate")
	}

	base := cfg.LLM
	if backend, _ := cmd.Flags().GetString("backend"); backend != "" {
		base.Backend = types.LLMBackend(backend)
	} else {
		base.Backend = types.BackendLocal
	}

	reports := make([]evaluate.Report, 0, len(models))
	for _, model := range models {
		llmCfg := base
		llmCfg.Model = model
		ex, err := newExtractor(llmCfg)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Evaluating %s on %d cases\n", model, len(cases))
		report, err := evaluate.Run(cmd.Context(), model, ex, cases, os.Stderr)
		if err != nil {
			return err
		}
		reports = append(reports, report)
	}

	evaluate.FormatReports(reports, os.Stdout)

	if path, _ := cmd.Flags().GetString("report"); path != "" {
		data, err := yaml.Marshal(reports)
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func newExtractor(llmCfg types.LLMConfig) (*params.Extractor, error) {
	svc, err := newCompletion(llmCfg, "evaluate")
	if err != nil {
		return nil, err
	}
	catalog, err := newCatalog()
	if err != nil {
		return nil, err
	}
	return params.NewExtractor(svc, catalog, logger), nil
}
