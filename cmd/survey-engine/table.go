// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/survey-engine/internal/acquire"
	"github.com/pdiddy/survey-engine/internal/export"
	"github.com/pdiddy/survey-engine/internal/pdftext"
	"github.com/pdiddy/survey-engine/internal/table"
)

var tableCmd = &cobra.Command{
	Use:   "table <export.csv>",
	Short: "Add or rebuild survey table columns for an existing batch",
	Long: `Table re-reads the full texts downloaded for a batch and fills the given
survey table columns without searching again. Papers are looked up in the
batch's papers directory by their title-derived file name. Columns already
in the export are kept; requested columns are recomputed.`,
	Args: cobra.ExactArgs(1),
	RunE: runTable,
}

func init() {
	tableCmd.Flags().StringSlice("columns", nil, "survey table columns to fill")
	tableCmd.Flags().String("papers-dir", "", "directory holding the batch's PDFs (default derived from the export path)")
	tableCmd.Flags().String("out", "", "write the updated export here instead of overwriting the input")
	tableCmd.Flags().String("model", "", "override the configured model")
	tableCmd.Flags().String("backend", "", "override the configured backend: remote or local")

	rootCmd.AddCommand(tableCmd)
}

func runTable(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	exportPath := args[0]

	columns := cfg.Table.Columns
	if cmd.Flags().Changed("columns") {
		columns, _ = cmd.Flags().GetStringSlice("columns")
	}
	if len(columns) == 0 {
		return fmt.Errorf("no columns requested: use --columns or table.columns in the config")
	}

	records, existing, err := export.ReadCSVFile(exportPath)
	if err != nil {
		return err
	}
	papersDir, _ := cmd.Flags().GetString("papers-dir")
	if papersDir == "" {
		papersDir = batchPapersDir(exportPath)
	}

	svc, err := newCompletion(llmConfigFromFlags(cmd), "table_column")
	if err != nil {
		return err
	}
	catalog, err := newCatalog()
	if err != nil {
		return err
	}
	builder := table.NewBuilder(svc, catalog, metrics, logger)
	if err := builder.Prepare(columns); err != nil {
		return err
	}

	var text pdftext.Extractor
	var incomplete int
	for i := range records {
		r := &records[i]
		path := filepath.Join(papersDir, acquire.FileName(r.Title))
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "skipped %s: no full text at %s\n", r.Title, path)
			incomplete++
			continue
		}
		body, err := text.Extract(ctx, path)
		if err != nil {
			logger.Warn().Err(err).Str("paper", r.Title).Msg("text extraction failed")
			fmt.Fprintf(os.Stderr, "failed  %s: %v\n", r.Title, err)
			incomplete++
			continue
		}
		res := builder.Build(ctx, body, columns)
		if r.ExtraColumns == nil {
			r.ExtraColumns = make(map[string]string, len(columns))
		}
		for _, c := range columns {
			delete(r.ExtraColumns, c)
			if v, ok := res.Values[c]; ok {
				r.ExtraColumns[c] = v
			}
		}
		if len(res.Missing) > 0 {
			incomplete++
			fmt.Fprintf(os.Stderr, "partial %s: missing %s\n", r.Title, strings.Join(res.Missing, ", "))
		} else {
			fmt.Fprintf(os.Stderr, "filled  %s\n", r.Title)
		}
	}

	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		out = exportPath
	}
	if err := export.WriteCSVFile(out, records, mergeColumns(existing, columns)); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "\npapers: %d, incomplete: %d\nExport written to %s\n", len(records), incomplete, out)
	return nil
}

// batchPapersDir maps <results>/info/<run>.csv to <results>/papers/<run>.
func batchPapersDir(exportPath string) string {
	runID := strings.TrimSuffix(filepath.Base(exportPath), filepath.Ext(exportPath))
	results := filepath.Dir(filepath.Dir(exportPath))
	return filepath.Join(results, "papers", runID)
}

// mergeColumns appends the requested columns not already present.
func mergeColumns(existing, requested []string) []string {
	out := slices.Clone(existing)
	for _, c := range requested {
		if !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}
