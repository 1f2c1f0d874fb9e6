// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/survey-engine/internal/export"
)

var citeCmd = &cobra.Command{
	Use:   "cite <export.csv>",
	Short: "Format a batch as APA or MLA references, or CSL-YAML",
	Long: `Cite reads a batch export and prints one formatted reference per paper in
APA or MLA style, or writes a CSL-YAML bibliography for use with pandoc and
other citation processors.`,
	Args: cobra.ExactArgs(1),
	RunE: runCite,
}

func init() {
	citeCmd.Flags().String("style", "apa", "reference style: apa, mla or csl")
	citeCmd.Flags().String("out", "", "write to this file instead of stdout")

	rootCmd.AddCommand(citeCmd)
}

func runCite(cmd *cobra.Command, args []string) error {
	records, _, err := export.ReadCSVFile(args[0])
	if err != nil {
		return err
	}

	w := os.Stdout
	if out, _ := cmd.Flags().GetString("out"); out != "" {
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	styleName, _ := cmd.Flags().GetString("style")
	if styleName == "csl" {
		return export.WriteCSL(records, w)
	}
	style, err := export.ParseStyle(styleName)
	if err != nil {
		return err
	}
	for _, r := range records {
		if _, err := fmt.Fprintln(w, export.FormatReference(r, style)); err != nil {
			return err
		}
	}
	return nil
}
