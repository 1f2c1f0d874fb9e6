// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/survey-engine/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List and inspect recorded search batches",
	Long: `History reads the SQLite ledger that search writes after every batch:
the request, the provider query, the extracted parameters, the survey
columns and the papers returned.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent batches, newest first",
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one batch and its papers",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

func init() {
	historyCmd.PersistentFlags().String("db", "", "history database (default: history.path from the config)")
	historyListCmd.Flags().Int("limit", 20, "maximum number of batches")
	historyShowCmd.Flags().Bool("json", false, "output the batch as JSON")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}

func openHistory(cmd *cobra.Command) (*history.Store, error) {
	path, _ := cmd.Flags().GetString("db")
	if path == "" {
		path = cfg.History.Path
	}
	if path == "" {
		return nil, fmt.Errorf("history is disabled: set history.enabled or pass --db")
	}
	return history.Open(path)
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	batches, err := store.List(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(batches) == 0 {
		fmt.Println("No batches recorded.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-30s  %-16s  %-16s  %-6s  %s\n", "Run", "Started", "Provider", "Papers", "Query")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))
	for _, b := range batches {
		query := b.Query
		if len(query) > 34 {
			query = query[:31] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-30s  %-16s  %-16s  %-6d  %s\n",
			b.RunID, b.StartedAt.Local().Format("2006-01-02 15:04"), b.Provider, b.PaperCount, query)
	}
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	b, err := store.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(b)
	}

	fmt.Printf("Run:      %s\n", b.RunID)
	fmt.Printf("Started:  %s\n", b.StartedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("Provider: %s\n", b.Provider)
	fmt.Printf("Query:    %s\n", b.Query)
	fmt.Printf("Columns:  %s\n", strings.Join(b.Columns, ", "))
	fmt.Printf("Export:   %s\n\n", b.ExportPath)
	for i, p := range b.Papers {
		fmt.Printf("%3d. %s (%s)\n     %s\n", i+1, p.Title, p.YearString(), p.Author)
		for _, c := range b.Columns {
			if v := p.Column(c); v != "" {
				fmt.Printf("     %s: %s\n", c, v)
			}
		}
	}
	return nil
}
