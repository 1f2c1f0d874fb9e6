// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/survey-engine/internal/export"
	"github.com/pdiddy/survey-engine/pkg/types"
)

// FormatTable writes a batch as a human-readable table to w.
func FormatTable(b Batch, w io.Writer) {
	if len(b.Papers) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-60s  %-20s  %-4s  %-8s  %s\n",
		"Rank", "Title", "Authors", "Year", "Full text", "Columns")
	fmt.Fprintln(w, strings.Repeat("-", 110))

	for i, p := range b.Papers {
		fmt.Fprintf(w, "%-4d  %-60s  %-20s  %-4s  %-8s  %s\n",
			i+1, truncate(p.Record.Title, 60), formatAuthors(export.SplitAuthors(p.Record.Author)),
			p.Record.YearString(), fullTextStatus(p), columnStatus(p, len(b.Columns)))
	}

	fmt.Fprintf(w, "\n%d results", len(b.Papers))
	if b.Filtered > 0 {
		fmt.Fprintf(w, " (%d outside the year range)", b.Filtered)
	}
	fmt.Fprintln(w)
	if b.ExportPath != "" {
		fmt.Fprintf(w, "export: %s\n", b.ExportPath)
	}
}

// jsonPaper is the JSON shape of one batch entry.
type jsonPaper struct {
	types.PaperRecord
	FetchError     string   `json:"fetch_error,omitempty"`
	MissingColumns []string `json:"missing_columns,omitempty"`
}

// FormatJSON writes the batch's papers as indented JSON to w.
func FormatJSON(b Batch, w io.Writer) error {
	out := make([]jsonPaper, len(b.Papers))
	for i, p := range b.Papers {
		out[i] = jsonPaper{PaperRecord: p.Record, MissingColumns: p.MissingColumns}
		if p.FetchErr != nil {
			out[i].FetchError = p.FetchErr.Error()
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func fullTextStatus(p Paper) string {
	switch {
	case p.Skipped:
		return "skipped"
	case p.FetchErr != nil:
		return "failed"
	case p.Record.PDFPath != "":
		return "ok"
	default:
		return "-"
	}
}

func columnStatus(p Paper, n int) string {
	if n == 0 {
		return "-"
	}
	return fmt.Sprintf("%d/%d", len(p.Record.ExtraColumns), n)
}

func formatAuthors(authors []string) string {
	switch len(authors) {
	case 0:
		return ""
	case 1:
		return truncate(authors[0], 20)
	default:
		return truncate(authors[0], 14) + " et al."
	}
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-3]) + "..."
}
