// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package export serializes paper records: the per-batch CSV table, CSL-YAML
// bibliographies, and formatted reference strings.
package export

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdiddy/survey-engine/pkg/types"
)

// BOM marks the CSV as UTF-8 for spreadsheet applications.
const BOM = "\xEF\xBB\xBF"

// FixedColumns lead every export, before the survey table columns.
var FixedColumns = []string{"title", "year", "author", "url", "abstract", "keywords"}

// WriteCSV writes records as UTF-8 CSV with a byte order mark. The header is
// FixedColumns followed by columns in the given order.
func WriteCSV(w io.Writer, records []types.PaperRecord, columns []string) error {
	if _, err := io.WriteString(w, BOM); err != nil {
		return fmt.Errorf("writing BOM: %w", err)
	}
	cw := csv.NewWriter(w)
	header := append(append([]string{}, FixedColumns...), columns...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, r := range records {
		row := []string{r.Title, r.YearString(), r.Author, r.URL, r.Abstract, r.Keywords}
		for _, c := range columns {
			row = append(row, r.Column(c))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row %q: %w", r.Title, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the CSV to path. The file appears complete or not at
// all: it is written to a temporary file in the same directory and renamed.
func WriteCSVFile(path string, records []types.PaperRecord, columns []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	bw := bufio.NewWriter(tmp)
	werr := WriteCSV(bw, records, columns)
	if werr == nil {
		werr = bw.Flush()
	}
	if cerr := tmp.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", path, werr)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming export: %w", err)
	}
	return nil
}

// ReadCSV parses an export written by WriteCSV and returns its records and
// survey table column names. A leading BOM is optional.
func ReadCSV(r io.Reader) ([]types.PaperRecord, []string, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(BOM)); err == nil && bytes.Equal(head, []byte(BOM)) {
		br.Discard(len(BOM))
	}

	cr := csv.NewReader(br)
	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("empty export")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading header: %w", err)
	}
	if len(header) < len(FixedColumns) {
		return nil, nil, fmt.Errorf("header has %d fields, want at least %d", len(header), len(FixedColumns))
	}
	for i, want := range FixedColumns {
		if !strings.EqualFold(strings.TrimSpace(header[i]), want) {
			return nil, nil, fmt.Errorf("header field %d is %q, want %q", i+1, header[i], want)
		}
	}
	columns := header[len(FixedColumns):]

	var records []types.PaperRecord
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("reading row %d: %w", len(records)+2, err)
		}
		rec := types.PaperRecord{
			Title:    row[0],
			Year:     parseYear(row[1]),
			Author:   row[2],
			URL:      row[3],
			Abstract: row[4],
			Keywords: row[5],
		}
		for i, c := range columns {
			if v := row[len(FixedColumns)+i]; v != "" {
				if rec.ExtraColumns == nil {
					rec.ExtraColumns = make(map[string]string, len(columns))
				}
				rec.ExtraColumns[c] = v
			}
		}
		records = append(records, rec)
	}
	return records, columns, nil
}

// ReadCSVFile opens path and parses it with ReadCSV.
func ReadCSVFile(path string) ([]types.PaperRecord, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening export: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

func parseYear(s string) int {
	y, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return types.UnknownYear
	}
	return y
}
