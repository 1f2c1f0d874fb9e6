// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	papersDir = "papers"
	infoDir   = "info"

	// runTimeLayout names runs at minute granularity.
	runTimeLayout = "2006-01-02_15-04"

	maxFileStem = 150
)

// NewRunID names a search batch by its start minute plus a random suffix, so
// two batches started in the same minute never share a directory.
func NewRunID(now time.Time) string {
	return now.Format(runTimeLayout) + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Layout locates the files of one batch under the results directory:
// downloads in <base>/papers/<run>/ and the export in <base>/info/<run>.csv.
type Layout struct {
	Base  string
	RunID string
}

// PapersDir returns the per-run download directory.
func (l Layout) PapersDir() string {
	return filepath.Join(l.Base, papersDir, l.RunID)
}

// ExportPath returns the path of the batch's tabular export.
func (l Layout) ExportPath() string {
	return filepath.Join(l.Base, infoDir, l.RunID+".csv")
}

// Prepare creates the layout's directories.
func (l Layout) Prepare() error {
	for _, dir := range []string{l.PapersDir(), filepath.Dir(l.ExportPath())} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}

// FileName turns a paper title into a PDF filename: spaces become
// underscores, characters unsafe on common filesystems are dropped, and the
// stem is capped at maxFileStem bytes.
func FileName(title string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.TrimSpace(title) {
		switch {
		case unicode.IsSpace(r):
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
			continue
		case unicode.IsControl(r), strings.ContainsRune(`<>:"/\|?*`, r):
			continue
		}
		b.WriteRune(r)
		lastUnderscore = false
	}

	stem := strings.Trim(b.String(), "._")
	stem = truncateUTF8(stem, maxFileStem)
	if stem == "" {
		stem = "untitled"
	}
	return stem + ".pdf"
}

func truncateUTF8(s string, max int) string {
	if len(s) <= max {
		return s
	}
	s = s[:max]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
