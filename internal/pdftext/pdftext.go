// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pdftext extracts plain text from downloaded PDF files.
package pdftext

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrNoText is returned when a PDF opens but yields no text on any page,
// which is typical of scanned documents.
var ErrNoText = errors.New("no extractable text in PDF")

// Extractor reads PDFs with github.com/ledongthuc/pdf.
type Extractor struct{}

// Extract returns the plain text of every page of the PDF at path, in page
// order, one page per block. ctx is checked between pages.
func (Extractor) Extract(ctx context.Context, path string) (text string, err error) {
	// The reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reading PDF %s: %v", path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening PDF %s: %w", path, err)
	}
	defer f.Close()

	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pages = append(pages, pageText(page))
	}

	text = joinPages(pages)
	if strings.TrimSpace(text) == "" {
		return "", ErrNoText
	}
	return text, nil
}

// pageText rebuilds a page's lines from its positioned glyphs. The reader's
// plain-text mode only breaks lines at text object boundaries, which merges
// every line of a typeset paragraph.
func pageText(page pdf.Page) string {
	text := pageLines(page.Content().Text)
	if strings.TrimSpace(text) != "" {
		return text
	}
	pt, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return pt
}

// pageLines joins glyphs in content order, starting a new line whenever the
// baseline moves by more than half the font size. Glyphs on one line that
// sit apart by more than a fraction of the font size get a separating space;
// that needs glyph widths, which fonts without a Widths array do not report.
func pageLines(texts []pdf.Text) string {
	var b strings.Builder
	var prev pdf.Text
	for i, t := range texts {
		if i > 0 {
			switch {
			case math.Abs(t.Y-prev.Y) > lineTolerance(t, prev):
				b.WriteByte('\n')
			case prev.W > 0 && t.X-(prev.X+prev.W) > 0.25*t.FontSize &&
				!strings.HasSuffix(prev.S, " ") && !strings.HasPrefix(t.S, " "):
				b.WriteByte(' ')
			}
		}
		b.WriteString(t.S)
		prev = t
	}
	if b.Len() > 0 {
		b.WriteByte('\n')
	}
	return b.String()
}

func lineTolerance(a, b pdf.Text) float64 {
	return math.Max(1, 0.5*math.Max(a.FontSize, b.FontSize))
}

// joinPages concatenates page texts so every page starts on a new line.
func joinPages(pages []string) string {
	var b strings.Builder
	for _, p := range pages {
		b.WriteString(p)
		if !strings.HasSuffix(p, "\n") {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
