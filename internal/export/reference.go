// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package export

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/survey-engine/pkg/types"
)

// Style names a reference format.
type Style string

const (
	StyleAPA Style = "apa"
	StyleMLA Style = "mla"
)

// ParseStyle accepts "apa" or "mla" in any case.
func ParseStyle(s string) (Style, error) {
	switch st := Style(strings.ToLower(strings.TrimSpace(s))); st {
	case StyleAPA, StyleMLA:
		return st, nil
	default:
		return "", fmt.Errorf("unknown reference style %q (want apa or mla)", s)
	}
}

// FormatReference renders r as a single reference string. Records carry no
// venue, volume or page data, so references list authors, year, title and URL.
func FormatReference(r types.PaperRecord, style Style) string {
	switch style {
	case StyleMLA:
		return formatMLA(r)
	default:
		return formatAPA(r)
	}
}

// formatAPA: Vaswani, A., Shazeer, N., & Parmar, N. (2017). Title. URL
func formatAPA(r types.PaperRecord) string {
	names := SplitAuthors(r.Author)
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = apaName(parseAuthorName(n))
	}

	var b strings.Builder
	switch len(parts) {
	case 0:
	case 1:
		b.WriteString(parts[0])
	case 2:
		b.WriteString(parts[0] + ", & " + parts[1])
	default:
		b.WriteString(strings.Join(parts[:len(parts)-1], ", ") + ", & " + parts[len(parts)-1])
	}
	year := "n.d."
	if r.Year != types.UnknownYear {
		year = fmt.Sprint(r.Year)
	}
	if b.Len() > 0 {
		b.WriteString(" ")
	}
	fmt.Fprintf(&b, "(%s). %s.", year, strings.TrimSuffix(r.Title, "."))
	if u := known(r.URL); u != "" {
		b.WriteString(" " + u)
	}
	return b.String()
}

func apaName(n CSLName) string {
	if n.Literal != "" {
		return n.Literal
	}
	var initials []string
	for _, g := range strings.Fields(n.Given) {
		r, _ := utf8.DecodeRuneInString(g)
		initials = append(initials, string(r)+".")
	}
	return n.Family + ", " + strings.Join(initials, " ")
}

// formatMLA: Vaswani, Ashish, et al. "Title." 2017, URL.
func formatMLA(r types.PaperRecord) string {
	names := SplitAuthors(r.Author)

	var b strings.Builder
	switch len(names) {
	case 0:
	case 1:
		b.WriteString(mlaName(parseAuthorName(names[0])) + ". ")
	case 2:
		b.WriteString(mlaName(parseAuthorName(names[0])) + ", and " + names[1] + ". ")
	default:
		b.WriteString(mlaName(parseAuthorName(names[0])) + ", et al. ")
	}
	b.WriteString(`"` + strings.TrimSuffix(r.Title, ".") + `."`)

	var tail []string
	if r.Year != types.UnknownYear {
		tail = append(tail, fmt.Sprint(r.Year))
	}
	if u := known(r.URL); u != "" {
		tail = append(tail, u)
	}
	if len(tail) > 0 {
		b.WriteString(" " + strings.Join(tail, ", ") + ".")
	}
	return b.String()
}

func mlaName(n CSLName) string {
	if n.Literal != "" {
		return n.Literal
	}
	return n.Family + ", " + n.Given
}
