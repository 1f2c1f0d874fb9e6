// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package export

import (
	"io"
	"strconv"
	"strings"
	"unicode"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/survey-engine/pkg/types"
)

// CSLItem represents a bibliographic entry in CSL (Citation Style Language)
// format. The field names and structure follow the CSL-YAML schema so that
// output is consumable by Pandoc and reference managers.
type CSLItem struct {
	ID       string    `yaml:"id"`
	Type     string    `yaml:"type"`
	Title    string    `yaml:"title"`
	Author   []CSLName `yaml:"author,omitempty"`
	Abstract string    `yaml:"abstract,omitempty"`
	Issued   *CSLDate  `yaml:"issued,omitempty"`
	URL      string    `yaml:"URL,omitempty"`
}

// CSLName represents a person's name in CSL format.
type CSLName struct {
	Family  string `yaml:"family,omitempty"`
	Given   string `yaml:"given,omitempty"`
	Literal string `yaml:"literal,omitempty"`
}

// CSLDate represents a date in CSL format using date-parts.
type CSLDate struct {
	DateParts [][]int `yaml:"date-parts"`
}

// WriteCSL writes records as a CSL-YAML list to w. Citation keys are
// "<family><year>" with a letter suffix on collision.
func WriteCSL(records []types.PaperRecord, w io.Writer) error {
	items := make([]CSLItem, len(records))
	used := make(map[string]int)
	for i, r := range records {
		items[i] = toCSLItem(r)
		base := items[i].ID
		used[base]++
		if n := used[base]; n > 1 {
			items[i].ID = base + string(rune('a'+n-2))
		}
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(items)
}

func toCSLItem(r types.PaperRecord) CSLItem {
	item := CSLItem{
		Type:     "article",
		Title:    r.Title,
		Abstract: known(r.Abstract),
		URL:      known(r.URL),
	}
	for _, a := range SplitAuthors(r.Author) {
		item.Author = append(item.Author, parseAuthorName(a))
	}
	if r.Year != types.UnknownYear {
		item.Issued = &CSLDate{DateParts: [][]int{{r.Year}}}
	}
	item.ID = citationKey(item)
	return item
}

func citationKey(item CSLItem) string {
	var stem string
	if len(item.Author) > 0 {
		stem = item.Author[0].Family
		if stem == "" {
			stem = item.Author[0].Literal
		}
	}
	if stem == "" {
		if fields := strings.Fields(item.Title); len(fields) > 0 {
			stem = fields[0]
		}
	}
	var b strings.Builder
	for _, r := range strings.ToLower(stem) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	key := b.String()
	if key == "" {
		key = "item"
	}
	if item.Issued != nil {
		key += strconv.Itoa(item.Issued.DateParts[0][0])
	}
	return key
}

// parseAuthorName splits a full name string into CSL family/given parts.
// It splits on the last space: everything before is given, the last token
// is family. Single-token names use the literal field.
func parseAuthorName(name string) CSLName {
	name = strings.TrimSpace(name)
	if name == "" {
		return CSLName{}
	}
	idx := strings.LastIndex(name, " ")
	if idx < 0 {
		return CSLName{Literal: name}
	}
	return CSLName{
		Given:  name[:idx],
		Family: name[idx+1:],
	}
}

// SplitAuthors splits a comma-joined author field. The Unknown sentinel
// yields no authors.
func SplitAuthors(author string) []string {
	if known(author) == "" {
		return nil
	}
	var out []string
	for _, a := range strings.Split(author, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

func known(s string) string {
	if s == types.Unknown {
		return ""
	}
	return strings.TrimSpace(s)
}
