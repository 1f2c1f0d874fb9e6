// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package params turns a language model's answer to the keyword-extraction
// prompt into structured QueryParameters. Parsing never fails: malformed
// output degrades to empty fields.
package params

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/pdiddy/survey-engine/pkg/types"
)

type field int

const (
	fieldKeywords field = iota
	fieldYearRange
	fieldAuthors
	fieldInstitutions
	fieldConferences
)

// fieldNames is checked in order; the first name contained in a line wins.
var fieldNames = []struct {
	name  string
	field field
}{
	{"keywords", fieldKeywords},
	{"year range", fieldYearRange},
	{"authors", fieldAuthors},
	{"institutions", fieldInstitutions},
	{"conferences", fieldConferences},
}

// Parse scans model output line by line. A line naming a field (matched
// case-insensitively) contributes the comma-separated items between its
// first '[' and last ']'. Items keep their original case; surrounding
// whitespace and quotes are removed and empty items are dropped. Lines
// without a well-formed bracket pair leave the field untouched. When several
// lines name the same field, the last one wins.
func Parse(output string) types.QueryParameters {
	p := types.QueryParameters{
		Keywords:     []string{},
		YearRange:    []int{},
		Authors:      []string{},
		Institutions: []string{},
		Conferences:  []string{},
	}

	for _, line := range strings.Split(output, "\n") {
		f, ok := matchField(line)
		if !ok {
			continue
		}
		items, ok := bracketItems(line)
		if !ok {
			continue
		}
		switch f {
		case fieldKeywords:
			p.Keywords = items
		case fieldYearRange:
			p.YearRange = parseYears(items)
		case fieldAuthors:
			p.Authors = items
		case fieldInstitutions:
			p.Institutions = items
		case fieldConferences:
			p.Conferences = items
		}
	}
	return p
}

func matchField(line string) (field, bool) {
	lower := strings.ToLower(line)
	for _, fn := range fieldNames {
		if strings.Contains(lower, fn.name) {
			return fn.field, true
		}
	}
	return 0, false
}

// bracketItems returns the cleaned items of the bracketed list on line.
func bracketItems(line string) ([]string, bool) {
	start := strings.Index(line, "[")
	end := strings.LastIndex(line, "]")
	if start < 0 || end < 0 || end < start {
		return nil, false
	}
	items := []string{}
	for _, raw := range strings.Split(line[start+1:end], ",") {
		if item := cleanItem(raw); item != "" {
			items = append(items, item)
		}
	}
	return items, true
}

func cleanItem(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `'"`)
	return strings.TrimSpace(s)
}

func parseYears(items []string) []int {
	years := make([]int, 0, len(items))
	for _, item := range items {
		if y, err := strconv.Atoi(item); err == nil {
			years = append(years, y)
		}
	}
	return types.YearSet(years)
}

// structured is the JSON shape requested from services that support
// constrained output.
type structured struct {
	Keywords     []string `json:"keywords"`
	YearRange    []any    `json:"year_range"`
	Authors      []string `json:"authors"`
	Institutions []string `json:"institutions"`
	Conferences  []string `json:"conferences"`
}

// ParseJSON decodes the structured form of the parameters. Code fences or
// prose around the object are ignored. Years may be numbers or numeric
// strings; anything else is dropped.
func ParseJSON(output string) (types.QueryParameters, error) {
	start := strings.Index(output, "{")
	end := strings.LastIndex(output, "}")
	if start < 0 || end < start {
		return types.QueryParameters{}, fmt.Errorf("no JSON object in model output")
	}

	var s structured
	if err := json.Unmarshal([]byte(output[start:end+1]), &s); err != nil {
		return types.QueryParameters{}, fmt.Errorf("decoding parameters: %w", err)
	}

	var years []int
	for _, v := range s.YearRange {
		switch y := v.(type) {
		case float64:
			years = append(years, int(y))
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(y)); err == nil {
				years = append(years, n)
			}
		}
	}

	return types.QueryParameters{
		Keywords:     cleanAll(s.Keywords),
		YearRange:    types.YearSet(years),
		Authors:      cleanAll(s.Authors),
		Institutions: cleanAll(s.Institutions),
		Conferences:  cleanAll(s.Conferences),
	}, nil
}

func cleanAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if c := cleanItem(s); c != "" {
			out = append(out, c)
		}
	}
	return out
}
