// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"strings"

	"github.com/pdiddy/survey-engine/pkg/types"
)

// Filter narrows a batch after the fact. Zero fields do not filter.
type Filter struct {
	// Authors keeps records naming any of these authors (case-insensitive
	// substring of the author field).
	Authors []string

	// Keywords keeps records mentioning any of these terms in the title,
	// abstract or keywords.
	Keywords []string

	// YearFrom and YearTo bound the publication year inclusively. Records of
	// unknown year fail any bound.
	YearFrom int
	YearTo   int
}

// IsZero reports whether f filters nothing.
func (f Filter) IsZero() bool {
	return len(f.Authors) == 0 && len(f.Keywords) == 0 && f.YearFrom == 0 && f.YearTo == 0
}

// Refine returns the records matching every set criterion, in their
// original order.
func Refine(records []types.PaperRecord, f Filter) []types.PaperRecord {
	if f.IsZero() {
		return records
	}
	out := make([]types.PaperRecord, 0, len(records))
	for _, r := range records {
		if f.matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// RefineBatch applies f to a batch's papers, keeping their recorded gaps.
func RefineBatch(b Batch, f Filter) Batch {
	if f.IsZero() {
		return b
	}
	kept := make([]Paper, 0, len(b.Papers))
	for _, p := range b.Papers {
		if f.matches(p.Record) {
			kept = append(kept, p)
		}
	}
	b.Papers = kept
	return b
}

func (f Filter) matches(r types.PaperRecord) bool {
	if f.YearFrom != 0 || f.YearTo != 0 {
		if r.Year == types.UnknownYear {
			return false
		}
		if f.YearFrom != 0 && r.Year < f.YearFrom {
			return false
		}
		if f.YearTo != 0 && r.Year > f.YearTo {
			return false
		}
	}
	if len(f.Authors) > 0 && !containsAny(r.Author, f.Authors) {
		return false
	}
	if len(f.Keywords) > 0 && !containsAny(r.Title+"\n"+r.Abstract+"\n"+r.Keywords, f.Keywords) {
		return false
	}
	return true
}

func containsAny(haystack string, needles []string) bool {
	haystack = strings.ToLower(haystack)
	for _, n := range needles {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" && strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
