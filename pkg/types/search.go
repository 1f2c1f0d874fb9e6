// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the survey-engine pipeline:
// the structured query parameters extracted from a researcher's request, the
// raw hits returned by search providers, the normalized paper records written
// to the batch export, and the configuration for every stage.
package types

import (
	"fmt"
	"sort"
)

// QueryParameters is the structured form of a researcher's request. All fields
// default to empty. A value is built once by the parameter extractor and is
// not mutated afterwards.
type QueryParameters struct {
	// Keywords are free-text topic terms in extraction order.
	Keywords []string `json:"keywords" yaml:"keywords"`

	// YearRange is the set of requested publication years, ascending and
	// de-duplicated. Only its minimum and maximum matter for filtering.
	YearRange []int `json:"year_range" yaml:"year_range"`

	// Authors are author names in extraction order.
	Authors []string `json:"authors" yaml:"authors"`

	// Institutions are affiliation names in extraction order.
	Institutions []string `json:"institutions" yaml:"institutions"`

	// Conferences are venue names in extraction order.
	Conferences []string `json:"conferences" yaml:"conferences"`
}

// IsEmpty reports whether no searchable term is present. A year range on its
// own is a filter, not a query.
func (p QueryParameters) IsEmpty() bool {
	return len(p.Keywords) == 0 && len(p.Authors) == 0 &&
		len(p.Institutions) == 0 && len(p.Conferences) == 0
}

// YearBounds returns the inclusive minimum and maximum of the year range.
// ok is false when no year range was requested.
func (p QueryParameters) YearBounds() (lo, hi int, ok bool) {
	if len(p.YearRange) == 0 {
		return 0, 0, false
	}
	lo, hi = p.YearRange[0], p.YearRange[0]
	for _, y := range p.YearRange[1:] {
		if y < lo {
			lo = y
		}
		if y > hi {
			hi = y
		}
	}
	return lo, hi, true
}

// Plausible publication years for a requested range.
const (
	MinYear = 1000
	MaxYear = 2999
)

// YearSpan expands from and to into the inclusive list of years. A zero
// bound takes the other's value; both zero means no range. Bounds outside
// MinYear..MaxYear or in reverse order are rejected.
func YearSpan(from, to int) ([]int, error) {
	switch {
	case from == 0 && to == 0:
		return nil, nil
	case from == 0:
		from = to
	case to == 0:
		to = from
	}
	for _, y := range []int{from, to} {
		if y < MinYear || y > MaxYear {
			return nil, fmt.Errorf("year %d outside %d..%d", y, MinYear, MaxYear)
		}
	}
	if from > to {
		return nil, fmt.Errorf("year range %d..%d is reversed", from, to)
	}
	years := make([]int, 0, to-from+1)
	for y := from; y <= to; y++ {
		years = append(years, y)
	}
	return years, nil
}

// YearSet normalizes a list of years into an ascending set without duplicates.
// A nil or empty input yields an empty, non-nil slice.
func YearSet(years []int) []int {
	seen := make(map[int]bool, len(years))
	out := make([]int, 0, len(years))
	for _, y := range years {
		if seen[y] {
			continue
		}
		seen[y] = true
		out = append(out, y)
	}
	sort.Ints(out)
	return out
}

// Hit is one search result as reported by a provider, before normalization.
// Providers fill what their schema carries and leave the rest zero.
type Hit struct {
	// ID is the provider's identifier (arXiv ID, Scholar result ID, S2 paper ID).
	ID string `json:"id" yaml:"id"`

	// Title is the paper title.
	Title string `json:"title" yaml:"title"`

	// Year is the publication year, 0 when the provider does not report one.
	Year int `json:"year" yaml:"year"`

	// Authors lists author names in source order.
	Authors []string `json:"authors" yaml:"authors"`

	// URL is the landing page for the paper.
	URL string `json:"url" yaml:"url"`

	// PDFURL is a direct link to the full text, if the provider knows one.
	PDFURL string `json:"pdf_url" yaml:"pdf_url"`

	// DOI is the digital object identifier, when known.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// Abstract is the summary or snippet returned by the provider.
	Abstract string `json:"abstract" yaml:"abstract"`

	// Keywords are subject terms or categories attached by the provider.
	Keywords []string `json:"keywords" yaml:"keywords"`

	// Source names the provider that produced the hit (e.g. "arxiv").
	Source string `json:"source" yaml:"source"`
}
