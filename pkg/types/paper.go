// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "strconv"

// Unknown is written in place of any field a provider could not supply.
const Unknown = "N/A"

// UnknownYear marks a record whose publication year is not known.
const UnknownYear = 0

// PaperRecord is the normalized, provider-independent view of a search hit.
// Every field is set: missing values carry the Unknown sentinel. ExtraColumns
// is filled by the survey table builder and is keyed by the requested column
// names.
type PaperRecord struct {
	// Title is the paper title.
	Title string `json:"title" yaml:"title"`

	// Year is the publication year, or UnknownYear.
	Year int `json:"year" yaml:"year"`

	// Author is the comma-joined author list.
	Author string `json:"author" yaml:"author"`

	// URL points at the full text when available, otherwise the landing page.
	URL string `json:"url" yaml:"url"`

	// Abstract is the paper abstract or provider snippet.
	Abstract string `json:"abstract" yaml:"abstract"`

	// Keywords is the "keywords: a, b" summary of provider subject terms.
	Keywords string `json:"keywords" yaml:"keywords"`

	// ExtraColumns maps survey table column names to extracted values.
	ExtraColumns map[string]string `json:"extra_columns,omitempty" yaml:"extra_columns,omitempty"`

	// Source names the provider the record came from.
	Source string `json:"source" yaml:"source"`

	// PDFURL is the full-text link used for fetching; empty when none exists.
	PDFURL string `json:"-" yaml:"-"`

	// PDFPath is the local path of the fetched full text; empty when the
	// fetch was not attempted or failed.
	PDFPath string `json:"pdf_path,omitempty" yaml:"pdf_path,omitempty"`
}

// YearString renders Year for tabular output.
func (r PaperRecord) YearString() string {
	if r.Year == UnknownYear {
		return Unknown
	}
	return strconv.Itoa(r.Year)
}

// Column returns the value of an extra column, or "" if it is absent.
func (r PaperRecord) Column(name string) string {
	return r.ExtraColumns[name]
}
