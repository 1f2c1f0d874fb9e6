// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"strings"

	"github.com/pdiddy/survey-engine/pkg/types"
)

// Provider is one paper-search backend. Each provider owns its query
// grammar, since arXiv-style field prefixes mean nothing to a free-text
// index.
type Provider interface {
	Name() string
	BuildQuery(params types.QueryParameters) string
	Search(ctx context.Context, query string, maxResults int) ([]types.Hit, error)
}

// CitationSource is implemented by providers that can list the papers citing
// a given paper.
type CitationSource interface {
	Citing(ctx context.Context, paperID string, maxResults int) ([]types.Hit, error)
}

// QueryGrammar describes how a provider combines query terms: keywords
// first, then authors, institutions and conferences, each with its field
// prefix, joined by Separator. Quote wraps multi-word terms in double quotes.
type QueryGrammar struct {
	Separator         string
	AuthorPrefix      string
	InstitutionPrefix string
	ConferencePrefix  string
	Quote             bool
}

// ArxivGrammar is the arXiv API search_query syntax.
var ArxivGrammar = QueryGrammar{
	Separator:         " AND ",
	AuthorPrefix:      "au:",
	InstitutionPrefix: "inst:",
	ConferencePrefix:  "co:",
	Quote:             true,
}

// FreeGrammar joins bare terms with spaces, for full-text indexes.
var FreeGrammar = QueryGrammar{Separator: " "}

// Build renders params in this grammar. Years are never part of the query;
// they are applied as a post-filter.
func (g QueryGrammar) Build(params types.QueryParameters) string {
	var parts []string
	add := func(prefix string, terms []string) {
		for _, t := range terms {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			if g.Quote && strings.ContainsAny(t, " \t") {
				t = `"` + strings.ReplaceAll(t, `"`, "") + `"`
			}
			parts = append(parts, prefix+t)
		}
	}
	add("", params.Keywords)
	add(g.AuthorPrefix, params.Authors)
	add(g.InstitutionPrefix, params.Institutions)
	add(g.ConferencePrefix, params.Conferences)
	return strings.Join(parts, g.Separator)
}
