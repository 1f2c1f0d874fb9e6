// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/survey-engine/internal/httputil"
	"github.com/pdiddy/survey-engine/pkg/types"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// ArxivProvider queries the arXiv API.
type ArxivProvider struct {
	Client  *httputil.Client
	Grammar QueryGrammar
}

// NewArxivProvider returns a provider using ArxivGrammar.
func NewArxivProvider(client *httputil.Client) *ArxivProvider {
	return &ArxivProvider{Client: client, Grammar: ArxivGrammar}
}

// Name returns the provider identifier.
func (p *ArxivProvider) Name() string { return types.ProviderArxiv }

// BuildQuery renders params with the provider's grammar.
func (p *ArxivProvider) BuildQuery(params types.QueryParameters) string {
	return p.Grammar.Build(params)
}

// Search issues one request for up to maxResults entries, ranked by
// relevance, most relevant first.
func (p *ArxivProvider) Search(ctx context.Context, query string, maxResults int) ([]types.Hit, error) {
	if query == "" {
		return nil, fmt.Errorf("empty arXiv query")
	}
	if maxResults <= 0 {
		maxResults = types.DefaultMaxResults
	}

	params := url.Values{
		"search_query": {query},
		"start":        {"0"},
		"max_results":  {strconv.Itoa(maxResults)},
		"sortBy":       {"relevance"},
		"sortOrder":    {"descending"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, arxivAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := p.Client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arXiv API returned HTTP %d", resp.StatusCode)
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %w", err)
	}

	hits := make([]types.Hit, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		arxivID := extractArxivID(entry.ID)
		if arxivID == "" {
			continue
		}
		hit := types.Hit{
			ID:       arxivID,
			Title:    collapseSpace(entry.Title),
			Abstract: collapseSpace(entry.Summary),
			URL:      strings.TrimSpace(entry.ID),
			DOI:      strings.TrimSpace(entry.DOI),
			Source:   types.ProviderArxiv,
		}
		for _, a := range entry.Authors {
			hit.Authors = append(hit.Authors, strings.TrimSpace(a.Name))
		}
		for _, l := range entry.Links {
			if l.Title == "pdf" {
				hit.PDFURL = l.Href
			}
		}
		hit.Keywords = entry.categories()
		if t, err := time.Parse(time.RFC3339, entry.Published); err == nil {
			hit.Year = t.Year()
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID              string          `xml:"id"`
	Title           string          `xml:"title"`
	Summary         string          `xml:"summary"`
	Published       string          `xml:"published"`
	DOI             string          `xml:"doi"`
	Authors         []arxivAuthor   `xml:"author"`
	Links           []arxivLink     `xml:"link"`
	PrimaryCategory arxivCategory   `xml:"primary_category"`
	Categories      []arxivCategory `xml:"category"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

type arxivLink struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Title string `xml:"title,attr"`
}

type arxivCategory struct {
	Term string `xml:"term,attr"`
}

// categories returns the primary category first, then the others, without
// duplicates.
func (e arxivEntry) categories() []string {
	var out []string
	seen := map[string]bool{}
	for _, c := range append([]arxivCategory{e.PrimaryCategory}, e.Categories...) {
		if c.Term == "" || seen[c.Term] {
			continue
		}
		seen[c.Term] = true
		out = append(out, c.Term)
	}
	return out
}

// extractArxivID pulls the arXiv ID from the entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" -> "2301.07041").
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	id := strings.TrimSpace(idURL[idx+len(prefix):])

	// Strip version suffix (e.g. "v1", "v2").
	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			id = id[:vIdx]
		}
	}
	return id
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
