// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdiddy/survey-engine/internal/httputil"
	"github.com/pdiddy/survey-engine/pkg/types"
)

// serpAPIBase is the SerpAPI endpoint. Declared as a var so tests can
// substitute an httptest server.
var serpAPIBase = "https://serpapi.com/search.json"

// scholarPageSize is the most results SerpAPI returns for one Google
// Scholar request.
const scholarPageSize = 20

// ScholarProvider queries Google Scholar through SerpAPI.
type ScholarProvider struct {
	Client  *httputil.Client
	APIKey  string
	Grammar QueryGrammar
}

// NewScholarProvider returns a provider using FreeGrammar with quoted
// phrases.
func NewScholarProvider(client *httputil.Client, apiKey string) *ScholarProvider {
	g := FreeGrammar
	g.Quote = true
	return &ScholarProvider{Client: client, APIKey: apiKey, Grammar: g}
}

// Name returns the provider identifier.
func (p *ScholarProvider) Name() string { return types.ProviderScholar }

// BuildQuery renders params with the provider's grammar.
func (p *ScholarProvider) BuildQuery(params types.QueryParameters) string {
	return p.Grammar.Build(params)
}

// Search issues one request. maxResults is capped at scholarPageSize.
func (p *ScholarProvider) Search(ctx context.Context, query string, maxResults int) ([]types.Hit, error) {
	if query == "" {
		return nil, fmt.Errorf("empty Scholar query")
	}
	if maxResults <= 0 {
		maxResults = types.DefaultMaxResults
	}
	maxResults = min(maxResults, scholarPageSize)

	params := url.Values{
		"engine":  {"google_scholar"},
		"q":       {query},
		"num":     {strconv.Itoa(maxResults)},
		"api_key": {p.APIKey},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serpAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := p.Client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("SerpAPI request: %w", err)
	}
	defer resp.Body.Close()

	var sr serpResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&sr)
	if resp.StatusCode != http.StatusOK {
		if sr.Error != "" {
			return nil, fmt.Errorf("SerpAPI returned HTTP %d: %s", resp.StatusCode, sr.Error)
		}
		return nil, fmt.Errorf("SerpAPI returned HTTP %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("parsing SerpAPI response: %w", decodeErr)
	}
	if sr.Error != "" {
		// SerpAPI reports "no results" as an error string on a 200.
		if strings.Contains(strings.ToLower(sr.Error), "hasn't returned any results") {
			return nil, nil
		}
		return nil, fmt.Errorf("SerpAPI: %s", sr.Error)
	}

	hits := make([]types.Hit, 0, len(sr.OrganicResults))
	for _, r := range sr.OrganicResults {
		hit := types.Hit{
			ID:       r.ResultID,
			Title:    collapseSpace(r.Title),
			URL:      r.Link,
			Abstract: collapseSpace(r.Snippet),
			Year:     summaryYear(r.PublicationInfo.Summary),
			Source:   types.ProviderScholar,
		}
		for _, a := range r.PublicationInfo.Authors {
			hit.Authors = append(hit.Authors, a.Name)
		}
		if len(hit.Authors) == 0 {
			hit.Authors = summaryAuthors(r.PublicationInfo.Summary)
		}
		for _, res := range r.Resources {
			if strings.EqualFold(res.FileFormat, "PDF") {
				hit.PDFURL = res.Link
				break
			}
		}
		hits = append(hits, hit)
		if len(hits) == maxResults {
			break
		}
	}
	return hits, nil
}

// SerpAPI google_scholar JSON structures.
type serpResponse struct {
	Error          string       `json:"error"`
	OrganicResults []serpResult `json:"organic_results"`
}

type serpResult struct {
	ResultID        string          `json:"result_id"`
	Title           string          `json:"title"`
	Link            string          `json:"link"`
	Snippet         string          `json:"snippet"`
	PublicationInfo serpPublication `json:"publication_info"`
	Resources       []serpResource  `json:"resources"`
}

type serpPublication struct {
	Summary string       `json:"summary"`
	Authors []serpAuthor `json:"authors"`
}

type serpAuthor struct {
	Name string `json:"name"`
}

type serpResource struct {
	Title      string `json:"title"`
	FileFormat string `json:"file_format"`
	Link       string `json:"link"`
}

var yearPattern = regexp.MustCompile(`\b(1[89]\d{2}|20\d{2})\b`)

// summaryYear finds the year in a Scholar publication summary such as
// "A Vaswani, N Shazeer - Advances in neural information processing systems, 2017 - proceedings.neurips.cc".
// The venue segment is searched first, then the whole summary.
func summaryYear(summary string) int {
	segments := strings.Split(summary, " - ")
	candidates := []string{summary}
	if len(segments) >= 2 {
		candidates = []string{segments[1], summary}
	}
	for _, c := range candidates {
		if m := yearPattern.FindAllString(c, -1); len(m) > 0 {
			y, _ := strconv.Atoi(m[len(m)-1])
			return y
		}
	}
	return types.UnknownYear
}

// summaryAuthors reads the author segment of a publication summary.
func summaryAuthors(summary string) []string {
	segment, _, ok := strings.Cut(summary, " - ")
	if !ok {
		return nil
	}
	var out []string
	for _, a := range strings.Split(segment, ",") {
		a = strings.TrimSpace(strings.Trim(strings.TrimSpace(a), "…"))
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}
