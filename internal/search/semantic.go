// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pdiddy/survey-engine/internal/httputil"
	"github.com/pdiddy/survey-engine/pkg/types"
)

// semanticAPIBase is the Semantic Scholar Graph API root. Declared as a var
// so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1"

const semanticFields = "paperId,title,abstract,authors,externalIds,year,url,openAccessPdf,fieldsOfStudy"

// semanticMaxLimit is the Graph API's per-request cap.
const semanticMaxLimit = 100

// SemanticScholarProvider queries the Semantic Scholar Graph API.
type SemanticScholarProvider struct {
	Client  *httputil.Client
	APIKey  string
	Grammar QueryGrammar
}

var _ CitationSource = (*SemanticScholarProvider)(nil)

// NewSemanticScholarProvider returns a provider using FreeGrammar.
func NewSemanticScholarProvider(client *httputil.Client, apiKey string) *SemanticScholarProvider {
	return &SemanticScholarProvider{Client: client, APIKey: apiKey, Grammar: FreeGrammar}
}

// Name returns the provider identifier.
func (p *SemanticScholarProvider) Name() string { return types.ProviderSemanticScholar }

// BuildQuery renders params with the provider's grammar.
func (p *SemanticScholarProvider) BuildQuery(params types.QueryParameters) string {
	return p.Grammar.Build(params)
}

// Search queries /paper/search for up to maxResults papers in relevance order.
func (p *SemanticScholarProvider) Search(ctx context.Context, query string, maxResults int) ([]types.Hit, error) {
	if query == "" {
		return nil, fmt.Errorf("empty Semantic Scholar query")
	}
	params := url.Values{
		"query":  {query},
		"limit":  {strconv.Itoa(clampLimit(maxResults))},
		"fields": {semanticFields},
	}

	var sr semanticResponse
	if err := p.get(ctx, "/paper/search", params, &sr); err != nil {
		return nil, err
	}
	hits := make([]types.Hit, 0, len(sr.Data))
	for _, paper := range sr.Data {
		hits = append(hits, paper.hit())
	}
	return hits, nil
}

// Citing lists papers that cite paperID. paperID accepts any Graph API form:
// a Semantic Scholar ID, "arXiv:2301.07041" or "DOI:10.1145/...".
func (p *SemanticScholarProvider) Citing(ctx context.Context, paperID string, maxResults int) ([]types.Hit, error) {
	if paperID == "" {
		return nil, fmt.Errorf("empty paper ID")
	}
	params := url.Values{
		"limit":  {strconv.Itoa(clampLimit(maxResults))},
		"fields": {semanticFields},
	}

	var cr semanticCitations
	if err := p.get(ctx, "/paper/"+url.PathEscape(paperID)+"/citations", params, &cr); err != nil {
		return nil, err
	}
	hits := make([]types.Hit, 0, len(cr.Data))
	for _, c := range cr.Data {
		if c.CitingPaper.Title == "" {
			continue
		}
		hits = append(hits, c.CitingPaper.hit())
	}
	return hits, nil
}

func (p *SemanticScholarProvider) get(ctx context.Context, path string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, semanticAPIBase+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if p.APIKey != "" {
		req.Header.Set("x-api-key", p.APIKey)
	}

	resp, err := p.Client.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("Semantic Scholar API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Semantic Scholar API returned HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing Semantic Scholar response: %w", err)
	}
	return nil
}

func clampLimit(n int) int {
	if n <= 0 {
		n = types.DefaultMaxResults
	}
	return min(n, semanticMaxLimit)
}

// Semantic Scholar API JSON structures.
type semanticResponse struct {
	Total  int             `json:"total"`
	Offset int             `json:"offset"`
	Data   []semanticPaper `json:"data"`
}

type semanticCitations struct {
	Data []struct {
		CitingPaper semanticPaper `json:"citingPaper"`
	} `json:"data"`
}

type semanticPaper struct {
	PaperID       string              `json:"paperId"`
	Title         string              `json:"title"`
	Abstract      string              `json:"abstract"`
	Year          int                 `json:"year"`
	URL           string              `json:"url"`
	Authors       []semanticAuthor    `json:"authors"`
	ExternalIDs   semanticExternalIDs `json:"externalIds"`
	OpenAccessPDF *struct {
		URL string `json:"url"`
	} `json:"openAccessPdf"`
	FieldsOfStudy []string `json:"fieldsOfStudy"`
}

type semanticAuthor struct {
	AuthorID string `json:"authorId"`
	Name     string `json:"name"`
}

type semanticExternalIDs struct {
	DOI   string `json:"DOI"`
	ArXiv string `json:"ArXiv"`
}

// hit maps a paper to a Hit. The arXiv ID is preferred as the identifier so
// the full text can be fetched from arXiv when no open-access PDF is listed.
func (sp semanticPaper) hit() types.Hit {
	h := types.Hit{
		ID:       sp.PaperID,
		Title:    collapseSpace(sp.Title),
		Year:     sp.Year,
		URL:      sp.URL,
		DOI:      sp.ExternalIDs.DOI,
		Abstract: collapseSpace(sp.Abstract),
		Keywords: sp.FieldsOfStudy,
		Source:   types.ProviderSemanticScholar,
	}
	if sp.ExternalIDs.ArXiv != "" {
		h.ID = sp.ExternalIDs.ArXiv
	}
	if sp.OpenAccessPDF != nil {
		h.PDFURL = sp.OpenAccessPDF.URL
	}
	for _, a := range sp.Authors {
		h.Authors = append(h.Authors, a.Name)
	}
	return h
}
