// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package zotero uploads paper records to a Zotero user library through the
// Zotero Web API v3. Each record is an independent write: a rejected item
// never rolls back the ones before it.
package zotero

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pdiddy/survey-engine/internal/export"
	"github.com/pdiddy/survey-engine/internal/httputil"
	"github.com/pdiddy/survey-engine/internal/observability"
	"github.com/pdiddy/survey-engine/pkg/types"
)

// DefaultBaseURL is the Zotero Web API root.
const DefaultBaseURL = "https://api.zotero.org"

const apiVersion = "3"

// ErrMissingCredentials is returned when the user ID or API key is absent.
var ErrMissingCredentials = errors.New("zotero user ID and API key are required")

// APIError is a rejection reported by the Zotero API, either as an HTTP
// status or as a per-item failure in a 200 response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("zotero: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("zotero: HTTP %d: %s", e.StatusCode, e.Message)
}

// IsTransient reports whether resubmitting the item may succeed.
func (e *APIError) IsTransient() bool {
	return httputil.IsTransientStatus(e.StatusCode)
}

// Client writes items to one user library.
type Client struct {
	http    *httputil.Client
	userID  string
	apiKey  string
	baseURL string
	metrics *observability.Metrics
	log     zerolog.Logger
}

// NewClient validates credentials and returns a Client. An empty baseURL
// selects DefaultBaseURL.
func NewClient(hc *httputil.Client, userID, apiKey, baseURL string, metrics *observability.Metrics, log zerolog.Logger) (*Client, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingCredentials
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:    hc,
		userID:  strings.TrimSpace(userID),
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: strings.TrimRight(baseURL, "/"),
		metrics: metrics,
		log:     log,
	}, nil
}

// ItemResult is the outcome of one upload.
type ItemResult struct {
	Title string
	OK    bool
	Key   string
	Err   error
}

// Report collects the per-item outcomes of an Export, in input order.
type Report struct {
	Items []ItemResult
}

// OK reports whether every item was accepted.
func (r Report) OK() bool {
	for _, it := range r.Items {
		if !it.OK {
			return false
		}
	}
	return true
}

// Failed returns the rejected items.
func (r Report) Failed() []ItemResult {
	var out []ItemResult
	for _, it := range r.Items {
		if !it.OK {
			out = append(out, it)
		}
	}
	return out
}

// Export uploads records one at a time. A rejected item is reported and the
// rest are still submitted. Once ctx is done the remaining items are
// reported with ctx's error and not submitted.
func (c *Client) Export(ctx context.Context, records []types.PaperRecord) Report {
	report := Report{Items: make([]ItemResult, len(records))}
	for i, rec := range records {
		res := ItemResult{Title: rec.Title}
		if err := ctx.Err(); err != nil {
			res.Err = err
			report.Items[i] = res
			continue
		}
		key, err := c.Create(ctx, rec)
		if err != nil {
			res.Err = err
			c.metrics.RecordExportItem(observability.OutcomeFailure)
			c.log.Warn().Err(err).Str("paper", rec.Title).Msg("zotero upload rejected")
		} else {
			res.OK, res.Key = true, key
			c.metrics.RecordExportItem(observability.OutcomeSuccess)
		}
		report.Items[i] = res
	}
	return report
}

// Item is a minimal Zotero journalArticle.
type Item struct {
	ItemType     string    `json:"itemType"`
	Title        string    `json:"title"`
	Creators     []Creator `json:"creators"`
	Date         string    `json:"date,omitempty"`
	URL          string    `json:"url,omitempty"`
	AbstractNote string    `json:"abstractNote,omitempty"`
}

// Creator is a single-field author name.
type Creator struct {
	CreatorType string `json:"creatorType"`
	Name        string `json:"name"`
}

// NewItem maps a record to a Zotero item. Unknown fields are left out.
func NewItem(rec types.PaperRecord) Item {
	item := Item{
		ItemType: "journalArticle",
		Title:    rec.Title,
		Creators: []Creator{},
	}
	for _, a := range export.SplitAuthors(rec.Author) {
		item.Creators = append(item.Creators, Creator{CreatorType: "author", Name: a})
	}
	if rec.Year != types.UnknownYear {
		item.Date = rec.YearString()
	}
	if rec.URL != types.Unknown {
		item.URL = rec.URL
	}
	if rec.Abstract != types.Unknown {
		item.AbstractNote = rec.Abstract
	}
	return item
}

// writeResponse is the body of a successful multi-object write.
type writeResponse struct {
	Successful map[string]struct {
		Key string `json:"key"`
	} `json:"successful"`
	Failed map[string]struct {
		Key     string `json:"key"`
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"failed"`
}

// Create uploads one record and returns the new item key.
func (c *Client) Create(ctx context.Context, rec types.PaperRecord) (string, error) {
	body, err := json.Marshal([]Item{NewItem(rec)})
	if err != nil {
		return "", fmt.Errorf("encoding item: %w", err)
	}
	url := fmt.Sprintf("%s/users/%s/items", c.baseURL, c.userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Zotero-API-Version", apiVersion)
	req.Header.Set("Zotero-API-Key", c.apiKey)
	// The write token makes a retried request idempotent.
	req.Header.Set("Zotero-Write-Token", strings.ReplaceAll(uuid.NewString(), "-", ""))

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return "", fmt.Errorf("zotero request: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return "", &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}

	var wr writeResponse
	if err := json.Unmarshal(data, &wr); err != nil {
		return "", fmt.Errorf("parsing zotero response: %w", err)
	}
	if f, ok := wr.Failed["0"]; ok {
		return "", &APIError{StatusCode: f.Code, Message: f.Message}
	}
	if s, ok := wr.Successful["0"]; ok {
		return s.Key, nil
	}
	return "", fmt.Errorf("zotero response lists no outcome for the item")
}
