// Package search provides the web search collaborator used by the
// knowledge pre-step.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultSerpAPIURL is the SerpAPI search endpoint.
	DefaultSerpAPIURL = "https://serpapi.com/search.json"

	// DefaultTopN is the number of organic results kept per query.
	DefaultTopN = 3

	maxResponseSize = 2 * 1024 * 1024
)

// ErrNoAPIKey is returned when the search backend has no credentials.
var ErrNoAPIKey = errors.New("no search API key configured")

// Snippet is one organic search result.
type Snippet struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Link    string `json:"link"`
}

// Searcher runs one web search.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Snippet, error)
}

// SerpAPI is a Searcher backed by the SerpAPI Google engine.
type SerpAPI struct {
	BaseURL string
	APIKey  string
	TopN    int

	client *http.Client
}

// NewSerpAPI creates a SerpAPI client.
func NewSerpAPI(apiKey string, timeout time.Duration) *SerpAPI {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SerpAPI{
		BaseURL: DefaultSerpAPIURL,
		APIKey:  apiKey,
		TopN:    DefaultTopN,
		client:  &http.Client{Timeout: timeout},
	}
}

type serpResponse struct {
	Error          string    `json:"error"`
	OrganicResults []Snippet `json:"organic_results"`
}

// Search returns up to TopN organic results for query.
func (s *SerpAPI) Search(ctx context.Context, query string) ([]Snippet, error) {
	if s.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", query)
	params.Set("api_key", s.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		// Drop the URL, it carries the key.
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}

	var sr serpResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("search returned HTTP %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	if sr.Error != "" {
		return nil, fmt.Errorf("search error: %s", sr.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned HTTP %d", resp.StatusCode)
	}

	top := s.TopN
	if top <= 0 {
		top = DefaultTopN
	}
	if len(sr.OrganicResults) > top {
		sr.OrganicResults = sr.OrganicResults[:top]
	}

	slog.Debug("Search completed", "query", query, "results", len(sr.OrganicResults))
	return sr.OrganicResults, nil
}

// Format renders snippets as Title/Snippet/Source blocks. Missing fields
// get placeholders. An empty list renders as empty.
func Format(snippets []Snippet) string {
	blocks := make([]string, 0, len(snippets))
	for _, s := range snippets {
		title := s.Title
		if title == "" {
			title = "N/A"
		}
		text := s.Snippet
		if text == "" {
			text = "No snippet available."
		}
		link := s.Link
		if link == "" {
			link = "#"
		}
		blocks = append(blocks, fmt.Sprintf("Title: %s\nSnippet: %s\nSource: %s", title, text, link))
	}
	return strings.Join(blocks, "\n")
}
