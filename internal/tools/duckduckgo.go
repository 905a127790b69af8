package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/draftsmith-ai/draftsmith/internal/ratecontrol"
)

const duckDuckGoBaseURL = "https://api.duckduckgo.com/"

// DuckDuckGoClient queries the DuckDuckGo Instant Answer API. No API key
// required.
type DuckDuckGoClient struct {
	http    *http.Client
	baseURL string
	logger  *zap.Logger
}

func NewDuckDuckGoClient(httpClient *http.Client, logger *zap.Logger) *DuckDuckGoClient {
	return &DuckDuckGoClient{http: httpClient, baseURL: duckDuckGoBaseURL, logger: logger}
}

type duckDuckGoResponse struct {
	AbstractText  string `json:"AbstractText"`
	AbstractURL   string `json:"AbstractURL"`
	Heading       string `json:"Heading"`
	RelatedTopics []duckDuckGoTopic
}

type duckDuckGoTopic struct {
	Text     string            `json:"Text"`
	FirstURL string            `json:"FirstURL"`
	Topics   []duckDuckGoTopic `json:"Topics"`
}

func (c *DuckDuckGoClient) Search(ctx context.Context, q DuckDuckGoQuery) ([]SearchResult, error) {
	if err := ratecontrol.LimiterFor(string(ToolDuckDuckGo)).Wait(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s?q=%s&format=json&no_html=1&skip_disambig=1", c.baseURL, url.QueryEscape(q.Query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo call: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("duckduckgo returned status %d", resp.StatusCode)
	}

	var body duckDuckGoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("duckduckgo decode: %w", err)
	}

	maxResults := q.MaxResults
	if maxResults <= 0 || maxResults > 4 {
		maxResults = 4
	}

	var results []SearchResult
	if body.AbstractText != "" {
		results = append(results, SearchResult{
			Title:   body.Heading,
			Link:    body.AbstractURL,
			Snippet: body.AbstractText,
		})
	}
	results = append(results, flattenTopics(body.RelatedTopics, maxResults-len(results))...)
	if len(results) > maxResults {
		results = results[:maxResults]
	}

	c.logger.Debug("duckduckgo search completed",
		zap.String("query", q.Query),
		zap.Int("results", len(results)),
	)
	return results, nil
}

func flattenTopics(topics []duckDuckGoTopic, limit int) []SearchResult {
	var out []SearchResult
	for _, t := range topics {
		if len(out) >= limit {
			break
		}
		if t.Text != "" && t.FirstURL != "" {
			out = append(out, SearchResult{Title: t.Text, Link: t.FirstURL, Snippet: t.Text})
			continue
		}
		if len(t.Topics) > 0 {
			out = append(out, flattenTopics(t.Topics, limit-len(out))...)
		}
	}
	return out
}
