package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/draftsmith-ai/draftsmith/internal/ratecontrol"
)

const serperBaseURL = "https://google.serper.dev/search"

// SerperClient queries the Serper Google-search API.
type SerperClient struct {
	http    *http.Client
	baseURL string
	apiKey  string
	logger  *zap.Logger
}

func NewSerperClient(httpClient *http.Client, apiKey string, logger *zap.Logger) *SerperClient {
	return &SerperClient{http: httpClient, baseURL: serperBaseURL, apiKey: apiKey, logger: logger}
}

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num,omitempty"`
	TBS string `json:"tbs,omitempty"`
}

type serperResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
}

func (c *SerperClient) Search(ctx context.Context, q SerperQuery) (*SerperOutput, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("serper: api key not configured")
	}
	if err := ratecontrol.LimiterFor(string(ToolSerper)).Wait(ctx); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(serperRequest{Q: q.Query, Num: q.NumResults, TBS: q.TBS})
	if err != nil {
		return nil, fmt.Errorf("serper marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("serper request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serper call: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("serper returned status %d", resp.StatusCode)
	}

	var body serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("serper decode: %w", err)
	}

	out := &SerperOutput{OrganicResults: make([]SearchResult, 0, len(body.Organic))}
	for _, r := range body.Organic {
		out.OrganicResults = append(out.OrganicResults, SearchResult{
			Title:   r.Title,
			Link:    r.Link,
			Snippet: r.Snippet,
		})
	}

	c.logger.Debug("serper search completed",
		zap.String("query", q.Query),
		zap.Int("results", len(out.OrganicResults)),
	)
	return out, nil
}
