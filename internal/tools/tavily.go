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

const tavilyBaseURL = "https://api.tavily.com/search"

// TavilyClient queries the Tavily search API.
type TavilyClient struct {
	http    *http.Client
	baseURL string
	apiKey  string
	logger  *zap.Logger
}

func NewTavilyClient(httpClient *http.Client, apiKey string, logger *zap.Logger) *TavilyClient {
	return &TavilyClient{http: httpClient, baseURL: tavilyBaseURL, apiKey: apiKey, logger: logger}
}

type tavilyRequest struct {
	Query      string `json:"query"`
	Topic      string `json:"topic,omitempty"`
	TimeRange  string `json:"time_range,omitempty"`
	MaxResults int    `json:"max_results,omitempty"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

func (c *TavilyClient) Search(ctx context.Context, q TavilyQuery) (*TavilyOutput, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("tavily: api key not configured")
	}
	if err := ratecontrol.LimiterFor(string(ToolTavily)).Wait(ctx); err != nil {
		return nil, err
	}

	maxResults := q.MaxResults
	if maxResults <= 0 || maxResults > 5 {
		maxResults = 3
	}
	payload, err := json.Marshal(tavilyRequest{
		Query:      q.Query,
		Topic:      q.Topic,
		TimeRange:  q.TimeRange,
		MaxResults: maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("tavily marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("tavily request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily call: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("tavily returned status %d", resp.StatusCode)
	}

	var body tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("tavily decode: %w", err)
	}

	out := &TavilyOutput{Results: make([]TavilyItem, 0, len(body.Results))}
	for _, r := range body.Results {
		out.Results = append(out.Results, TavilyItem{Title: r.Title, URL: r.URL, Content: r.Content})
	}

	c.logger.Debug("tavily search completed",
		zap.String("query", q.Query),
		zap.Int("results", len(out.Results)),
	)
	return out, nil
}
