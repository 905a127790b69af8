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

const exaBaseURL = "https://api.exa.ai/search"

// ExaClient queries the Exa neural search API with highlight extraction.
type ExaClient struct {
	http    *http.Client
	baseURL string
	apiKey  string
	logger  *zap.Logger
}

func NewExaClient(httpClient *http.Client, apiKey string, logger *zap.Logger) *ExaClient {
	return &ExaClient{http: httpClient, baseURL: exaBaseURL, apiKey: apiKey, logger: logger}
}

type exaRequest struct {
	Query              string      `json:"query"`
	NumResults         int         `json:"numResults,omitempty"`
	StartPublishedDate string      `json:"startPublishedDate,omitempty"`
	EndPublishedDate   string      `json:"endPublishedDate,omitempty"`
	Category           string      `json:"category,omitempty"`
	Contents           exaContents `json:"contents"`
}

type exaContents struct {
	Highlights bool `json:"highlights"`
}

type exaResponse struct {
	Results []struct {
		URL        string   `json:"url"`
		Highlights []string `json:"highlights"`
	} `json:"results"`
}

func (c *ExaClient) Search(ctx context.Context, q ExaQuery) ([]ExaResult, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("exa: api key not configured")
	}
	if err := ratecontrol.LimiterFor(string(ToolExa)).Wait(ctx); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(exaRequest{
		Query:              q.Query,
		NumResults:         q.NumResults,
		StartPublishedDate: q.StartPublishedDate,
		EndPublishedDate:   q.EndPublishedDate,
		Category:           q.Category,
		Contents:           exaContents{Highlights: true},
	})
	if err != nil {
		return nil, fmt.Errorf("exa marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("exa request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("exa call: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("exa returned status %d", resp.StatusCode)
	}

	var body exaResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("exa decode: %w", err)
	}

	out := make([]ExaResult, 0, len(body.Results))
	for _, r := range body.Results {
		out = append(out, ExaResult{URL: r.URL, Highlights: r.Highlights})
	}

	c.logger.Debug("exa search completed",
		zap.String("query", q.Query),
		zap.Int("results", len(out)),
	)
	return out, nil
}
