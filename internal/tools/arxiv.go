package tools

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/draftsmith-ai/draftsmith/internal/ratecontrol"
)

const arxivBaseURL = "http://export.arxiv.org/api/query"

// ArxivClient queries the arXiv Atom API for paper metadata.
type ArxivClient struct {
	http    *http.Client
	baseURL string
	logger  *zap.Logger
}

func NewArxivClient(httpClient *http.Client, logger *zap.Logger) *ArxivClient {
	return &ArxivClient{http: httpClient, baseURL: arxivBaseURL, logger: logger}
}

type arxivFeed struct {
	XMLName xml.Name     `xml:"feed"`
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	Title     string        `xml:"title"`
	Summary   string        `xml:"summary"`
	Published string        `xml:"published"`
	Authors   []arxivAuthor `xml:"author"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

func (c *ArxivClient) Search(ctx context.Context, q ArxivQuery) (*ArxivOutput, error) {
	if err := ratecontrol.LimiterFor(string(ToolArxiv)).Wait(ctx); err != nil {
		return nil, err
	}

	topK := q.TopK
	if topK <= 0 {
		topK = 3
	}
	u := fmt.Sprintf("%s?search_query=all:%s&start=0&max_results=%d",
		c.baseURL, url.QueryEscape(q.Query), topK)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("arxiv request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arxiv call: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("arxiv returned status %d", resp.StatusCode)
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("arxiv decode: %w", err)
	}

	maxSummary := q.MaxSummary
	if maxSummary <= 0 {
		maxSummary = 40000
	}

	out := &ArxivOutput{Results: make([]ArxivDoc, 0, len(feed.Entries))}
	for _, e := range feed.Entries {
		authors := make([]string, 0, len(e.Authors))
		for _, a := range e.Authors {
			authors = append(authors, a.Name)
		}
		out.Results = append(out.Results, ArxivDoc{
			Title:     strings.TrimSpace(e.Title),
			Authors:   authors,
			Summary:   truncate(strings.TrimSpace(e.Summary), maxSummary),
			Published: e.Published,
		})
	}

	c.logger.Debug("arxiv search completed",
		zap.String("query", q.Query),
		zap.Int("results", len(out.Results)),
	)
	return out, nil
}
