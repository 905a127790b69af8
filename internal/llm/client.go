package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/draftsmith-ai/draftsmith/internal/metrics"
)

// Client talks to the generation service over HTTP. All drafting, planning,
// and writing activities go through it; activities never build raw requests
// themselves.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// GenerateRequest is the request body for one generation call. Operation is a
// routing hint for the service ("classify", "draft_sections", "write_section",
// ...), not free text.
type GenerateRequest struct {
	Operation  string                 `json:"operation"`
	Prompt     string                 `json:"prompt"`
	System     string                 `json:"system,omitempty"`
	Context    map[string]interface{} `json:"context,omitempty"`
	MaxTokens  int                    `json:"max_tokens,omitempty"`
	JSONOutput bool                   `json:"json_output,omitempty"`
}

// GenerateResponse is the generation service's response envelope.
type GenerateResponse struct {
	Text         string `json:"text"`
	Model        string `json:"model"`
	Provider     string `json:"provider"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// TotalTokens is the combined prompt and completion token count.
func (r *GenerateResponse) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// NewClient builds a generation client. An empty baseURL falls back to the
// GENERATION_SERVICE_URL environment variable, then to the compose-network
// default.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("GENERATION_SERVICE_URL")
	}
	if baseURL == "" {
		baseURL = "http://llm-service:8000"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Generate performs one text generation call.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	start := time.Now()
	resp, err := c.do(ctx, req)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.GenerationCalls.WithLabelValues(req.Operation, status).Inc()
	if err != nil {
		return nil, err
	}
	metrics.GenerationTokens.Add(float64(resp.TotalTokens()))
	c.logger.Debug("Generation call completed",
		zap.String("operation", req.Operation),
		zap.String("model", resp.Model),
		zap.Int("input_tokens", resp.InputTokens),
		zap.Int("output_tokens", resp.OutputTokens),
		zap.Duration("duration", time.Since(start)),
	)
	return resp, nil
}

// GenerateStructured performs a generation call that must return JSON and
// decodes the payload into target. The service is asked for JSON output, and
// stray markdown fences around the payload are stripped before decoding.
func (c *Client) GenerateStructured(ctx context.Context, req GenerateRequest, target interface{}) (*GenerateResponse, error) {
	req.JSONOutput = true
	resp, err := c.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	payload := stripCodeFence(resp.Text)
	if err := json.Unmarshal([]byte(payload), target); err != nil {
		metrics.GenerationCalls.WithLabelValues(req.Operation, "decode_error").Inc()
		return nil, fmt.Errorf("decode %s output: %w", req.Operation, err)
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal generation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/agent/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create generation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call generation service: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("generation service returned status %d for %s", httpResp.StatusCode, req.Operation)
	}

	var resp GenerateResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode generation response: %w", err)
	}
	if resp.Text == "" {
		return nil, fmt.Errorf("generation service returned empty text for %s", req.Operation)
	}
	return &resp, nil
}

// stripCodeFence removes a single surrounding ```json ... ``` fence, which
// some providers wrap around JSON output.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
