// Package trends fetches trending topic titles from a web search API.
package trends

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"postpilot/internal/metrics"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://google.serper.dev/search"
	DefaultQuery   = "latest business and tech trends 2026"
	DefaultNum     = 10

	maxErrorBody = 4 << 10
)

// ErrNotConfigured means no API key is set.
var ErrNotConfigured = errors.New("Serper API key not configured")

// Fallback is returned when the search carries no organic results.
var Fallback = []string{"AI Productivity", "Sustainability in Tech", "Future of Work"}

// Config holds client configuration.
type Config struct {
	APIKey     string
	BaseURL    string
	Query      string
	Num        int
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// Client is a Serper search client.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Query == "" {
		cfg.Query = DefaultQuery
	}
	if cfg.Num <= 0 {
		cfg.Num = DefaultNum
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, httpClient: httpClient, logger: logger}
}

type searchRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num"`
}

type organicResult struct {
	Title string `json:"title"`
}

type searchResponse struct {
	Organic []organicResult `json:"organic"`
}

// Fetch returns trending topic titles.
func (c *Client) Fetch(ctx context.Context) (topics []string, err error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return nil, ErrNotConfigured
	}

	start := time.Now()
	defer func() { c.cfg.Metrics.Upstream("trends", start, err) }()

	body, err := json.Marshal(searchRequest{Q: c.cfg.Query, Num: c.cfg.Num})
	if err != nil {
		return nil, fmt.Errorf("trends: encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("trends: creating request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trends: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("trends: search returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("trends: decoding response: %w", err)
	}
	if out.Organic == nil {
		c.logger.Debug("no organic results, using fallback topics")
		return append([]string(nil), Fallback...), nil
	}

	return lo.Map(out.Organic, func(item organicResult, _ int) string {
		return item.Title
	}), nil
}
