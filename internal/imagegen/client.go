// Package imagegen asks a text-to-image service for a visual to go with a post.
package imagegen

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

	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://api.freepik.com/v1/ai/text-to-image"
	DefaultStyling = "digital_art"
	DefaultSize    = "1024x1024"

	promptPrefix  = "High-quality LinkedIn post visual: "
	maxPromptPost = 150
	maxErrorBody  = 4 << 10
)

var (
	// ErrNotConfigured means no API key is set.
	ErrNotConfigured = errors.New("Image API key not configured")
	// ErrNoImage means the service answered without an image URL.
	ErrNoImage = errors.New("No image URL returned from Freepik")
)

// APIError is a non-2xx answer from the image service.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Freepik API Error: %d %s", e.StatusCode, e.Body)
}

// Config holds client configuration.
type Config struct {
	APIKey     string
	BaseURL    string
	Styling    string
	Size       string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// Client is a Freepik text-to-image client.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a client. A missing key is reported per call, so the server can
// still start without one.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Styling == "" {
		cfg.Styling = DefaultStyling
	}
	if cfg.Size == "" {
		cfg.Size = DefaultSize
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

type generateRequest struct {
	Prompt  string `json:"prompt"`
	Styling string `json:"styling"`
	Size    string `json:"size"`
}

type generateResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

// Prompt returns the image prompt for a post.
func Prompt(post string) string {
	runes := []rune(post)
	if len(runes) > maxPromptPost {
		runes = runes[:maxPromptPost]
	}
	return promptPrefix + string(runes)
}

// Generate returns the URL of an image illustrating post.
func (c *Client) Generate(ctx context.Context, post string) (url string, err error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", ErrNotConfigured
	}

	start := time.Now()
	defer func() { c.cfg.Metrics.Upstream("image", start, err) }()

	body, err := json.Marshal(generateRequest{
		Prompt:  Prompt(post),
		Styling: c.cfg.Styling,
		Size:    c.cfg.Size,
	})
	if err != nil {
		return "", fmt.Errorf("imagegen: encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("imagegen: creating request: %w", err)
	}
	req.Header.Set("x-freepik-api-key", c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("imagegen: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("imagegen: decoding response: %w", err)
	}
	if len(out.Data) == 0 || out.Data[0].URL == "" {
		return "", ErrNoImage
	}

	c.logger.Debug("image generated", zap.Duration("elapsed", time.Since(start)))
	return out.Data[0].URL, nil
}
