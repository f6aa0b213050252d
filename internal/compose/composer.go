package compose

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"postpilot/internal/metrics"

	"go.uber.org/zap"
)

var (
	// ErrRateLimited means the model provider throttled the request.
	ErrRateLimited = errors.New("Rate limit exceeded. Please wait a minute and try again.")
	// ErrNotConfigured means no model API key is set.
	ErrNotConfigured = errors.New("Gemini API key not configured")
)

// Model generates text from a prompt.
type Model interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Composer turns requests into posts.
type Composer struct {
	model    Model
	defaults atomic.Pointer[Settings]
	logger   *zap.Logger
	metrics  *metrics.Metrics
	timeout  time.Duration
}

// Option configures a Composer.
type Option func(*Composer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Composer) { c.logger = l }
}

// WithMetrics records model calls.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Composer) { c.metrics = m }
}

// WithTimeout bounds each model call. Zero means no bound beyond the caller's ctx.
func WithTimeout(d time.Duration) Option {
	return func(c *Composer) { c.timeout = d }
}

// WithDefaults sets the settings used for fields a request leaves empty.
func WithDefaults(s Settings) Option {
	return func(c *Composer) { c.SetDefaults(s) }
}

// NewComposer creates a Composer. A nil model makes every Compose fail with
// ErrNotConfigured.
func NewComposer(model Model, opts ...Option) *Composer {
	c := &Composer{model: model, logger: zap.NewNop()}
	c.SetDefaults(DefaultSettings())
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetDefaults replaces the default settings. Safe to call while requests are running.
func (c *Composer) SetDefaults(s Settings) {
	s = s.Or(DefaultSettings())
	c.defaults.Store(&s)
}

// Defaults returns the current default settings.
func (c *Composer) Defaults() Settings {
	return *c.defaults.Load()
}

// Resolve fills the request's empty settings from the defaults.
func (c *Composer) Resolve(req Request) Request {
	req.Settings = req.Settings.Or(c.Defaults())
	return req
}

// Compose generates a post.
func (c *Composer) Compose(ctx context.Context, req Request) (string, error) {
	if c.model == nil {
		return "", ErrNotConfigured
	}
	req = c.Resolve(req)
	prompt := BuildPrompt(req)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := c.model.Generate(ctx, prompt)
	c.metrics.Upstream("llm", start, err)
	if err != nil {
		c.logger.Warn("generation failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		if isRateLimit(err) {
			return "", fmt.Errorf("%w (%v)", ErrRateLimited, err)
		}
		return "", fmt.Errorf("generate post: %w", err)
	}

	c.logger.Debug("post generated",
		zap.String("tone", req.Settings.Tone),
		zap.String("format", req.Settings.Format),
		zap.Int("chars", len(text)),
		zap.Duration("elapsed", time.Since(start)))
	return strings.TrimSpace(text), nil
}
