package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"postpilot/internal/browser"
	"postpilot/internal/compose"
	"postpilot/internal/config"
	"postpilot/internal/dom"
	"postpilot/internal/history"
	"postpilot/internal/imagegen"
	"postpilot/internal/injector"
	"postpilot/internal/logging"
	"postpilot/internal/metrics"
	"postpilot/internal/server"
	"postpilot/internal/store"
	"postpilot/internal/trends"

	"go.uber.org/zap"
)

// composeSettings maps the compose section to generation defaults.
func composeSettings(cfg *config.Config) compose.Settings {
	return compose.Settings{
		Tone:         cfg.Compose.Tone,
		Format:       cfg.Compose.Format,
		EmojiDensity: cfg.Compose.EmojiDensity,
	}
}

// newComposer builds the composer. Without an API key it still returns a composer so
// the server can start; every generation then reports the missing key.
func newComposer(ctx context.Context, cfg *config.Config, m *metrics.Metrics) *compose.Composer {
	opts := []compose.Option{
		compose.WithLogger(logging.Get(logging.CategoryCompose)),
		compose.WithMetrics(m),
		compose.WithDefaults(composeSettings(cfg)),
		compose.WithTimeout(cfg.GetLLMTimeout()),
	}
	model, err := compose.NewGenAIModel(ctx, cfg.LLM.APIKey, cfg.LLM.Model)
	if err != nil {
		logging.BootWarn("text generation unavailable: %v", err)
		return compose.NewComposer(nil, opts...)
	}
	return compose.NewComposer(model, opts...)
}

func newImageClient(cfg *config.Config, m *metrics.Metrics) *imagegen.Client {
	return imagegen.NewClient(imagegen.Config{
		APIKey:  cfg.Image.APIKey,
		BaseURL: cfg.Image.BaseURL,
		Styling: cfg.Image.Styling,
		Size:    cfg.Image.Size,
		Timeout: cfg.GetImageTimeout(),
		Logger:  logging.Get(logging.CategoryCompose),
		Metrics: m,
	})
}

func newTrendsClient(cfg *config.Config, m *metrics.Metrics) *trends.Client {
	return trends.NewClient(trends.Config{
		APIKey:  cfg.Trends.APIKey,
		BaseURL: cfg.Trends.BaseURL,
		Query:   cfg.Trends.Query,
		Num:     cfg.Trends.Num,
		Timeout: cfg.GetTrendsTimeout(),
		Logger:  logging.Get(logging.CategoryCompose),
		Metrics: m,
	})
}

func openStore(cfg *config.Config) (*store.Store, error) {
	return store.Open(cfg.Database.Driver, cfg.Database.Path, logging.Get(logging.CategoryStore))
}

// openHistory returns the configured history backend. The returned close func releases
// backends that own a connection.
func openHistory(ctx context.Context, cfg *config.Config, db *store.Store) (history.Store, func() error, error) {
	switch cfg.History.Backend {
	case "redis":
		rs := history.NewRedisStore(cfg.History.RedisAddr, cfg.History.RedisPassword, cfg.History.RedisDB,
			history.WithKey(cfg.History.Key))
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			return nil, nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.History.RedisAddr, err)
		}
		return rs, rs.Close, nil
	default:
		return db.History(), func() error { return nil }, nil
	}
}

func newInjector(cfg *config.Config, m *metrics.Metrics) *injector.Injector {
	sel := cfg.Injector.Selectors
	return injector.New(injector.Options{
		PollInterval: cfg.GetPollInterval(),
		MaxAttempts:  cfg.GetMaxAttempts(),
		Probes: injector.Probes{
			Editor:            sel.Editor,
			TriggerClasses:    sel.TriggerClasses,
			TriggerAria:       sel.TriggerAria,
			TriggerCandidates: sel.TriggerCandidates,
			TriggerPhrases:    sel.TriggerPhrases,
			FeedItem:          sel.FeedItem,
		},
		Logger:  logging.Get(logging.CategoryInjector),
		Metrics: m,
	})
}

// controlFile holds the DevTools URL of a browser started by "browser launch".
func controlFile() string {
	return filepath.Join(".postpilot", "browser", "control.txt")
}

// browserConfig maps the config and falls back to a launched browser's control URL.
func browserConfig(cfg *config.Config) browser.Config {
	bc := browser.ConfigFrom(cfg)
	if bc.DebuggerURL == "" {
		if data, err := os.ReadFile(controlFile()); err == nil {
			bc.DebuggerURL = strings.TrimSpace(string(data))
		}
	}
	return bc
}

func newSessionManager(cfg *config.Config) *browser.SessionManager {
	return browser.NewSessionManager(browserConfig(cfg), logging.Get(logging.CategoryBrowser))
}

// documentSource resolves a session to a live page. An empty session id attaches to
// the first open tab matching the configured target.
func documentSource(mgr *browser.SessionManager, match string) server.DocumentSource {
	return func(ctx context.Context, sessionID string) (dom.Document, error) {
		if sessionID == "" {
			s, err := mgr.AttachByURL(ctx, match)
			if err != nil {
				return nil, err
			}
			sessionID = s.ID
		}
		doc, err := mgr.Document(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		return doc, nil
	}
}

// closeAll runs closers in order and joins their errors.
func closeAll(closers ...func() error) error {
	var errs []error
	for _, c := range closers {
		if c == nil {
			continue
		}
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func logBootConfig(cfg *config.Config) {
	logging.Get(logging.CategoryBoot).Info("configuration loaded",
		zap.String("addr", cfg.Server.Addr),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("history", cfg.History.Backend),
		zap.Bool("llm_key", cfg.LLM.APIKey != ""),
		zap.Bool("image_key", cfg.Image.APIKey != ""),
		zap.Bool("trends_key", cfg.Trends.APIKey != ""))
}
