// Package injector finds the rich-text compose surface on a foreign page, writes a post
// into it, and reports the outcome exactly once.
//
// If the editor is already on the page the text is written and the reply is delivered
// before Start returns. Otherwise the "start a post" control is clicked and the page is
// polled on a ticker until the editor appears or the attempt budget runs out.
package injector

import (
	"context"
	"fmt"
	"html"
	"sync"
	"time"

	"postpilot/internal/dom"
	"postpilot/internal/metrics"

	"go.uber.org/zap"
)

// Status is the outcome of an injection.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusNotFound Status = "not_found"
)

const (
	DefaultPollInterval = 500 * time.Millisecond
	DefaultMaxAttempts  = 16
)

// Options configures an Injector.
type Options struct {
	PollInterval time.Duration
	MaxAttempts  int
	Probes       Probes
	Logger       *zap.Logger
	Metrics      *metrics.Metrics
}

// Injector writes posts into compose surfaces.
type Injector struct {
	interval    time.Duration
	maxAttempts int
	probes      Probes
	locator     *Locator
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

// New creates an Injector. Zero options fall back to the defaults and probe fields
// left empty keep the LinkedIn markers.
func New(opts Options) *Injector {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	opts.Probes = DefaultProbes().Merge(opts.Probes)
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Injector{
		interval:    opts.PollInterval,
		maxAttempts: opts.MaxAttempts,
		probes:      opts.Probes,
		locator:     NewLocator(opts.Probes, opts.Logger),
		logger:      opts.Logger,
		metrics:     opts.Metrics,
	}
}

// Wrap returns text as the single paragraph block written into the editor.
func Wrap(text string) string {
	return "<p>" + html.EscapeString(text) + "</p>"
}

// Start begins injecting text into doc. reply is called exactly once. Start reports
// pending=true when the reply will arrive later from the poll goroutine; in that case
// the caller must keep its response channel open.
func (i *Injector) Start(ctx context.Context, doc dom.Document, text string, reply func(Status)) (pending bool) {
	reply = i.guard(reply)

	defer func() {
		if r := recover(); r != nil {
			i.logger.Error("injection aborted", zap.Any("panic", r))
			reply(StatusNotFound)
			pending = false
		}
	}()

	if editor := i.locator.FindEditor(doc); editor != nil {
		status := StatusSuccess
		if err := write(editor, text); err != nil {
			i.logger.Warn("editor write failed", zap.Error(err))
			status = StatusNotFound
		}
		i.metrics.Injection("immediate", string(status), 0)
		reply(status)
		return false
	}

	trigger := i.locator.FindTrigger(doc)
	if trigger == nil {
		i.logger.Info("no editor and no compose trigger on page")
		i.metrics.Injection("immediate", string(StatusNotFound), 0)
		reply(StatusNotFound)
		return false
	}
	if err := trigger.Click(); err != nil {
		i.logger.Warn("compose trigger click failed", zap.Error(err))
		i.metrics.Injection("immediate", string(StatusNotFound), 0)
		reply(StatusNotFound)
		return false
	}

	i.logger.Debug("compose trigger clicked, polling for editor",
		zap.Duration("interval", i.interval), zap.Int("max_attempts", i.maxAttempts))
	go i.poll(ctx, doc, text, reply)
	return true
}

// Inject runs Start and waits for the result.
func (i *Injector) Inject(ctx context.Context, doc dom.Document, text string) Status {
	result := make(chan Status, 1)
	i.Start(ctx, doc, text, func(s Status) { result <- s })
	return <-result
}

func (i *Injector) poll(ctx context.Context, doc dom.Document, text string, reply func(Status)) {
	attempt := 0
	defer func() {
		if r := recover(); r != nil {
			i.logger.Error("poll loop aborted", zap.Int("attempt", attempt), zap.Any("panic", r))
			i.metrics.Injection("poll", string(StatusNotFound), attempt)
			reply(StatusNotFound)
		}
	}()

	ticker := time.NewTicker(i.interval)
	defer ticker.Stop()

	for attempt = 1; attempt <= i.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			i.logger.Info("injection cancelled", zap.Int("attempt", attempt), zap.Error(ctx.Err()))
			i.metrics.Injection("poll", string(StatusNotFound), attempt-1)
			reply(StatusNotFound)
			return
		case <-ticker.C:
		}

		editor := i.locator.FindEditor(doc)
		if editor == nil {
			continue
		}
		if err := write(editor, text); err != nil {
			i.logger.Warn("editor write failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		i.logger.Debug("editor appeared", zap.Int("attempt", attempt))
		i.metrics.Injection("poll", string(StatusSuccess), attempt)
		reply(StatusSuccess)
		return
	}

	i.logger.Info("editor never appeared", zap.Int("attempts", i.maxAttempts))
	i.metrics.Injection("poll", string(StatusNotFound), i.maxAttempts)
	reply(StatusNotFound)
}

// write replaces the editor content and fires input then blur so the host page's
// framework syncs its state with the DOM.
func write(editor dom.Element, text string) error {
	if err := editor.SetHTML(Wrap(text)); err != nil {
		return fmt.Errorf("set content: %w", err)
	}
	if err := editor.Dispatch(dom.EventInput); err != nil {
		return fmt.Errorf("dispatch %s: %w", dom.EventInput, err)
	}
	if err := editor.Dispatch(dom.EventBlur); err != nil {
		return fmt.Errorf("dispatch %s: %w", dom.EventBlur, err)
	}
	return nil
}

// guard makes reply one-shot; later calls are dropped and logged.
func (i *Injector) guard(reply func(Status)) func(Status) {
	var once sync.Once
	return func(s Status) {
		delivered := false
		once.Do(func() {
			delivered = true
			reply(s)
		})
		if !delivered {
			i.logger.Warn("dropped duplicate injection reply", zap.String("status", string(s)))
		}
	}
}
