// Package browser drives Chrome over the DevTools protocol. It launches or connects to a
// browser, tracks the tabs postpilot works with, and exposes them as dom.Documents.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"postpilot/internal/config"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Session states.
const (
	StatusActive   = "active"   // opened by postpilot
	StatusAttached = "attached" // a tab the user already had open
	StatusDetached = "detached" // loaded from the session store, no live page
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNotConnected    = errors.New("browser not connected")
)

// Session describes the public metadata for a tracked tab.
type Session struct {
	ID         string    `json:"id"`
	TargetID   string    `json:"target_id,omitempty"`
	URL        string    `json:"url,omitempty"`
	Title      string    `json:"title,omitempty"`
	Status     string    `json:"status,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

type sessionRecord struct {
	meta Session
	page *rod.Page
}

type eventThrottler struct {
	interval time.Duration
	mu       sync.Mutex
	last     map[string]time.Time
}

func newEventThrottler(interval time.Duration) *eventThrottler {
	if interval <= 0 {
		return nil
	}
	return &eventThrottler{
		interval: interval,
		last:     make(map[string]time.Time),
	}
}

func (t *eventThrottler) Allow(key string) bool {
	if t == nil {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	if last, ok := t.last[key]; ok {
		if now.Sub(last) < t.interval {
			return false
		}
	}
	t.last[key] = now
	return true
}

// Config holds browser configuration.
type Config struct {
	DebuggerURL       string
	Launch            []string
	Headless          bool
	ViewportWidth     int
	ViewportHeight    int
	NavigationTimeout time.Duration
	SessionStore      string
	// PersistThrottle limits how often navigation events rewrite the session store.
	PersistThrottle time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ViewportWidth:     1920,
		ViewportHeight:    1080,
		NavigationTimeout: 30 * time.Second,
		PersistThrottle:   time.Second,
	}
}

// ConfigFrom maps the browser section of the application config.
func ConfigFrom(cfg *config.Config) Config {
	out := DefaultConfig()
	out.DebuggerURL = cfg.Browser.DebuggerURL
	out.Launch = cfg.Browser.Launch
	out.Headless = cfg.Browser.Headless
	out.ViewportWidth = cfg.Browser.ViewportWidth
	out.ViewportHeight = cfg.Browser.ViewportHeight
	out.NavigationTimeout = cfg.GetNavigationTimeout()
	out.SessionStore = cfg.Browser.SessionStore
	return out
}

// GetViewportWidth returns viewport width.
func (c Config) GetViewportWidth() int {
	if c.ViewportWidth == 0 {
		return 1920
	}
	return c.ViewportWidth
}

// GetViewportHeight returns viewport height.
func (c Config) GetViewportHeight() int {
	if c.ViewportHeight == 0 {
		return 1080
	}
	return c.ViewportHeight
}

// GetNavigationTimeout returns the navigation timeout.
func (c Config) GetNavigationTimeout() time.Duration {
	if c.NavigationTimeout <= 0 {
		return 30 * time.Second
	}
	return c.NavigationTimeout
}

// SessionManager owns the Chrome connection and tracks sessions.
type SessionManager struct {
	cfg        Config
	logger     *zap.Logger
	mu         sync.RWMutex
	browser    *rod.Browser
	launched   bool
	sessions   map[string]*sessionRecord
	controlURL string // WebSocket URL for DevTools
	persist    *eventThrottler
}

// NewSessionManager creates a new session manager.
func NewSessionManager(cfg Config, logger *zap.Logger) *SessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionManager{
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[string]*sessionRecord),
		persist:  newEventThrottler(cfg.PersistThrottle),
	}
}

// Start connects to an existing Chrome or launches a new one.
func (m *SessionManager) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser != nil {
		if _, err := m.browser.Version(); err == nil {
			return nil
		}
		m.logger.Warn("stale browser connection, reconnecting", zap.String("control_url", m.controlURL))
		if m.launched {
			_ = m.browser.Close()
		}
		m.browser = nil
		m.controlURL = ""
		m.sessions = make(map[string]*sessionRecord)
	}

	if err := m.loadSessionsLocked(); err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}

	controlURL := m.cfg.DebuggerURL
	launched := false
	if controlURL == "" && len(m.cfg.Launch) > 0 {
		bin := m.cfg.Launch[0]
		launch := launcher.New().Bin(bin).Headless(m.cfg.Headless)
		for _, rawFlag := range m.cfg.Launch[1:] {
			name, val, hasVal := strings.Cut(strings.TrimLeft(rawFlag, "-"), "=")
			if hasVal {
				launch = launch.Set(flags.Flag(name), val)
			} else {
				launch = launch.Set(flags.Flag(name))
			}
		}
		url, err := launch.Launch()
		if err != nil {
			m.logger.Warn("launch with custom flags failed, retrying plain", zap.String("bin", bin), zap.Error(err))
			alt, altErr := launcher.New().Bin(bin).Headless(m.cfg.Headless).Launch()
			if altErr != nil {
				return fmt.Errorf("launch chrome: %w (fallback: %v)", err, altErr)
			}
			url = alt
		}
		controlURL = url
		launched = true
	}

	if controlURL == "" {
		url, err := launcher.New().Headless(m.cfg.Headless).Launch()
		if err != nil {
			return fmt.Errorf("no debugger_url and failed to launch: %w", err)
		}
		controlURL = url
		launched = true
	}

	// The connection outlives ctx: lazy starts run inside a single request.
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}

	m.browser = browser
	m.launched = launched
	m.controlURL = controlURL
	m.logger.Info("browser connected", zap.String("control_url", controlURL), zap.Bool("launched", launched))
	return nil
}

func (m *SessionManager) ensureStarted(ctx context.Context) error {
	m.mu.RLock()
	if m.browser != nil {
		m.mu.RUnlock()
		return nil
	}
	m.mu.RUnlock()
	return m.Start(ctx)
}

func (m *SessionManager) connected() (*rod.Browser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.browser == nil {
		return nil, ErrNotConnected
	}
	return m.browser, nil
}

// ControlURL returns the WebSocket debugger URL.
func (m *SessionManager) ControlURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.controlURL
}

// IsConnected returns whether the browser is connected.
func (m *SessionManager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser != nil
}

// Shutdown closes the pages postpilot opened. A browser postpilot launched is closed
// too; a browser it only connected to is left running, as are the user's own tabs.
func (m *SessionManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, record := range m.sessions {
		if record.page != nil && record.meta.Status == StatusActive {
			_ = record.page.Close()
		}
		delete(m.sessions, id)
	}

	var err error
	if m.browser != nil && m.launched {
		err = m.browser.Close()
	}
	m.browser = nil
	m.launched = false
	m.controlURL = ""
	return err
}

// List returns metadata for all known sessions.
func (m *SessionManager) List() []Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]Session, 0, len(m.sessions))
	for _, record := range m.sessions {
		results = append(results, record.meta)
	}
	return results
}

// CreateSession opens a new tab and tracks it. The tab shares the browser's default
// context so an existing login carries over.
func (m *SessionManager) CreateSession(ctx context.Context, url string) (*Session, error) {
	if err := m.ensureStarted(ctx); err != nil {
		return nil, err
	}
	browser, err := m.connected()
	if err != nil {
		return nil, err
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             m.cfg.GetViewportWidth(),
		Height:            m.cfg.GetViewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		m.logger.Warn("failed to set viewport", zap.Error(err))
	}

	if err := page.Context(ctx).Timeout(m.cfg.GetNavigationTimeout()).WaitLoad(); err != nil {
		m.logger.Warn("page load incomplete", zap.String("url", url), zap.Error(err))
	}

	return m.track(ctx, page, url, StatusActive), nil
}

// Attach binds to an existing target by TargetID. A session already recorded for the
// target keeps its id.
func (m *SessionManager) Attach(ctx context.Context, targetID string) (*Session, error) {
	if err := m.ensureStarted(ctx); err != nil {
		return nil, err
	}
	browser, err := m.connected()
	if err != nil {
		return nil, err
	}

	if s, ok := m.sessionForTarget(targetID); ok {
		return &s, nil
	}
	if id, ok := m.detachedForTarget(targetID); ok {
		if _, err := m.reattach(ctx, id); err != nil {
			return nil, err
		}
		s, _ := m.GetSession(id)
		return &s, nil
	}

	page, err := browser.PageFromTarget(proto.TargetTargetID(targetID))
	if err != nil {
		return nil, fmt.Errorf("attach to target %s: %w", targetID, err)
	}

	url := ""
	if info, err := page.Info(); err == nil {
		url = info.URL
	}
	return m.track(ctx, page, url, StatusAttached), nil
}

// AttachByURL attaches to the first open tab whose URL contains match. A tab that is
// already tracked is returned as is.
func (m *SessionManager) AttachByURL(ctx context.Context, match string) (*Session, error) {
	if err := m.ensureStarted(ctx); err != nil {
		return nil, err
	}
	browser, err := m.connected()
	if err != nil {
		return nil, err
	}

	pages, err := browser.Pages()
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	for _, page := range pages {
		info, err := page.Info()
		if err != nil {
			continue
		}
		if !MatchesTarget(info.URL, match) {
			continue
		}
		if s, ok := m.sessionForTarget(string(page.TargetID)); ok {
			return &s, nil
		}
		m.logger.Debug("attaching to open tab", zap.String("url", info.URL))
		s := m.track(ctx, page, info.URL, StatusAttached)
		m.UpdateMetadata(s.ID, func(meta Session) Session {
			meta.Title = info.Title
			return meta
		})
		out, _ := m.GetSession(s.ID)
		return &out, nil
	}
	return nil, fmt.Errorf("%w: no open tab matching %q", ErrSessionNotFound, match)
}

// MatchesTarget reports whether a tab URL is a postpilot target. Browser-internal pages
// never match.
func MatchesTarget(url, match string) bool {
	if url == "" || isInternalScript(url) {
		return false
	}
	return strings.Contains(url, match)
}

func (m *SessionManager) track(ctx context.Context, page *rod.Page, url, status string) *Session {
	now := time.Now()
	meta := Session{
		ID:         uuid.NewString(),
		TargetID:   string(page.TargetID),
		URL:        url,
		Status:     status,
		CreatedAt:  now,
		LastActive: now,
	}

	m.mu.Lock()
	m.sessions[meta.ID] = &sessionRecord{meta: meta, page: page}
	m.mu.Unlock()

	m.startEventStream(ctx, meta.ID, page)
	if err := m.persistSessions(); err != nil {
		m.logger.Warn("persist sessions failed", zap.Error(err))
	}
	return &meta
}

func (m *SessionManager) sessionForTarget(targetID string) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rec := range m.sessions {
		if rec.page != nil && rec.meta.TargetID == targetID {
			return rec.meta, true
		}
	}
	return Session{}, false
}

func (m *SessionManager) detachedForTarget(targetID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, rec := range m.sessions {
		if rec.page == nil && rec.meta.TargetID == targetID {
			return id, true
		}
	}
	return "", false
}

// Page returns the underlying Rod page for a session. Detached sessions have no page.
func (m *SessionManager) Page(sessionID string) (*rod.Page, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.sessions[sessionID]
	if !ok || rec.page == nil {
		return nil, false
	}
	return rec.page, true
}

// Document returns the session's page as a document bound to ctx.
func (m *SessionManager) Document(ctx context.Context, sessionID string) (*PageDocument, error) {
	page, err := m.pageFor(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	m.UpdateMetadata(sessionID, func(s Session) Session {
		s.LastActive = time.Now()
		return s
	})
	return NewPageDocument(page.Context(ctx)), nil
}

// pageFor returns the live page of a session. Sessions recorded by another process are
// read from the session store and re-attached to their tab.
func (m *SessionManager) pageFor(ctx context.Context, sessionID string) (*rod.Page, error) {
	if page, ok := m.Page(sessionID); ok {
		return page, nil
	}
	if err := m.loadSessions(); err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	if _, known := m.GetSession(sessionID); !known {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if err := m.ensureStarted(ctx); err != nil {
		return nil, err
	}
	return m.reattach(ctx, sessionID)
}

// reattach binds a detached session to its tab again, keeping the session id.
func (m *SessionManager) reattach(ctx context.Context, sessionID string) (*rod.Page, error) {
	browser, err := m.connected()
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	rec, ok := m.sessions[sessionID]
	var targetID string
	var live *rod.Page
	if ok {
		targetID = rec.meta.TargetID
		live = rec.page
	}
	m.mu.RUnlock()
	switch {
	case !ok:
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	case live != nil:
		return live, nil
	case targetID == "":
		return nil, fmt.Errorf("%w: %s has no target", ErrSessionNotFound, sessionID)
	}

	page, err := browser.PageFromTarget(proto.TargetTargetID(targetID))
	if err != nil {
		return nil, fmt.Errorf("%w: tab of session %s is gone: %v", ErrSessionNotFound, sessionID, err)
	}
	info, infoErr := page.Info()

	m.mu.Lock()
	rec.page = page
	rec.meta.Status = StatusAttached
	rec.meta.LastActive = time.Now()
	if infoErr == nil {
		rec.meta.URL = info.URL
		rec.meta.Title = info.Title
	}
	m.mu.Unlock()

	m.logger.Debug("session re-attached", zap.String("session", sessionID), zap.String("target", targetID))
	m.startEventStream(ctx, sessionID, page)
	if err := m.persistSessions(); err != nil {
		m.logger.Warn("persist sessions failed", zap.Error(err))
	}
	return page, nil
}

// UpdateMetadata updates session metadata.
func (m *SessionManager) UpdateMetadata(sessionID string, updater func(Session) Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.sessions[sessionID]
	if !ok {
		return
	}
	rec.meta = updater(rec.meta)
}

// GetSession returns session metadata.
func (m *SessionManager) GetSession(sessionID string) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.sessions[sessionID]
	if !ok {
		return Session{}, false
	}
	return rec.meta, true
}

// Navigate navigates to a URL.
func (m *SessionManager) Navigate(ctx context.Context, sessionID, url string) error {
	page, err := m.pageFor(ctx, sessionID)
	if err != nil {
		return err
	}
	page = page.Context(ctx).Timeout(m.cfg.GetNavigationTimeout())
	if err := page.Navigate(url); err != nil {
		return err
	}
	return page.WaitLoad()
}

// startEventStream keeps session metadata in step with main-frame navigations.
func (m *SessionManager) startEventStream(ctx context.Context, sessionID string, page *rod.Page) {
	wait := page.Context(context.WithoutCancel(ctx)).EachEvent(func(ev *proto.PageFrameNavigated) {
		if ev.Frame == nil || ev.Frame.ParentID != "" {
			return
		}
		now := time.Now()
		m.UpdateMetadata(sessionID, func(s Session) Session {
			s.URL = ev.Frame.URL
			s.LastActive = now
			return s
		})
		m.logger.Debug("session navigated", zap.String("session", sessionID), zap.String("url", ev.Frame.URL))
		if !m.persist.Allow(sessionID) {
			return
		}
		if err := m.persistSessions(); err != nil {
			m.logger.Warn("persist sessions failed", zap.String("session", sessionID), zap.Error(err))
		}
	})
	go wait()
}

// persistSessions writes session metadata to disk.
func (m *SessionManager) persistSessions() error {
	if m.cfg.SessionStore == "" {
		return nil
	}

	m.mu.RLock()
	sessions := make([]Session, 0, len(m.sessions))
	for _, rec := range m.sessions {
		sessions = append(sessions, rec.meta)
	}
	m.mu.RUnlock()

	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(m.cfg.SessionStore), 0o755); err != nil {
		return err
	}
	return os.WriteFile(m.cfg.SessionStore, data, 0o644)
}

func (m *SessionManager) loadSessions() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadSessionsLocked()
}

// loadSessionsLocked loads persisted metadata. Caller must hold lock.
func (m *SessionManager) loadSessionsLocked() error {
	if m.cfg.SessionStore == "" {
		return nil
	}

	data, err := os.ReadFile(m.cfg.SessionStore)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var sessions []Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		return err
	}

	for _, s := range sessions {
		if _, live := m.sessions[s.ID]; live {
			continue
		}
		s.Status = StatusDetached
		m.sessions[s.ID] = &sessionRecord{meta: s, page: nil}
	}
	return nil
}

func isInternalScript(url string) bool {
	internalPrefixes := []string{
		"chrome://",
		"chrome-extension://",
		"devtools://",
		"about:",
		"data:",
		"blob:",
	}
	for _, prefix := range internalPrefixes {
		if strings.HasPrefix(url, prefix) {
			return true
		}
	}
	return false
}
