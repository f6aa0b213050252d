// Package server is the local HTTP API used by the compose UI: generation, images,
// trends, saved posts, history and editor injection.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"postpilot/internal/browser"
	"postpilot/internal/compose"
	"postpilot/internal/dom"
	"postpilot/internal/history"
	"postpilot/internal/injector"
	"postpilot/internal/metrics"
	"postpilot/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// ImageGenerator returns an image URL for a post.
type ImageGenerator interface {
	Generate(ctx context.Context, post string) (string, error)
}

// TrendSource returns trending topics.
type TrendSource interface {
	Fetch(ctx context.Context) ([]string, error)
}

// PostStore saves and lists posts.
type PostStore interface {
	SavePost(ctx context.Context, p store.NewPost) (store.Post, error)
	RecentPosts(ctx context.Context, limit int) ([]store.Post, error)
}

// SessionSource lists and attaches browser tabs.
type SessionSource interface {
	List() []browser.Session
	AttachByURL(ctx context.Context, match string) (*browser.Session, error)
}

// DocumentSource resolves the page to work on. An empty sessionID means the default
// target tab.
type DocumentSource func(ctx context.Context, sessionID string) (dom.Document, error)

// Deps are the collaborators behind the routes. Nil collaborators make their routes
// answer "not configured".
type Deps struct {
	Composer    *compose.Composer
	Images      ImageGenerator
	Trends      TrendSource
	Posts       PostStore
	History     history.Store
	Injector    *injector.Injector
	Documents   DocumentSource
	Sessions    SessionSource
	// TargetMatch is the URL substring POST /api/sessions attaches to by default.
	TargetMatch string
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
	Now         func() time.Time
}

// Server serves the API.
type Server struct {
	deps   Deps
	logger *zap.Logger
}

// New creates a Server.
func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Injector == nil {
		deps.Injector = injector.New(injector.Options{Logger: deps.Logger, Metrics: deps.Metrics})
	}
	return &Server{deps: deps, logger: deps.Logger}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(enableCORS)

		r.Post("/generate-post", s.generatePost)
		r.Post("/generate-image", s.generateImage)
		r.Get("/trends", s.trends)

		r.Get("/db/posts", s.listPosts)
		r.Post("/db/posts", s.savePost)

		r.Get("/history", s.listHistory)
		r.Delete("/history", s.clearHistory)

		r.Get("/sessions", s.listSessions)
		r.Post("/sessions", s.attachSession)

		r.Post("/inject", s.inject)
		r.Get("/page-context", s.pageContext)
		r.Post("/message", s.message)
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-KEY, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// observe logs and counts requests by route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.deps.Metrics.Request(route, strconv.Itoa(status))
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("elapsed", time.Since(start)))
	})
}

// errorBody mirrors the shape the compose UI expects.
type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	body := errorBody{Error: msg}
	if err != nil {
		body.Details = err.Error()
	}
	writeJSON(w, status, body)
}

func decode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
