package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"

	"postpilot/internal/browser"
	"postpilot/internal/compose"
	"postpilot/internal/dom"
	"postpilot/internal/history"
	"postpilot/internal/imagegen"
	"postpilot/internal/injector"
	"postpilot/internal/readability"
	"postpilot/internal/store"
	"postpilot/internal/trends"

	"go.uber.org/zap"
)

type generatePostRequest struct {
	compose.Request
	Kind   compose.Kind `json:"kind,omitempty"`
	Refine string       `json:"refine,omitempty"`
	Draft  string       `json:"draft,omitempty"`
}

type generatePostResponse struct {
	Post        string            `json:"post"`
	Readability readability.Score `json:"readability"`
}

func (s *Server) generatePost(w http.ResponseWriter, r *http.Request) {
	if s.deps.Composer == nil {
		writeError(w, http.StatusInternalServerError, compose.ErrNotConfigured.Error(), nil)
		return
	}

	var body generatePostRequest
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	req := body.Request
	label := history.Label(req.Topic, req.Prompt)
	if body.Refine != "" {
		prompt, err := compose.RefinePrompt(body.Draft, body.Refine)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Nothing to refine!", err)
			return
		}
		req.Prompt = prompt
	} else if body.Kind != "" {
		req.Prompt = compose.UserPrompt(body.Kind, req.Prompt, req.Topic)
	}

	post, err := s.deps.Composer.Compose(r.Context(), req)
	switch {
	case errors.Is(err, compose.ErrNotConfigured):
		writeError(w, http.StatusInternalServerError, err.Error(), nil)
		return
	case errors.Is(err, compose.ErrRateLimited):
		writeError(w, http.StatusInternalServerError, compose.ErrRateLimited.Error(), err)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to generate post.", err)
		return
	}

	if s.deps.History != nil {
		entry := history.NewEntry(post, label, s.deps.Now())
		if err := s.deps.History.Add(r.Context(), entry); err != nil {
			s.logger.Warn("history write failed", zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, generatePostResponse{Post: post, Readability: readability.Evaluate(post)})
}

func (s *Server) generateImage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Post string `json:"post"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if body.Post == "" {
		writeError(w, http.StatusBadRequest, "post is required", nil)
		return
	}
	if s.deps.Images == nil {
		writeError(w, http.StatusInternalServerError, imagegen.ErrNotConfigured.Error(), nil)
		return
	}

	url, err := s.deps.Images.Generate(r.Context(), body.Post)
	if errors.Is(err, imagegen.ErrNotConfigured) {
		writeError(w, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Image generation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"imageUrl": url})
}

func (s *Server) trends(w http.ResponseWriter, r *http.Request) {
	if s.deps.Trends == nil {
		writeError(w, http.StatusInternalServerError, trends.ErrNotConfigured.Error(), nil)
		return
	}
	topics, err := s.deps.Trends.Fetch(r.Context())
	if errors.Is(err, trends.ErrNotConfigured) {
		writeError(w, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if err != nil {
		s.logger.Warn("trends fetch failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch trends", nil)
		return
	}
	if topics == nil {
		topics = []string{}
	}
	writeJSON(w, http.StatusOK, topics)
}

func (s *Server) listPosts(w http.ResponseWriter, r *http.Request) {
	if s.deps.Posts == nil {
		writeError(w, http.StatusInternalServerError, "Database not configured", nil)
		return
	}
	posts, err := s.deps.Posts.RecentPosts(r.Context(), store.RecentLimit)
	if err != nil {
		s.logger.Error("post listing failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch posts", nil)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (s *Server) savePost(w http.ResponseWriter, r *http.Request) {
	if s.deps.Posts == nil {
		writeError(w, http.StatusInternalServerError, "Database not configured", nil)
		return
	}
	var body store.NewPost
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	post, err := s.deps.Posts.SavePost(r.Context(), body)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save post", err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeJSON(w, http.StatusOK, []history.Entry{})
		return
	}
	entries, err := s.deps.History.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load history", err)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) clearHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.History != nil {
		if err := s.deps.History.Clear(r.Context()); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to clear history", err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sessions == nil {
		writeError(w, http.StatusServiceUnavailable, "Browser not configured", nil)
		return
	}
	sessions := s.deps.Sessions.List()
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	writeJSON(w, http.StatusOK, sessions)
}

// attachSession tracks the first open tab matching the body's match, or the configured
// target, and returns the session whose id the injection routes accept.
func (s *Server) attachSession(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sessions == nil {
		writeError(w, http.StatusServiceUnavailable, "Browser not configured", nil)
		return
	}
	var body struct {
		Match string `json:"match"`
	}
	if err := decode(r, &body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	match := body.Match
	if match == "" {
		match = s.deps.TargetMatch
	}

	session, err := s.deps.Sessions.AttachByURL(r.Context(), match)
	if errors.Is(err, browser.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "Open LinkedIn first!", err)
		return
	}
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Browser unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// resolve finds the target page or writes the error.
func (s *Server) resolve(w http.ResponseWriter, r *http.Request, sessionID string) (dom.Document, bool) {
	if s.deps.Documents == nil {
		writeError(w, http.StatusServiceUnavailable, "Browser not configured", nil)
		return nil, false
	}
	d, err := s.deps.Documents(r.Context(), sessionID)
	if errors.Is(err, browser.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "Open LinkedIn first!", err)
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Browser unavailable", err)
		return nil, false
	}
	return d, true
}

func (s *Server) inject(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text      string `json:"text"`
		SessionID string `json:"session_id"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if body.Text == "" {
		writeError(w, http.StatusBadRequest, "No content to post!", nil)
		return
	}

	doc, ok := s.resolve(w, r, body.SessionID)
	if !ok {
		return
	}
	status := s.deps.Injector.Inject(r.Context(), doc, body.Text)
	writeJSON(w, http.StatusOK, injector.Response{Status: status})
}

func (s *Server) pageContext(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.resolve(w, r, r.URL.Query().Get("session_id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, injector.Response{Context: s.deps.Injector.PageContext(doc)})
}

// message accepts a raw runtime message and answers with its single reply, waiting
// for deferred injection results.
func (s *Server) message(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := decode(r, &raw); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	msg, err := injector.DecodeMessage(raw)
	if err == nil && !msg.Known() {
		err = fmt.Errorf("%w: %q", injector.ErrUnknownAction, msg.Action)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unsupported message", err)
		return
	}

	doc, ok := s.resolve(w, r, r.URL.Query().Get("session_id"))
	if !ok {
		return
	}

	replies := make(chan injector.Response, 1)
	handler := injector.NewHandler(s.deps.Injector, doc)
	if _, err := handler.Dispatch(r.Context(), raw, func(resp injector.Response) { replies <- resp }); err != nil {
		writeError(w, http.StatusBadRequest, "Unsupported message", err)
		return
	}

	select {
	case resp := <-replies:
		writeJSON(w, http.StatusOK, resp)
	case <-r.Context().Done():
	}
}
