// Package llmtest provides an in-process fake Ollama server for tests.
package llmtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"codegend/pkg/types"
)

// GenerateRequest is the decoded body of a /api/generate call.
type GenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options"`
}

// Script describes how the fake answers one generate call.
type Script struct {
	Tokens []string
	// Status, when non-zero and not 200, is returned instead of a body.
	Status int
	// Delay is slept before each token.
	Delay time.Duration
	// HoldAfter > 0 pauses after that many tokens until Hold is closed or the
	// client goes away.
	HoldAfter int
	Hold      <-chan struct{}
	// OmitDone ends the body without the final done line.
	OmitDone bool
	// Garbage lines are written before the first token.
	Garbage []string
}

// Server is a fake Ollama backend.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	script     func(GenerateRequest) Script
	requests   []GenerateRequest
	models     []types.Model
	tagsStatus int
}

// New starts a fake backend that answers every generate call with "ok".
// It is closed via t.Cleanup.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		script: func(GenerateRequest) Script { return Script{Tokens: []string{"ok"}} },
		models: []types.Model{{Name: "qwen2.5:14b", Size: 1, ModifiedAt: "2024-01-01T00:00:00Z"}},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/generate", s.handleGenerate)
	mux.HandleFunc("/api/tags", s.handleTags)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// OnGenerate installs the script chooser.
func (s *Server) OnGenerate(fn func(GenerateRequest) Script) {
	s.mu.Lock()
	s.script = fn
	s.mu.Unlock()
}

// Always answers every generate call with sc.
func (s *Server) Always(sc Script) {
	s.OnGenerate(func(GenerateRequest) Script { return sc })
}

// SetModels replaces the tags listing.
func (s *Server) SetModels(models ...types.Model) {
	s.mu.Lock()
	s.models = models
	s.mu.Unlock()
}

// FailTags makes /api/tags answer with status.
func (s *Server) FailTags(status int) {
	s.mu.Lock()
	s.tagsStatus = status
	s.mu.Unlock()
}

// Requests returns the generate calls received so far.
func (s *Server) Requests() []GenerateRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]GenerateRequest(nil), s.requests...)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.requests = append(s.requests, req)
	sc := s.script(req)
	s.mu.Unlock()

	if sc.Status != 0 && sc.Status != http.StatusOK {
		http.Error(w, http.StatusText(sc.Status), sc.Status)
		return
	}
	if !req.Stream {
		var all string
		for _, t := range sc.Tokens {
			all += t
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"response": all, "done": true})
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	flusher, _ := w.(http.Flusher)
	flush := func() {
		if flusher != nil {
			flusher.Flush()
		}
	}
	for _, g := range sc.Garbage {
		_, _ = w.Write([]byte(g + "\n"))
	}
	enc := json.NewEncoder(w)
	for i, tok := range sc.Tokens {
		if sc.HoldAfter > 0 && i == sc.HoldAfter {
			flush()
			select {
			case <-sc.Hold:
			case <-r.Context().Done():
				return
			}
		}
		if sc.Delay > 0 {
			select {
			case <-time.After(sc.Delay):
			case <-r.Context().Done():
				return
			}
		}
		if err := enc.Encode(map[string]any{"model": req.Model, "response": tok, "done": false}); err != nil {
			return
		}
		flush()
	}
	if !sc.OmitDone {
		_ = enc.Encode(map[string]any{"model": req.Model, "response": "", "done": true})
		flush()
	}
}

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	status := s.tagsStatus
	models := append([]types.Model(nil), s.models...)
	s.mu.Unlock()
	if status != 0 {
		http.Error(w, http.StatusText(status), status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"models": models})
}
