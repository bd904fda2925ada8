package e2e

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"codegend/internal/httpapi"
	"codegend/internal/llm"
	"codegend/internal/llm/llmtest"
	"codegend/internal/manager"
	"codegend/internal/naming"
	"codegend/internal/registry"
	"codegend/internal/store"
	"codegend/pkg/types"
)

type stack struct {
	srv     *httptest.Server
	backend *llmtest.Server
	mgr     *manager.Manager
}

// namingAnswer is what the fake backend says when asked for a filename.
const namingAnswer = "fibonacci_sequence\n"

// newStack wires the real service against a fake Ollama. code chooses the
// script for generation requests; filename requests always get namingAnswer.
func newStack(t *testing.T, code func(llmtest.GenerateRequest) llmtest.Script) *stack {
	t.Helper()
	backend := llmtest.New(t)
	backend.OnGenerate(func(r llmtest.GenerateRequest) llmtest.Script {
		if strings.Contains(r.Prompt, "Filename:") {
			return llmtest.Script{Tokens: []string{namingAnswer}}
		}
		return code(r)
	})

	db, err := store.Open(filepath.Join(t.TempDir(), "e2e.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	client := llm.NewClient(llm.Config{Host: backend.URL, ReadTimeout: 3 * time.Second})
	models := registry.New(client, "")
	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Store:   db,
		Backend: client,
		Namer:   naming.New(naming.Config{Backend: client, Model: models.Current, Timeout: 3 * time.Second}),
		Models:  models,
		Logger:  zerolog.Nop(),
	})
	srv := httptest.NewServer(httpapi.NewMux(mgr))
	t.Cleanup(srv.Close)
	return &stack{srv: srv, backend: backend, mgr: mgr}
}

func (s *stack) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	b, _ := json.Marshal(body)
	resp, err := http.Post(s.srv.URL+path, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (s *stack) generate(t *testing.T, prompt string) string {
	t.Helper()
	resp := s.postJSON(t, "/generate", types.GenerateRequest{Prompt: prompt})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("generate status=%d", resp.StatusCode)
	}
	var gr types.GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil || gr.ID == "" {
		t.Fatalf("generate body: %v %+v", err, gr)
	}
	return gr.ID
}

func (s *stack) record(t *testing.T, id string) types.Generation {
	t.Helper()
	resp, err := http.Get(s.srv.URL + "/history/" + id)
	if err != nil {
		t.Fatalf("GET history: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET history/%s status=%d", id, resp.StatusCode)
	}
	var g types.Generation
	if err := json.NewDecoder(resp.Body).Decode(&g); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return g
}

func (s *stack) dial(t *testing.T, id string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/ws/generate/" + id
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) (types.StreamFrame, bool) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var f types.StreamFrame
	if err := conn.ReadJSON(&f); err != nil {
		return f, false
	}
	return f, true
}

// readAll reads frames until the server closes the connection.
func readAll(t *testing.T, conn *websocket.Conn) []types.StreamFrame {
	t.Helper()
	var out []types.StreamFrame
	for {
		f, ok := readFrame(t, conn)
		if !ok {
			return out
		}
		out = append(out, f)
	}
}

func tokensOf(frames []types.StreamFrame) string {
	var b strings.Builder
	for _, f := range frames {
		if f.Type == types.MsgToken {
			b.WriteString(f.Data)
		}
	}
	return b.String()
}

func waitIdle(t *testing.T, mgr *manager.Manager) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for mgr.ActiveSessions() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("active sessions stuck at %d", mgr.ActiveSessions())
		}
		time.Sleep(5 * time.Millisecond)
	}
}
