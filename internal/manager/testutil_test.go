package manager

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"codegend/internal/llm"
	"codegend/internal/llm/llmtest"
	"codegend/internal/registry"
	"codegend/internal/store"
	"codegend/pkg/types"
)

// fakeTransport records every message sent to it. After failAfter successful
// sends (when positive) it reports the client as gone. After stallAfter
// successful sends (when positive) it behaves like a client that stopped
// reading: Send blocks until its deadline and returns the context error.
type fakeTransport struct {
	mu         sync.Mutex
	msgs       []types.Message
	failAfter  int
	stallAfter int
	closed     int
}

func (f *fakeTransport) Send(ctx context.Context, msg types.Message) error {
	f.mu.Lock()
	if f.closed > 0 || (f.failAfter > 0 && len(f.msgs) >= f.failAfter) {
		f.mu.Unlock()
		return ErrTransportClosed
	}
	if f.stallAfter > 0 && len(f.msgs) >= f.stallAfter {
		f.mu.Unlock()
		<-ctx.Done()
		return ctx.Err()
	}
	f.msgs = append(f.msgs, msg)
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) messages() []types.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.Message(nil), f.msgs...)
}

func (f *fakeTransport) kinds() []string {
	var out []string
	for _, m := range f.messages() {
		out = append(out, m.MessageType())
	}
	return out
}

func (f *fakeTransport) tokens() string {
	var s string
	for _, m := range f.messages() {
		if tm, ok := m.(types.TokenMessage); ok {
			s += tm.Data
		}
	}
	return s
}

func (f *fakeTransport) last() types.Message {
	msgs := f.messages()
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

// stubNamer returns a fixed stem so tests do not depend on a second backend call.
type stubNamer struct{ name string }

func (s stubNamer) Synthesize(context.Context, string, string) string { return s.name }

type harness struct {
	m       *Manager
	db      *store.DB
	backend *llmtest.Server
	pub     *MemoryPublisher
}

// newTestManager wires a Manager against a fake backend and a temp SQLite db.
func newTestManager(t *testing.T, mut func(*ManagerConfig)) *harness {
	t.Helper()
	srv := llmtest.New(t)
	db, err := store.Open(filepath.Join(t.TempDir(), "gen.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	client := llm.NewClient(llm.Config{Host: srv.URL, ReadTimeout: 2 * time.Second})
	pub := NewMemoryPublisher()
	cfg := ManagerConfig{
		Store:     db,
		Backend:   client,
		Namer:     stubNamer{name: "fibonacci"},
		Models:    registry.New(client, ""),
		Publisher: pub,
		Logger:    zerolog.Nop(),
	}
	if mut != nil {
		mut(&cfg)
	}
	return &harness{m: NewWithConfig(cfg), db: db, backend: srv, pub: pub}
}

// create stores a processing generation and returns its id.
func (h *harness) create(t *testing.T, prompt string) string {
	t.Helper()
	g, err := h.m.Create(context.Background(), prompt)
	require.NoError(t, err)
	return g.ID
}

func (h *harness) record(t *testing.T, id string) store.Record {
	t.Helper()
	rec, err := h.db.Find(context.Background(), id)
	require.NoError(t, err)
	return rec
}

// runAsync starts Run in a goroutine and returns a channel with its result.
func (h *harness) runAsync(ctx context.Context, id string, tr Transport) <-chan Result {
	ch := make(chan Result, 1)
	go func() { ch <- h.m.Run(ctx, id, tr) }()
	return ch
}

func waitResult(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("session did not finish")
	}
	return Result{}
}
