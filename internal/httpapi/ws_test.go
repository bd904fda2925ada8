package httpapi

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"codegend/internal/manager"
	"codegend/pkg/types"
)

func dialWS(t *testing.T, srv *httptest.Server, id string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/generate/" + id
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrames(t *testing.T, conn *websocket.Conn) []types.StreamFrame {
	t.Helper()
	var out []types.StreamFrame
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var f types.StreamFrame
		if err := conn.ReadJSON(&f); err != nil {
			return out
		}
		out = append(out, f)
	}
}

func TestWSRelaysMessagesAndCloses(t *testing.T) {
	tokensBefore := testutil.ToFloat64(wsFramesTotal.WithLabelValues(types.MsgToken))
	completedBefore := testutil.ToFloat64(wsSessionsTotal.WithLabelValues(manager.PhaseCompleted.String()))
	svc := newMockService()
	svc.run = func(ctx context.Context, id string, tr manager.Transport) manager.Result {
		_ = tr.Send(ctx, types.NewStatus("processing"))
		_ = tr.Send(ctx, types.NewToken("hi"))
		_ = tr.Send(ctx, types.NewDone("text", "x.txt", 1))
		return manager.Result{ID: id, Phase: manager.PhaseCompleted}
	}
	srv := httptest.NewServer(NewMux(svc))
	defer srv.Close()

	frames := readFrames(t, dialWS(t, srv, "abc"))
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %+v", frames)
	}
	if frames[0].Type != types.MsgStatus || frames[1].Data != "hi" || frames[2].Filename != "x.txt" {
		t.Fatalf("unexpected frames %+v", frames)
	}
	if got := testutil.ToFloat64(wsFramesTotal.WithLabelValues(types.MsgToken)) - tokensBefore; got != 1 {
		t.Fatalf("token frames counted %v, want 1", got)
	}
	// The handler records the session after the read pump sees the close.
	deadline := time.Now().Add(2 * time.Second)
	for testutil.ToFloat64(wsSessionsTotal.WithLabelValues(manager.PhaseCompleted.String()))-completedBefore < 1 {
		if time.Now().After(deadline) {
			t.Fatal("completed session was not counted")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWSClientCloseCancelsSession(t *testing.T) {
	svc := newMockService()
	gone := make(chan error, 1)
	svc.run = func(ctx context.Context, id string, tr manager.Transport) manager.Result {
		_ = tr.Send(ctx, types.NewStatus("processing"))
		<-ctx.Done()
		gone <- tr.Send(context.Background(), types.NewToken("late"))
		return manager.Result{ID: id}
	}
	srv := httptest.NewServer(NewMux(svc))
	defer srv.Close()

	conn := dialWS(t, srv, "abc")
	var f types.StreamFrame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read: %v", err)
	}
	_ = conn.Close()

	select {
	case err := <-gone:
		if !errors.Is(err, manager.ErrTransportClosed) {
			t.Fatalf("expected ErrTransportClosed, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("session context was not canceled on client close")
	}
}

func TestWSBaseContextCancelsSession(t *testing.T) {
	base, cancel := context.WithCancel(context.Background())
	SetBaseContext(base)
	defer SetBaseContext(nil)

	svc := newMockService()
	done := make(chan struct{})
	svc.run = func(ctx context.Context, id string, tr manager.Transport) manager.Result {
		<-ctx.Done()
		close(done)
		return manager.Result{ID: id}
	}
	srv := httptest.NewServer(NewMux(svc))
	defer srv.Close()
	dialWS(t, srv, "abc")
	cancel()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("base context cancel did not reach the session")
	}
}
