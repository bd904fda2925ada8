package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"codegend/internal/manager"
	"codegend/pkg/types"
)

const (
	wsReadLimit    = 4096
	wsCloseTimeout = time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The frontend may be served from another origin; CORS does not apply to
	// upgrades.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsTransport adapts one WebSocket connection to manager.Transport.
// gorilla connections allow one concurrent writer, so sends are serialized.
type wsTransport struct {
	conn *websocket.Conn
	id   string
	lvl  LogLevel

	mu     sync.Mutex
	closed bool

	// gone is canceled by the read pump once the client disconnects.
	gone      context.Context
	markGone  context.CancelFunc
	closeOnce sync.Once
	readDone  chan struct{}
}

func newWSTransport(conn *websocket.Conn, id string, lvl LogLevel) *wsTransport {
	gone, markGone := context.WithCancel(context.Background())
	t := &wsTransport{conn: conn, id: id, lvl: lvl, gone: gone, markGone: markGone, readDone: make(chan struct{})}
	go t.readPump()
	return t
}

// readPump discards client frames; its only job is noticing the close.
func (t *wsTransport) readPump() {
	defer close(t.readDone)
	defer t.markGone()
	t.conn.SetReadLimit(wsReadLimit)
	for {
		if _, _, err := t.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (t *wsTransport) Send(ctx context.Context, msg types.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.gone.Err() != nil {
		return manager.ErrTransportClosed
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(wsWriteTimeout)
	}
	_ = t.conn.SetWriteDeadline(deadline)
	if err := t.conn.WriteJSON(msg); err != nil {
		t.closed = true
		return fmt.Errorf("%w: %v", manager.ErrTransportClosed, err)
	}
	wsFramesTotal.WithLabelValues(msg.MessageType()).Inc()
	if t.lvl >= LevelDebug && zlog != nil {
		zlog.Debug().Str("generation_id", t.id).Interface("frame", msg).Msg("ws send")
	}
	return nil
}

// Close sends a normal close frame when the client is still there, then
// drops the connection. Safe to call more than once.
func (t *wsTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.mu.Lock()
		if !t.closed && t.gone.Err() == nil {
			_ = t.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(wsCloseTimeout))
		}
		t.closed = true
		t.mu.Unlock()
		err = t.conn.Close()
	})
	return err
}

// serveWS upgrades and runs one generation session on the connection.
func (h *handlers) serveWS(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	lvl := requestLogLevel(r)
	start := time.Now()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the request.
		logRequest(r, lvl, "ws upgrade", http.StatusBadRequest, start, err)
		return
	}
	t := newWSTransport(conn, id, lvl)
	ctx, cancel := sessionContext(t.gone)
	defer cancel()

	wsSessionsActive.Inc()
	res := h.svc.Run(ctx, id, t)
	wsSessionsActive.Dec()
	<-t.readDone
	wsSessionsTotal.WithLabelValues(res.Phase.String()).Inc()
	if manager.IsTooBusy(res.Err) {
		IncrementBackpressure("sessions")
	}
	logRequest(r, lvl, "ws session", http.StatusSwitchingProtocols, start, res.Err)
}
