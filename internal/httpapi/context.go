package httpapi

import (
	"context"
	"sync"
)

// baseCtx is canceled when the process starts shutting down. WebSocket
// sessions outlive their upgrade request, so they derive from it instead of
// r.Context().
var (
	baseMu  sync.RWMutex
	baseCtx = context.Background()
)

// SetBaseContext installs the process context. nil restores Background.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	baseMu.Lock()
	baseCtx = ctx
	baseMu.Unlock()
}

func currentBase() context.Context {
	baseMu.RLock()
	defer baseMu.RUnlock()
	return baseCtx
}

// sessionContext is canceled when the process base context ends or when gone
// is canceled by the transport noticing the client left. The cancel func
// must be called once the session returns.
func sessionContext(gone context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(currentBase())
	stop := context.AfterFunc(gone, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
