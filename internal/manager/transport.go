package manager

import (
	"context"

	"codegend/pkg/types"
)

// Transport delivers stream messages to one client. Send must honor the
// context deadline and return ErrTransportClosed once the client is gone.
// Close must be idempotent.
type Transport interface {
	Send(ctx context.Context, msg types.Message) error
	Close() error
}

// send delivers msg with the per-message timeout.
func (m *Manager) send(ctx context.Context, t Transport, msg types.Message) error {
	ctx, cancel := context.WithTimeout(ctx, m.sendTimeout)
	defer cancel()
	return t.Send(ctx, msg)
}

// notify is a best-effort send used after the outcome is already decided.
func (m *Manager) notify(ctx context.Context, t Transport, msg types.Message) {
	if err := m.send(context.WithoutCancel(ctx), t, msg); err != nil {
		m.log.Debug().Err(err).Str("type", msg.MessageType()).Msg("client notification dropped")
	}
}
