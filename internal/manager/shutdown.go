package manager

import (
	"context"

	"codegend/internal/cancel"
)

// Shutdown stops accepting sessions, cancels the ones in flight and waits
// for them to finalize or for ctx to end. Cancelled sessions persist their
// partial output as stopped.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.draining = true
	m.mu.Unlock()

	n := m.cancels.TriggerAll(cancel.ReasonShutdown)
	m.log.Info().Int("sessions", n).Msg("draining generation sessions")

	done := make(chan struct{})
	go func() {
		m.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
