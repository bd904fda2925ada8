package manager

import (
	"context"

	"codegend/pkg/types"
)

// Ready reports whether new sessions are accepted.
func (m *Manager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.draining
}

// ActiveSessions returns the number of sessions currently streaming.
func (m *Manager) ActiveSessions() int64 { return m.gauge.Active() }

// Health returns the cached dependency health. While sessions stream it never
// probes the backend, so a health poller cannot compete with generation.
func (m *Manager) Health(ctx context.Context) types.HealthResponse {
	s := m.monitor.Check(ctx)
	return types.HealthResponse{Status: s.Status, Ollama: s.Backend, Store: s.Store}
}
