package manager

import (
	"context"
	"time"
)

// beginSession reserves a session slot (when MaxSessions is set) and counts
// the session for Shutdown. Returns a release func to be deferred.
func (m *Manager) beginSession(ctx context.Context) (func(), error) {
	m.mu.Lock()
	if m.draining {
		m.mu.Unlock()
		return func() {}, tooBusyError{reason: "shutting down"}
	}
	m.sessions.Add(1)
	m.mu.Unlock()

	if m.slots == nil {
		return m.sessions.Done, nil
	}

	// Fast path: respect an already-canceled context
	if err := ctx.Err(); err != nil {
		m.sessions.Done()
		return func() {}, err
	}
	timer := time.NewTimer(m.maxWait)
	defer timer.Stop()
	select {
	case m.slots <- struct{}{}:
		return func() { <-m.slots; m.sessions.Done() }, nil
	case <-ctx.Done():
		m.sessions.Done()
		return func() {}, ctx.Err()
	case <-timer.C:
		m.sessions.Done()
		return func() {}, tooBusyError{reason: "too many active generations"}
	}
}
