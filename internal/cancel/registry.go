// Package cancel tracks one cooperative cancellation signal per active
// generation session.
package cancel

import (
	"errors"
	"sync"
	"sync/atomic"
)

// Reason says who asked a session to stop. The first reason set wins.
type Reason string

const (
	ReasonNone     Reason = ""
	ReasonStop     Reason = "stop"
	ReasonFail     Reason = "fail"
	ReasonDelete   Reason = "delete"
	ReasonShutdown Reason = "shutdown"
)

// ErrAlreadyActive is returned by Register when the id already has a signal.
var ErrAlreadyActive = errors.New("generation already streaming")

// Signal is a one-shot flag observed by a streaming loop.
type Signal struct {
	done   chan struct{}
	once   sync.Once
	reason atomic.Value // Reason
}

func newSignal() *Signal { return &Signal{done: make(chan struct{})} }

// Set marks the signal. Later calls are no-ops.
func (s *Signal) Set(r Reason) {
	s.once.Do(func() {
		s.reason.Store(r)
		close(s.done)
	})
}

// IsSet reports whether Set has been called.
func (s *Signal) IsSet() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Done is closed once the signal is set.
func (s *Signal) Done() <-chan struct{} { return s.done }

// Reason returns the reason passed to the first Set, or ReasonNone.
func (s *Signal) Reason() Reason {
	if v, ok := s.reason.Load().(Reason); ok {
		return v
	}
	return ReasonNone
}

// Registry maps session ids to their signals. Each entry is independent so
// sessions never contend with each other.
type Registry struct {
	signals sync.Map // string -> *Signal
	n       atomic.Int64
}

func NewRegistry() *Registry { return &Registry{} }

// Register creates the signal for id.
func (r *Registry) Register(id string) (*Signal, error) {
	sig := newSignal()
	if _, loaded := r.signals.LoadOrStore(id, sig); loaded {
		return nil, ErrAlreadyActive
	}
	r.n.Add(1)
	return sig, nil
}

// Trigger sets and removes the signal for id. It returns false when no
// session is registered under id.
func (r *Registry) Trigger(id string, reason Reason) bool {
	v, ok := r.signals.LoadAndDelete(id)
	if !ok {
		return false
	}
	r.n.Add(-1)
	v.(*Signal).Set(reason)
	return true
}

// Release removes the entry for id if it still maps to sig. Safe to call
// more than once and after Trigger.
func (r *Registry) Release(id string, sig *Signal) {
	if r.signals.CompareAndDelete(id, sig) {
		r.n.Add(-1)
	}
}

// TriggerAll sets every registered signal and returns how many were set.
func (r *Registry) TriggerAll(reason Reason) int {
	n := 0
	r.signals.Range(func(k, _ any) bool {
		if r.Trigger(k.(string), reason) {
			n++
		}
		return true
	})
	return n
}

// Active reports whether id currently has a registered signal.
func (r *Registry) Active(id string) bool {
	_, ok := r.signals.Load(id)
	return ok
}

// Len returns the number of registered signals.
func (r *Registry) Len() int { return int(r.n.Load()) }
