// Package health tracks active generation sessions and caches dependency
// probes so health checks never hit the backend while sessions stream.
package health

import "sync/atomic"

// Gauge counts active sessions. It never goes below zero.
type Gauge struct {
	n atomic.Int64
}

// Enter records a session start and returns the new count.
func (g *Gauge) Enter() int64 { return g.n.Add(1) }

// Exit records a session end and returns the new count, clamped at zero.
func (g *Gauge) Exit() int64 {
	for {
		cur := g.n.Load()
		if cur <= 0 {
			return 0
		}
		if g.n.CompareAndSwap(cur, cur-1) {
			return cur - 1
		}
	}
}

// Active returns the current count.
func (g *Gauge) Active() int64 { return g.n.Load() }
