package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Status values reported by a Snapshot.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusBusy     = "busy"
)

const (
	defaultTTL          = 30 * time.Second
	defaultProbeTimeout = 5 * time.Second
)

// Snapshot is the result of one health evaluation.
type Snapshot struct {
	Status     string
	Backend    bool
	Store      bool
	ComputedAt time.Time
}

// Probe checks one dependency; a nil error means healthy.
type Probe func(ctx context.Context) error

// MonitorConfig wires a Monitor.
type MonitorConfig struct {
	Gauge        *Gauge
	Backend      Probe
	Store        Probe
	TTL          time.Duration
	ProbeTimeout time.Duration
	// Now is overridable for tests.
	Now func() time.Time
}

// Monitor serves cached health snapshots.
type Monitor struct {
	gauge        *Gauge
	backend      Probe
	store        Probe
	ttl          time.Duration
	probeTimeout time.Duration
	now          func() time.Time

	group singleflight.Group
	mu    sync.RWMutex
	last  Snapshot
	have  bool
}

func NewMonitor(cfg MonitorConfig) *Monitor {
	m := &Monitor{
		gauge:        cfg.Gauge,
		backend:      cfg.Backend,
		store:        cfg.Store,
		ttl:          cfg.TTL,
		probeTimeout: cfg.ProbeTimeout,
		now:          cfg.Now,
	}
	if m.gauge == nil {
		m.gauge = &Gauge{}
	}
	if m.ttl <= 0 {
		m.ttl = defaultTTL
	}
	if m.probeTimeout <= 0 {
		m.probeTimeout = defaultProbeTimeout
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Check returns the current health. While any session is active the
// dependencies are never probed: a fresh cached value is returned if there is
// one, otherwise a synthetic busy snapshot.
func (m *Monitor) Check(ctx context.Context) Snapshot {
	cached, fresh := m.cached()
	if m.gauge.Active() > 0 {
		if fresh {
			return cached
		}
		return Snapshot{Status: StatusBusy, Backend: true, Store: true, ComputedAt: m.now()}
	}
	if fresh {
		return cached
	}
	v, _, _ := m.group.Do("probe", func() (any, error) {
		if s, ok := m.cached(); ok {
			return s, nil
		}
		// The result is shared and cached, so one caller hanging up must
		// not fail the probes. probe still bounds them by probeTimeout.
		s := m.probe(context.WithoutCancel(ctx))
		m.mu.Lock()
		m.last, m.have = s, true
		m.mu.Unlock()
		return s, nil
	})
	return v.(Snapshot)
}

func (m *Monitor) cached() (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.have {
		return Snapshot{}, false
	}
	return m.last, m.now().Sub(m.last.ComputedAt) < m.ttl
}

func (m *Monitor) probe(ctx context.Context) Snapshot {
	ctx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()
	// Both results are wanted even when one probe fails, so the group is
	// used for fan-out only and never cancels its siblings.
	var backendOK, storeOK bool
	var g errgroup.Group
	g.Go(func() error {
		backendOK = run(ctx, m.backend)
		return nil
	})
	g.Go(func() error {
		storeOK = run(ctx, m.store)
		return nil
	})
	_ = g.Wait()
	status := StatusOK
	if !backendOK || !storeOK {
		status = StatusDegraded
	}
	return Snapshot{Status: status, Backend: backendOK, Store: storeOK, ComputedAt: m.now()}
}

func run(ctx context.Context, p Probe) bool {
	if p == nil {
		return true
	}
	return p(ctx) == nil
}
