package manager

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"codegend/internal/cancel"
	"codegend/internal/health"
	"codegend/internal/langdetect"
	"codegend/internal/llm"
	"codegend/internal/registry"
	"codegend/internal/store"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultSendTimeout   = 5 * time.Second
	defaultProgressEvery = 10
	defaultWriteTimeout  = 10 * time.Second
	defaultMaxWait       = 30 * time.Second
	defaultHistoryLimit  = 50
)

// Store is the persistence the manager needs; *store.DB satisfies it.
type Store interface {
	Create(ctx context.Context, id, prompt, model string) (store.Record, error)
	Find(ctx context.Context, id string) (store.Record, error)
	List(ctx context.Context, limit int) ([]store.Record, error)
	Finish(ctx context.Context, id string, u store.Update) error
	Delete(ctx context.Context, id string) (bool, error)
	Ping(ctx context.Context) error
}

// Backend opens token streams; *llm.Client satisfies it.
type Backend interface {
	Stream(ctx context.Context, req llm.Request, sig llm.Signal) (*llm.TokenStream, error)
	Ping(ctx context.Context) error
}

// Namer picks a filename stem for finished output; *naming.Synthesizer
// satisfies it.
type Namer interface {
	Synthesize(ctx context.Context, prompt, language string) string
}

// ManagerConfig encapsulates all tunables and collaborators for Manager
// construction. Store, Backend and Namer are required.
type ManagerConfig struct {
	Store   Store
	Backend Backend
	Namer   Namer
	Models  *registry.Registry
	// Cancels and Gauge are shared with anything else that needs to observe
	// sessions; fresh ones are created when nil.
	Cancels   *cancel.Registry
	Gauge     *health.Gauge
	Health    *health.Monitor
	Classify  func(string) langdetect.Language
	Publisher EventPublisher
	Logger    zerolog.Logger

	// SendTimeout bounds every message sent to a client.
	SendTimeout time.Duration
	// ProgressEvery emits a progress message after every N tokens.
	ProgressEvery int
	// WriteTimeout bounds terminal store writes, which outlive the session
	// context.
	WriteTimeout time.Duration
	// MaxSessions caps concurrently streaming sessions; 0 means unlimited.
	MaxSessions int
	// MaxWait is how long a session waits for a slot when MaxSessions is hit.
	MaxWait      time.Duration
	HistoryLimit int
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		store:         cfg.Store,
		backend:       cfg.Backend,
		namer:         cfg.Namer,
		models:        cfg.Models,
		cancels:       cfg.Cancels,
		gauge:         cfg.Gauge,
		monitor:       cfg.Health,
		classify:      cfg.Classify,
		pub:           cfg.Publisher,
		log:           cfg.Logger,
		sendTimeout:   cfg.SendTimeout,
		progressEvery: cfg.ProgressEvery,
		writeTimeout:  cfg.WriteTimeout,
		maxWait:       cfg.MaxWait,
		historyLimit:  cfg.HistoryLimit,
	}
	// Apply defaults if unset
	if m.models == nil {
		m.models = registry.New(nil, "")
	}
	if m.cancels == nil {
		m.cancels = cancel.NewRegistry()
	}
	if m.gauge == nil {
		m.gauge = &health.Gauge{}
	}
	if m.monitor == nil {
		m.monitor = health.NewMonitor(health.MonitorConfig{
			Gauge:   m.gauge,
			Backend: m.backend.Ping,
			Store:   m.store.Ping,
		})
	}
	if m.classify == nil {
		m.classify = langdetect.Classify
	}
	if m.pub == nil {
		m.pub = noopPublisher{}
	}
	if m.sendTimeout <= 0 {
		m.sendTimeout = defaultSendTimeout
	}
	if m.progressEvery <= 0 {
		m.progressEvery = defaultProgressEvery
	}
	if m.writeTimeout <= 0 {
		m.writeTimeout = defaultWriteTimeout
	}
	if m.maxWait <= 0 {
		m.maxWait = defaultMaxWait
	}
	if m.historyLimit <= 0 {
		m.historyLimit = defaultHistoryLimit
	}
	if cfg.MaxSessions > 0 {
		m.slots = make(chan struct{}, cfg.MaxSessions)
	}
	return m
}
