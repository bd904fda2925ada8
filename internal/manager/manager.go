package manager

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"codegend/internal/cancel"
	"codegend/internal/health"
	"codegend/internal/langdetect"
	"codegend/internal/registry"
	"codegend/pkg/types"
)

// Manager owns every generation session of the process: the cancellation
// registry, the liveness gauge and the terminal writes to the store.
type Manager struct {
	store    Store
	backend  Backend
	namer    Namer
	models   *registry.Registry
	cancels  *cancel.Registry
	gauge    *health.Gauge
	monitor  *health.Monitor
	classify func(string) langdetect.Language
	pub      EventPublisher
	log      zerolog.Logger

	sendTimeout   time.Duration
	progressEvery int
	writeTimeout  time.Duration
	maxWait       time.Duration
	historyLimit  int

	// admission
	slots    chan struct{}
	mu       sync.Mutex
	draining bool
	sessions sync.WaitGroup
}

// Create stores a new processing generation for prompt using the current
// model and returns it.
func (m *Manager) Create(ctx context.Context, prompt string) (types.Generation, error) {
	if strings.TrimSpace(prompt) == "" {
		return types.Generation{}, badRequestError{msg: "prompt is required"}
	}
	rec, err := m.store.Create(ctx, "", prompt, m.models.Current())
	if err != nil {
		return types.Generation{}, err
	}
	return rec.API(), nil
}

// Get returns one generation.
func (m *Manager) Get(ctx context.Context, id string) (types.Generation, error) {
	rec, err := m.store.Find(ctx, id)
	if err != nil {
		if IsRecordNotFound(err) {
			return types.Generation{}, ErrRecordNotFound(id)
		}
		return types.Generation{}, err
	}
	return rec.API(), nil
}

// List returns up to limit generations, newest first. A non-positive limit
// selects the configured default.
func (m *Manager) List(ctx context.Context, limit int) ([]types.Generation, error) {
	if limit <= 0 {
		limit = m.historyLimit
	}
	recs, err := m.store.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]types.Generation, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.API())
	}
	return out, nil
}

// Delete removes a generation, stopping its session first if one is active.
func (m *Manager) Delete(ctx context.Context, id string) error {
	ok, err := m.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrRecordNotFound(id)
	}
	m.cancels.Trigger(id, cancel.ReasonDelete)
	m.pub.Publish(Event{Name: EventDeleted, GenerationID: id})
	return nil
}

// ListModels returns the backend's installed models.
func (m *Manager) ListModels(ctx context.Context) ([]types.Model, error) {
	return m.models.List(ctx)
}

// CurrentModel returns the model new generations use.
func (m *Manager) CurrentModel() string { return m.models.Current() }

// SetModel switches the model used by new generations.
func (m *Manager) SetModel(ctx context.Context, name string) error {
	if err := m.models.Set(ctx, name); err != nil {
		if registry.IsModelNotFound(err) {
			return badRequestError{msg: err.Error()}
		}
		return err
	}
	m.log.Info().Str("model", name).Msg("model changed")
	m.pub.Publish(Event{Name: EventModelChanged, Fields: map[string]any{"model": name}})
	return nil
}

// persistCtx detaches ctx from cancellation so a terminal write survives a
// client or server going away, but still bounds it.
func (m *Manager) persistCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), m.writeTimeout)
}
