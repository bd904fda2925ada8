package manager

// Event names published by the manager.
const (
	EventSessionStart  = "session_start"
	EventSessionEnd    = "session_end"
	EventStopRequested = "stop_requested"
	EventMarkedFailed  = "marked_failed"
	EventDeleted       = "deleted"
	EventModelChanged  = "model_changed"
)

// Event represents a manager lifecycle event.
// Minimal and stable: name + generation ID and optional fields.
type Event struct {
	Name         string
	GenerationID string
	Fields       map[string]any
}

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
