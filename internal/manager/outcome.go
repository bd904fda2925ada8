package manager

import "codegend/internal/llm"

// Phase is the lifecycle state of one session.
type Phase int

const (
	PhaseCreated Phase = iota
	PhaseStreaming
	PhaseCompleted
	PhaseStopped
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseCreated:
		return "created"
	case PhaseStreaming:
		return "streaming"
	case PhaseCompleted:
		return "completed"
	case PhaseStopped:
		return "stopped"
	case PhaseFailed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether p ends a session.
func (p Phase) Terminal() bool { return p >= PhaseCompleted }

// OutcomeKind is why the streaming loop ended.
type OutcomeKind int

const (
	OutcomeNone OutcomeKind = iota
	OutcomeTokensExhausted
	OutcomeCancelled
	OutcomeTransportGone
	OutcomeBackendError
	// OutcomeRejected means the session never started streaming.
	OutcomeRejected
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeTokensExhausted:
		return "tokens_exhausted"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeTransportGone:
		return "transport_gone"
	case OutcomeBackendError:
		return "backend_error"
	case OutcomeRejected:
		return "rejected"
	}
	return "none"
}

// outcome is the streaming loop's verdict, consumed by finalize.
type outcome struct {
	kind    OutcomeKind
	err     error
	backend llm.Kind
}

func tokensExhausted() outcome { return outcome{kind: OutcomeTokensExhausted} }
func cancelled() outcome       { return outcome{kind: OutcomeCancelled} }

func transportGone(err error) outcome { return outcome{kind: OutcomeTransportGone, err: err} }

func backendFailure(err error) outcome {
	return outcome{kind: OutcomeBackendError, err: err, backend: llm.KindOf(err)}
}
