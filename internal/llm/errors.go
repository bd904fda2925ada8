package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrCanceled is returned by TokenStream.Next once the cancellation signal
// has been observed.
var ErrCanceled = errors.New("generation canceled")

// Kind classifies a backend failure.
type Kind int

const (
	KindTimeout Kind = iota + 1
	KindProtocol
	KindUnreachable
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "backend_timeout"
	case KindProtocol:
		return "backend_protocol_error"
	case KindUnreachable:
		return "backend_unreachable"
	}
	return "backend_error"
}

// BackendError is the terminal error of a token stream or completion call.
type BackendError struct {
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *BackendError) Error() string {
	switch e.Kind {
	case KindTimeout:
		return "ollama request timed out"
	case KindProtocol:
		return fmt.Sprintf("ollama HTTP error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	default:
		if e.Err != nil {
			return "ollama connection error: " + e.Err.Error()
		}
		return "ollama connection error"
	}
}

func (e *BackendError) Unwrap() error { return e.Err }

func timeoutError(err error) error     { return &BackendError{Kind: KindTimeout, Err: err} }
func unreachableError(err error) error { return &BackendError{Kind: KindUnreachable, Err: err} }
func protocolError(status int) error   { return &BackendError{Kind: KindProtocol, StatusCode: status} }

// KindOf returns the backend error kind of err, or 0 if err is not a
// BackendError.
func KindOf(err error) Kind {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Kind
	}
	return 0
}

// IsTimeout reports whether err is a backend timeout.
func IsTimeout(err error) bool { return KindOf(err) == KindTimeout }

// IsProtocol reports whether err is a non-success HTTP status from the backend.
func IsProtocol(err error) bool { return KindOf(err) == KindProtocol }

// IsUnreachable reports whether the backend could not be reached.
func IsUnreachable(err error) bool { return KindOf(err) == KindUnreachable }
