package manager

import (
	"errors"
	"net/http"

	"codegend/internal/store"
)

// ErrTransportClosed is returned by a Transport once the client is gone.
var ErrTransportClosed = errors.New("transport closed")

// recordNotFoundError is returned when a generation id has no record.
type recordNotFoundError struct{ id string }

func (e recordNotFoundError) Error() string   { return "Generation not found" }
func (e recordNotFoundError) StatusCode() int { return http.StatusNotFound }

// ErrRecordNotFound returns an error for a missing generation id.
func ErrRecordNotFound(id string) error { return recordNotFoundError{id: id} }

// IsRecordNotFound reports whether err indicates a missing generation.
func IsRecordNotFound(err error) bool {
	var e recordNotFoundError
	return errors.As(err, &e) || errors.Is(err, store.ErrNotFound)
}

// tooBusyError signals that no session slot became free in time, or that the
// manager is draining.
type tooBusyError struct{ reason string }

func (e tooBusyError) Error() string   { return "too busy: " + e.reason }
func (e tooBusyError) StatusCode() int { return http.StatusTooManyRequests }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	var e tooBusyError
	return errors.As(err, &e)
}

// alreadyStreamingError is returned when a second session opens for an id
// that is still streaming.
type alreadyStreamingError struct{ id string }

func (e alreadyStreamingError) Error() string   { return "Generation is already streaming" }
func (e alreadyStreamingError) StatusCode() int { return http.StatusConflict }

// IsAlreadyStreaming reports whether err indicates a duplicate session.
func IsAlreadyStreaming(err error) bool {
	var e alreadyStreamingError
	return errors.As(err, &e)
}

// badRequestError carries a client input problem.
type badRequestError struct{ msg string }

func (e badRequestError) Error() string   { return e.msg }
func (e badRequestError) StatusCode() int { return http.StatusBadRequest }

// IsBadRequest reports whether err was caused by invalid input.
func IsBadRequest(err error) bool {
	var e badRequestError
	return errors.As(err, &e)
}
