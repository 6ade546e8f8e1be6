package mapper

import (
	"errors"
	"strings"

	"github.com/orneryd/gizmo/pkg/query"
)

var (
	// ErrTransport matches every *TransportError.
	ErrTransport = errors.New("mapper: transport failed")

	// ErrFlushInProgress is returned when the unit of work is used while a
	// flush is waiting for its reply.
	ErrFlushInProgress = errors.New("mapper: flush in progress")

	// ErrHydrationMismatch tags log entries for reply variables that match
	// no queued entity. It is never returned.
	ErrHydrationMismatch = errors.New("mapper: reply variable matches no entity")

	// ErrUnknownMethod is returned by Invoke when the entity mapper has no
	// method of that name.
	ErrUnknownMethod = errors.New("mapper: unknown method")
)

// TransportError wraps a failure reported by the transport, either a
// connection problem or an error status from the server.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "mapper: transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is reports ErrTransport as a match.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// wrapTransport classifies a transport failure. Uniqueness guards abort the
// script with a marker message, which surfaces as ErrUniquenessViolation.
func wrapTransport(err error) error {
	te := &TransportError{Err: err}
	if strings.Contains(err.Error(), query.NonUniqueMarker) {
		return errors.Join(query.ErrUniquenessViolation, te)
	}
	return te
}
