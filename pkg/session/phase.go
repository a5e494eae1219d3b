// Package session implements the asynchronous request lifecycles of the
// client: document ingestion, querying with stale-response protection, and
// the citation highlight coordination. Each session owns its timers and
// cancels them on every exit path.
package session

import (
	"errors"
	"fmt"
)

// Phase is the lifecycle state of one asynchronous operation.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseInFlight Phase = "in_flight"
	PhaseSuccess  Phase = "success"
	PhaseFailure  Phase = "failure"
)

// ErrBusy is returned when an ingest is submitted while another is still
// in flight. Queries are never busy; a newer query supersedes the older.
var ErrBusy = errors.New("session: ingest already in flight")

// ValidationError is a fully local input error; it never reaches the
// network.
type ValidationError struct {
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("session: invalid input: %s", e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
