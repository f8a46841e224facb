package gateway

import (
	"errors"
	"fmt"
)

// ErrStaleDocument is returned when a whole-document save loses against a
// concurrent writer (revision mismatch). The caller should re-fetch and
// re-apply.
var ErrStaleDocument = errors.New("gear document was modified by another writer")

// PreconditionError marks a request rejected locally before any network
// call, such as a reservation action attempted without a date range.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string { return e.Reason }

// ConflictError is the server's authoritative refusal of a checkout: the
// unit is no longer available, whatever the local calculator thought. It
// must be surfaced as a blocking warning and never retried automatically.
type ConflictError struct {
	GearID string
	Reason string
}

func (e *ConflictError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("gear %s is no longer available", e.GearID)
}

// TransportError covers network failures and unexpected HTTP statuses.
// Reservation-mutating calls are never auto-retried on transport errors, to
// avoid double-booking through duplicate submission; the user retries.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Status)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsConflict reports whether err is a server-side reservation conflict.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsPrecondition reports whether err is a locally rejected precondition.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}
