// Package merrors is the typed error taxonomy of spec §7. Callers use
// errors.As to recover the concrete variant and its field-level detail
// rather than matching on sentinel values.
package merrors

import (
	"fmt"

	"mcs-mcp/internal/matching/domain"
)

// NotFoundError reports a referenced entity (shift, proposal, caregiver,
// configuration) that does not exist or is soft-deleted.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

func NewNotFound(entity string, id fmt.Stringer) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id.String()}
}

// ConflictError reports a uniqueness-invariant violation (duplicate open
// shift for a visit, claim of an already-assigned shift).
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return "conflict: " + e.Reason
}

// ValidationError reports a rejected input: schema failure or a business
// rule such as a missing rejection reason, inverted times, or a self-select
// score below threshold.
type ValidationError struct {
	Field   string
	Reason  string
	Details map[string]any
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// StateError reports an illegal state-machine transition.
type StateError struct {
	Entity string
	From   string
	To     string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("illegal %s transition: %s -> %s", e.Entity, e.From, e.To)
}

// ConcurrencyError reports a lost compare-and-swap on the open-shift status;
// the caller may retry after backoff.
type ConcurrencyError struct {
	OpenShiftID domain.OpenShiftID
	Observed    domain.MatchingStatus
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("open shift %s is already %s", e.OpenShiftID, e.Observed)
}

// PermissionError reports an authorization context lacking a required
// capability.
type PermissionError struct {
	Capability string
}

func (e *PermissionError) Error() string {
	return "permission denied: missing capability " + e.Capability
}

// DataPortError wraps a downstream read/write failure from the DataPort or
// ProposalStore. The Matcher rolls back any in-progress shift state before
// surfacing this to the caller.
type DataPortError struct {
	Op  string
	Err error
}

func (e *DataPortError) Error() string {
	return fmt.Sprintf("data port operation %q failed: %v", e.Op, e.Err)
}

func (e *DataPortError) Unwrap() error {
	return e.Err
}

func NewDataPortError(op string, err error) *DataPortError {
	return &DataPortError{Op: op, Err: err}
}
