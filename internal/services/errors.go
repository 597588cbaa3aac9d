// Package services implements the business logic of the circulation core:
// the copy ledger, loan ledger, reservation manager, transfer manager, fee
// engine, and the circulation coordinator that orchestrates them.
//
// This file centralizes the service-level error taxonomy. Every error the
// core returns is one of these typed values (or wraps one), carrying a
// human-readable message and a machine-checkable kind. Translation into
// HTTP statuses is performed at the handler layer.
package services

import "errors"

// Kind classifies a service error for programmatic handling.
type Kind string

// Error kinds. Storage failures surface as KindUnavailable; nothing in the
// core is treated as fatal.
const (
	KindNotFound      Kind = "not_found"      // entity missing
	KindConflict      Kind = "conflict"       // expected-status mismatch on a compare-and-set
	KindRuleViolation Kind = "rule_violation" // business rule denied the operation
	KindInvalidInput  Kind = "invalid_input"  // malformed identifiers or payload
	KindUnavailable   Kind = "unavailable"    // storage backend failure
)

// Error is a typed service error with a stable kind and a message safe to
// show to callers.
type Error struct {
	Kind    Kind
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string { return e.Message }

// KindOf returns the kind of err if it is (or wraps) a service Error, and
// KindUnavailable otherwise: an unclassified failure is by definition a
// storage or infrastructure problem, never a business outcome.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnavailable
}

// Entity lookups.
var (
	ErrMemberNotFound      = &Error{KindNotFound, "member not found"}
	ErrItemNotFound        = &Error{KindNotFound, "library item not found"}
	ErrCopyNotFound        = &Error{KindNotFound, "copy not found"}
	ErrLoanNotFound        = &Error{KindNotFound, "loan not found"}
	ErrReservationNotFound = &Error{KindNotFound, "reservation not found"}
	ErrTransferNotFound    = &Error{KindNotFound, "transfer not found"}
	ErrBranchNotFound      = &Error{KindNotFound, "branch not found"}
)

// Compare-and-set conflicts. Two terminals acting on the same tag race on
// the copy's status; the loser of the guarded update receives one of these.
var (
	ErrCopyNotAvailable    = &Error{KindConflict, "copy is not available"}
	ErrCopyStatusChanged   = &Error{KindConflict, "copy status changed concurrently"}
	ErrLoanNotOpen         = &Error{KindConflict, "loan is already closed"}
	ErrTransferNotPending  = &Error{KindConflict, "transfer is not pending"}
	ErrCopyNotAwayFromHome = &Error{KindConflict, "copy is not held at another branch"}
)

// Business rules.
var (
	ErrMemberNotApproved    = &Error{KindRuleViolation, "member registration is not approved"}
	ErrAlreadyBorrowed      = &Error{KindRuleViolation, "member already has this item on loan"}
	ErrRenewalExhausted     = &Error{KindRuleViolation, "renewal limit reached"}
	ErrReservedByOther      = &Error{KindRuleViolation, "item is reserved by another member at this branch"}
	ErrCopiesAvailable      = &Error{KindRuleViolation, "copies are available at this branch; reservation not allowed"}
	ErrDuplicateReservation = &Error{KindRuleViolation, "item already reserved by this member at this branch"}
	ErrNotBorrowed          = &Error{KindRuleViolation, "copy has no open loan"}
	ErrNotDeletable         = &Error{KindRuleViolation, "copy is not available and cannot be removed"}
)

// Input validation.
var (
	ErrEmptyTagList      = &Error{KindInvalidInput, "no tags supplied"}
	ErrBadTag            = &Error{KindInvalidInput, "malformed radio tag"}
	ErrBadID             = &Error{KindInvalidInput, "malformed identifier"}
	ErrMissingMemberInfo = &Error{KindInvalidInput, "first name and email are required"}
)

// unavailable wraps a storage error into the taxonomy while preserving the
// cause for logs.
func unavailable(err error) error {
	if err == nil {
		return nil
	}
	return errors.Join(&Error{KindUnavailable, "storage unavailable"}, err)
}
