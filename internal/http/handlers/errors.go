// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants mapped to HTTP responses
// (via the `fail()` helper in this package) plus the translation from the
// service error taxonomy into status/code pairs. Codes give clients a stable,
// machine-readable taxonomy that supplements human-readable messages.
//
// Conventions:
//   - Codes are lowercase snake_case.
//   - Generic codes (bad_request, not_found, conflict) mirror common HTTP
//     status semantics.
//   - rule_violation marks business-policy denials that are neither a missing
//     resource nor a concurrency conflict (422).
package handlers

import (
	"net/http"

	"github.com/tbourn/go-library-backend/internal/services"
)

const (
	ErrCodeBadRequest    = "bad_request"
	ErrCodeNotFound      = "not_found"
	ErrCodeConflict      = "conflict"
	ErrCodeRuleViolation = "rule_violation"
	ErrCodeRateLimited   = "too_many_requests"
	ErrCodeUnavailable   = "unavailable"
	ErrCodeInternal      = "internal_error"

	ErrCodeMethodNotAllowed = "method_not_allowed"
)

// statusFor maps a service error kind onto an HTTP status and error code.
// Unclassified errors are treated as storage problems, not client faults.
func statusFor(kind services.Kind) (int, string) {
	switch kind {
	case services.KindNotFound:
		return http.StatusNotFound, ErrCodeNotFound
	case services.KindConflict:
		return http.StatusConflict, ErrCodeConflict
	case services.KindRuleViolation:
		return http.StatusUnprocessableEntity, ErrCodeRuleViolation
	case services.KindInvalidInput:
		return http.StatusBadRequest, ErrCodeBadRequest
	default:
		return http.StatusServiceUnavailable, ErrCodeUnavailable
	}
}
