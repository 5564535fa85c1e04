package invite

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound     = errors.New("invite: not found")
	ErrInvalidInput = errors.New("invite: invalid input")
	ErrUnauthorized = errors.New("invite: unauthorized")

	// Issuance errors
	ErrNotAllowlisted  = errors.New("invite: wallet not on allowlist")
	ErrQuotaExhausted  = errors.New("invite: no invites remaining")
	ErrSessionRequired = errors.New("invite: wallet verification required")
	ErrSessionMismatch = errors.New("invite: session not verified for this wallet")

	// Redemption errors
	ErrInvalidCode        = errors.New("invite: invalid code")
	ErrCodeAlreadyUsed    = errors.New("invite: code already used")
	ErrSelfInvite         = errors.New("invite: cannot redeem own code")
	ErrAlreadyAllowlisted = errors.New("invite: wallet already allowlisted")
	ErrAlreadyClaimed     = errors.New("invite: wallet already used an invite")

	// Attribution errors
	ErrBadWebhookSignature = errors.New("invite: webhook signature invalid")

	// Store errors
	ErrStoreNotReady = errors.New("invite: store not ready")
	ErrStoreClosed   = errors.New("invite: store is closed")
	ErrDuplicateRow  = errors.New("invite: duplicate row for unique key")

	// Upstream errors
	ErrUpstream = errors.New("invite: upstream service failure")
)

// ValidationError represents a malformed-input failure with field context.
// Validation failures are terminal: callers must not retry the same input.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invite: validation failed for %s: %s", e.Field, e.Message)
}

// IsNotFound reports whether err is a missing-entity error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidCode)
}

// IsConflict reports whether err is a terminal state conflict: the request
// was well-formed but the ledger state forbids it, now and on any retry with
// the same input.
func IsConflict(err error) bool {
	return errors.Is(err, ErrQuotaExhausted) ||
		errors.Is(err, ErrCodeAlreadyUsed) ||
		errors.Is(err, ErrSelfInvite) ||
		errors.Is(err, ErrAlreadyAllowlisted) ||
		errors.Is(err, ErrAlreadyClaimed) ||
		errors.Is(err, ErrNotAllowlisted)
}

// IsValidation reports whether err is a malformed-input error.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v) || errors.Is(err, ErrInvalidInput)
}

// IsAuthFailure reports whether err is an authentication failure.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrSessionRequired) ||
		errors.Is(err, ErrSessionMismatch) ||
		errors.Is(err, ErrBadWebhookSignature)
}
