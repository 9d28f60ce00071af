// Package errors defines the stable error conditions of the messenger core.
// Each sentinel maps to one user-facing condition so the presentation layer
// can localize the message without parsing error strings.
package errors

import "fmt"

var (
	// Input shape problems. Never retried.
	ErrValidation  = fmt.Errorf("validation failed")
	ErrInvalidSlug = fmt.Errorf("group slug must be 3-10 alphanumeric characters")
	ErrSlugTaken   = fmt.Errorf("group slug already taken")

	// Permission engine denials. Surfaced verbatim, never downgraded.
	ErrUnauthorized   = fmt.Errorf("unauthorized")
	ErrTargetNotFound = fmt.Errorf("target user not found")

	// Membership lifecycle.
	ErrNotFound          = fmt.Errorf("not found")
	ErrAlreadyMember     = fmt.Errorf("already a member")
	ErrNotAMember        = fmt.Errorf("not a member")
	ErrBanned            = fmt.Errorf("banned from this group")
	ErrInviteExpired     = fmt.Errorf("invite expired")
	ErrOwnerMustTransfer = fmt.Errorf("owner must transfer ownership before leaving")

	// Accounts.
	ErrUsernameTaken      = fmt.Errorf("username already taken")
	ErrEmailTaken         = fmt.Errorf("email already taken")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")

	// Notifier failures, kept distinct from availability-check failures so
	// the caller can offer a retry without re-validating the whole form.
	ErrDeliveryFailed = fmt.Errorf("delivery failed")

	// Runtime.
	ErrWorkerPanic = fmt.Errorf("worker panic")
)
