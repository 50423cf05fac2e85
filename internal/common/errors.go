// Package common defines shared constants and sentinel errors used across
// the LinkVault server layers. Callers should use errors.Is to match these
// values; the HTTP boundary alone maps them to status codes.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal   = errors.New("internal error")
	ErrorDependency = errors.New("dependency failure")

	// Validation errors. Wrap with a field-specific message, e.g.
	// fmt.Errorf("%w: expiry must be in the future", ErrorValidation).
	ErrorValidation = errors.New("validation error")
	ErrorEmailTaken = errors.New("email is already registered")

	// Session errors (missing, malformed, revoked, or stale credential).
	ErrorUnauthenticated = errors.New("unauthenticated")

	// Wrong credential for an existing protected resource.
	ErrorUnauthorized     = errors.New("unauthorized")
	ErrorPasswordRequired = errors.New("password required")
	ErrorWrongPassword    = errors.New("incorrect password")

	// Policy denials.
	ErrorForbidden        = errors.New("forbidden")
	ErrorViewLimitReached = errors.New("view limit reached")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
)
