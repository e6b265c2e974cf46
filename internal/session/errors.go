package session

import "errors"

var (
	// ErrInvalidToken is returned for malformed, forged or expired tokens
	ErrInvalidToken = errors.New("session: invalid token")

	// ErrNotFound is returned when the session record expired or was revoked
	ErrNotFound = errors.New("session: not found")

	// ErrMissingSecret is returned when no signing secret is configured
	ErrMissingSecret = errors.New("session: signing secret required")
)
