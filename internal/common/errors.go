// Package common defines shared constants and sentinel errors used across
// client and server layers of Whisperline. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// Handshake errors.
	ErrEmptyUsername    = errors.New("empty username")
	ErrUsernameTooLong  = errors.New("username too long")
	ErrDuplicateSession = errors.New("username already connected")

	// Directory errors (malformed key material).
	ErrInvalidPublicKey = errors.New("invalid public key")
)
