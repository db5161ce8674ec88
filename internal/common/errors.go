// Package common defines shared constants and sentinel errors used across
// client and server layers of gophauth. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound    = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")
	ErrValidation = errors.New("validation error")

	// Signup errors.
	ErrUsernameTaken      = errors.New("username taken")
	ErrUnknownTier        = errors.New("unknown cost tier")
	ErrPersistenceWarning = errors.New("account created but may not survive a restart")

	// Login errors. Unknown user and wrong password both map here.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Key derivation errors.
	ErrDerivation        = errors.New("key derivation error")
	ErrDerivationTimeout = errors.New("key derivation timeout")

	// Store load errors (non-fatal at startup).
	ErrStoreCorrupt = errors.New("credential store corrupt")

	// Session and token errors.
	ErrInvalidSession = errors.New("invalid session")
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token expired")
)
