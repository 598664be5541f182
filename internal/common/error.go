// Package common defines shared constants and sentinel errors used across
// the service layers of addonkeeper. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal      = errors.New("internal error")
	ErrorUnauthorized  = errors.New("unauthorized")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrAlreadyExists   = errors.New("already exists")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Vault errors. A blob that cannot be opened is an unusable credential,
	// never an empty one.
	ErrDecrypt = errors.New("decryption failed")

	// Manifest source errors.
	ErrFetch             = errors.New("manifest fetch failed")
	ErrMalformedManifest = errors.New("malformed manifest")

	// Remote platform errors.
	ErrRemote = errors.New("remote platform error")
)
