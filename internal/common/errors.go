// Package common defines shared sentinel errors used across authkeeper
// components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Service-level errors.
	ErrInternal             = errors.New("internal error")
	ErrStorageUnavailable   = errors.New("storage unavailable")
	ErrInvalidCredentials   = errors.New("wrong login or password")
	ErrUnauthenticated      = errors.New("unauthenticated")
	ErrForbidden            = errors.New("forbidden")
	ErrProviderUserCreation = errors.New("provider user creation failed")

	// Access token errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
