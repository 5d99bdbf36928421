// Package common defines shared constants and sentinel errors used across
// the storage, service and transport layers. Callers should use errors.Is to
// match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("already exists")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorInvalidInput = errors.New("invalid input")
	ErrorUpstream     = errors.New("upstream failure")

	// Auth errors (invalid, tampered or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired also matches ErrInvalidToken.
	ErrTokenExpired = fmt.Errorf("token expired: %w", ErrInvalidToken)

	// Registration and verification errors.
	ErrEmailAlreadyRegistered   = fmt.Errorf("email already registered: %w", ErrorConflict)
	ErrUserNotFound             = fmt.Errorf("user %w", ErrorNotFound)
	ErrAlreadyVerified          = errors.New("already verified")
	ErrInvalidOrAlreadyVerified = fmt.Errorf("invalid email or token, or already verified: %w", ErrorInvalidInput)

	// Upload errors.
	ErrFileTooLarge        = fmt.Errorf("file size too large: %w", ErrorInvalidInput)
	ErrUnsupportedFileType = fmt.Errorf("invalid file type: %w", ErrorInvalidInput)
)
