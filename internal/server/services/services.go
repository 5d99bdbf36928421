// Package services contains server-side business logic: user registration,
// login, email verification, avatars and owner-scoped contact management.
// Errors returned here are the sentinels from internal/common, possibly
// wrapped, so the transport layer can map them with errors.Is.
package services

import "context"

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// EmailSender hands a message off for delivery without waiting for it.
type EmailSender interface {
	Send(to, subject, body string)
}

// AvatarStore uploads image bytes and returns their public URL.
type AvatarStore interface {
	Upload(ctx context.Context, name string, data []byte, contentType string) (string, error)
}
