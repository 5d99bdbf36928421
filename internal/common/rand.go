package common

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// MakeRandURLString generates size random bytes and returns them encoded with
// unpadded URL-safe base64, so the result can be embedded in a link path.
// The encoded string is roughly 4/3 of size characters long.
//
// It returns an error if the random number generator fails.
func MakeRandURLString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashToken returns the hex-encoded SHA-256 digest of an opaque token.
// Only digests of one-time tokens are persisted.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// WipeByteArray overwrites the contents of the provided byte slice with zeros.
// This is useful for removing passwords read from a terminal once they have
// been hashed.
//
// If the slice is nil, the function does nothing.
func WipeByteArray(b []byte) {
	if b == nil {
		return
	}
	for i := range b {
		b[i] = 0
	}
}
