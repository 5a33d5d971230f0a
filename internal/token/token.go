package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// TTL is how long an issued connection token stays redeemable.
const TTL = 5 * time.Minute

// Authorization error taxonomy. All of these map to a rejected operation
// and are never retried; each gets its own log category even where the
// HTTP layer collapses them into one status code.
var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidToken     = errors.New("invalid connection token")
	ErrTokenExpired     = errors.New("connection token has expired")
	ErrTokenAlreadyUsed = errors.New("connection token has already been used")
)

// Token is a persisted connection-token row. Only the hash of the secret is
// ever stored; the raw value travels once in the deep link.
type Token struct {
	ID        string
	UserID    string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	Used      bool
	UsedAt    *time.Time
}

// Expired reports whether the token is past its expiry at the given time.
func (t Token) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// NewSecret generates a 256-bit random secret, hex encoded.
func NewSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Hash returns the hex-encoded SHA-256 digest of a raw token, the only
// form that may be persisted or used for lookup.
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
