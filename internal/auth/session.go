// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/samber/oops"
)

// Session token configuration.
const (
	SessionTokenBytes      = 32             // 32 bytes = 64 hex chars
	DefaultSessionTokenTTL = 24 * time.Hour // default expiry, 0 disables
)

// Session is a persisted login. ID is the SHA-256 digest of the bearer
// token; the token itself is only ever held by the client.
type Session struct {
	ID        string
	Username  string
	CreatedAt time.Time
}

// IsExpiredAt reports whether the session is older than ttl at time t.
// A zero ttl never expires.
func (s *Session) IsExpiredAt(t time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return t.After(s.CreatedAt.Add(ttl))
}

// GenerateSessionToken creates a secure random token and its hash.
// Returns (plaintext_token, sha256_hash, error).
// The plaintext token is sent to the client; the hash is stored in the database.
func GenerateSessionToken() (token, hash string, err error) {
	tokenBytes := make([]byte, SessionTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SessionTokenBytes).
			Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	return token, HashSessionToken(token), nil
}

// HashSessionToken computes the SHA256 hash of a session token.
// This is the value stored in the sessions.id column.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// IsWellFormedToken reports whether token has the shape GenerateSessionToken
// produces: 64 lowercase hex characters.
func IsWellFormedToken(token string) bool {
	if len(token) != SessionTokenBytes*2 {
		return false
	}
	for i := 0; i < len(token); i++ {
		c := token[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// SessionRepository manages session persistence.
type SessionRepository interface {
	// Create stores a new session. An id collision is an error; existing
	// rows are never overwritten.
	Create(ctx context.Context, session *Session) error

	// GetByID retrieves a session by its ID (the token hash).
	GetByID(ctx context.Context, id string) (*Session, error)

	// Delete removes a session by ID. Returns ErrNotFound when no row matched.
	Delete(ctx context.Context, id string) error

	// DeleteByUsername removes all sessions for a user and returns the count.
	DeleteByUsername(ctx context.Context, username string) (int64, error)

	// DeleteCreatedBefore removes sessions created before cutoff and returns
	// the count of deleted records.
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
