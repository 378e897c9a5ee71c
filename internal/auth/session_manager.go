// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"
)

// SessionManager issues, validates and revokes session tokens.
type SessionManager struct {
	sessions SessionRepository
	ttl      time.Duration
	now      func() time.Time
}

// SessionManagerOption configures a SessionManager.
type SessionManagerOption func(*SessionManager)

// WithSessionTTL sets the session lifetime. Zero disables expiry.
func WithSessionTTL(ttl time.Duration) SessionManagerOption {
	return func(m *SessionManager) {
		m.ttl = ttl
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) SessionManagerOption {
	return func(m *SessionManager) {
		m.now = now
	}
}

// NewSessionManager creates a SessionManager over the given repository.
func NewSessionManager(sessions SessionRepository, opts ...SessionManagerOption) (*SessionManager, error) {
	if sessions == nil {
		return nil, oops.Code("SESSION_MANAGER_INVALID").Errorf("sessions repository is required")
	}
	m := &SessionManager{
		sessions: sessions,
		ttl:      DefaultSessionTokenTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.ttl < 0 {
		return nil, oops.Code("SESSION_MANAGER_INVALID").With("ttl", m.ttl).Errorf("session ttl cannot be negative")
	}
	return m, nil
}

// TTL returns the configured session lifetime.
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Create issues a new session for username and returns the bearer token.
func (m *SessionManager) Create(ctx context.Context, username string) (string, error) {
	token, id, err := GenerateSessionToken()
	if err != nil {
		return "", err
	}

	session := &Session{
		ID:        id,
		Username:  username,
		CreatedAt: m.now().UTC().Truncate(time.Second),
	}
	if err := m.sessions.Create(ctx, session); err != nil {
		return "", oops.Code("SESSION_CREATE_FAILED").
			With("operation", "persist session").
			With("username", username).
			Wrap(err)
	}
	return token, nil
}

// Validate resolves a token to the username it was issued for. ok is false
// for malformed, unknown and expired tokens; err is only set when the store
// could not answer.
func (m *SessionManager) Validate(ctx context.Context, token string) (username string, ok bool, err error) {
	if !IsWellFormedToken(token) {
		return "", false, nil
	}

	session, err := m.sessions.GetByID(ctx, HashSessionToken(token))
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, oops.Code("SESSION_VALIDATE_FAILED").
			With("operation", "get session by id").
			Wrap(err)
	}

	if session.IsExpiredAt(m.now(), m.ttl) {
		return "", false, nil
	}
	return session.Username, true, nil
}

// Delete removes the session identified by token. Malformed and unknown
// tokens yield an error wrapping ErrNotFound.
func (m *SessionManager) Delete(ctx context.Context, token string) error {
	if !IsWellFormedToken(token) {
		return oops.Code("SESSION_NOT_FOUND").Wrap(ErrNotFound)
	}
	if err := m.sessions.Delete(ctx, HashSessionToken(token)); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	return nil
}

// Revoke removes every session belonging to username.
func (m *SessionManager) Revoke(ctx context.Context, username string) (int64, error) {
	n, err := m.sessions.DeleteByUsername(ctx, username)
	if err != nil {
		return 0, oops.Code("SESSION_REVOKE_FAILED").
			With("operation", "delete sessions by username").
			With("username", username).
			Wrap(err)
	}
	return n, nil
}

// DeleteExpired removes sessions older than the TTL. It is a no-op when
// expiry is disabled.
func (m *SessionManager) DeleteExpired(ctx context.Context) (int64, error) {
	if m.ttl <= 0 {
		return 0, nil
	}
	cutoff := m.now().Add(-m.ttl)
	n, err := m.sessions.DeleteCreatedBefore(ctx, cutoff)
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired sessions").
			With("cutoff", cutoff).
			Wrap(err)
	}
	return n, nil
}
