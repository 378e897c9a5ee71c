// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package authtest provides in-memory stores for tests.
package authtest

import (
	"context"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/authgate/internal/auth"
)

// MemoryStore implements auth.CredentialStore and auth.SessionRepository
// with maps. Err, when set, is returned by every call.
type MemoryStore struct {
	mu       sync.Mutex
	users    map[string]string
	sessions map[string]auth.Session
	nextID   int64

	Err error
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]string),
		sessions: make(map[string]auth.Session),
	}
}

// CreateUser stores a user, rejecting duplicates.
func (m *MemoryStore) CreateUser(_ context.Context, username, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return oops.Wrap(m.Err)
	}
	if _, exists := m.users[username]; exists {
		return oops.Code("USER_DUPLICATE").With("username", username).Wrap(auth.ErrDuplicateUsername)
	}
	m.nextID++
	m.users[username] = passwordHash
	return nil
}

// FindPasswordHash returns the stored hash for username.
func (m *MemoryStore) FindPasswordHash(_ context.Context, username string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", oops.Wrap(m.Err)
	}
	hash, ok := m.users[username]
	if !ok {
		return "", oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return hash, nil
}

// Create stores a session, rejecting id collisions.
func (m *MemoryStore) Create(_ context.Context, session *auth.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return oops.Wrap(m.Err)
	}
	if _, exists := m.sessions[session.ID]; exists {
		return oops.Code("SESSION_CREATE_FAILED").Wrap(auth.ErrStore)
	}
	m.sessions[session.ID] = *session
	return nil
}

// GetByID returns a copy of the session with the given id.
func (m *MemoryStore) GetByID(_ context.Context, id string) (*auth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, oops.Wrap(m.Err)
	}
	s, ok := m.sessions[id]
	if !ok {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return &s, nil
}

// Delete removes one session.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return oops.Wrap(m.Err)
	}
	if _, ok := m.sessions[id]; !ok {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	delete(m.sessions, id)
	return nil
}

// DeleteByUsername removes every session of username.
func (m *MemoryStore) DeleteByUsername(_ context.Context, username string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, oops.Wrap(m.Err)
	}
	var n int64
	for id, s := range m.sessions {
		if s.Username == username {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// DeleteCreatedBefore removes sessions created before cutoff.
func (m *MemoryStore) DeleteCreatedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, oops.Wrap(m.Err)
	}
	var n int64
	for id, s := range m.sessions {
		if s.CreatedAt.Before(cutoff) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// PasswordHash returns the raw stored hash, for assertions.
func (m *MemoryStore) PasswordHash(username string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.users[username]
	return h, ok
}

// SessionCount returns the number of stored sessions.
func (m *MemoryStore) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

var (
	_ auth.CredentialStore   = (*MemoryStore)(nil)
	_ auth.SessionRepository = (*MemoryStore)(nil)
)
