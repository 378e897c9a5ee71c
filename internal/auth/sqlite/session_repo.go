// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/authgate/internal/auth"
)

// SessionRepository implements auth.SessionRepository using SQLite.
type SessionRepository struct {
	db DBTX
}

// NewSessionRepository returns a new SessionRepository bound to the given DBTX.
func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create stores a new session. A colliding id fails on the primary key.
func (r *SessionRepository) Create(ctx context.Context, session *auth.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, username, created_at) VALUES (?, ?, ?)`,
		session.ID, session.Username, session.CreatedAt.Unix())
	if isConstraintViolation(err) {
		return oops.Code("SESSION_ID_COLLISION").
			With("username", session.Username).
			Wrap(storeErr(err))
	}
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert session").
			With("username", session.Username).
			Wrap(storeErr(err))
	}
	return nil
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*auth.Session, error) {
	var (
		username  string
		createdAt int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT username, created_at FROM sessions WHERE id = ?`, id).
		Scan(&username, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_ID_FAILED").
			With("operation", "get session by id").
			Wrap(storeErr(err))
	}
	return &auth.Session{
		ID:        id,
		Username:  username,
		CreatedAt: time.Unix(createdAt, 0).UTC(),
	}, nil
}

// Delete removes a session by ID.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	n, err := r.exec(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete session").
			Wrap(storeErr(err))
	}
	if n == 0 {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteByUsername removes all sessions for a user.
func (r *SessionRepository) DeleteByUsername(ctx context.Context, username string) (int64, error) {
	n, err := r.exec(ctx, `DELETE FROM sessions WHERE username = ?`, username)
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_BY_USER_FAILED").
			With("operation", "delete sessions by username").
			With("username", username).
			Wrap(storeErr(err))
	}
	return n, nil
}

// DeleteCreatedBefore removes sessions created before cutoff.
func (r *SessionRepository) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := r.exec(ctx, `DELETE FROM sessions WHERE created_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired sessions").
			Wrap(storeErr(err))
	}
	return n, nil
}

func (r *SessionRepository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

var _ auth.SessionRepository = (*SessionRepository)(nil)
