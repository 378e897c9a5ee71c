// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/samber/oops"

	"github.com/holomush/authgate/internal/auth"
)

// UserRepository implements auth.CredentialStore using SQLite.
type UserRepository struct {
	db DBTX
}

// NewUserRepository returns a new UserRepository bound to the given DBTX.
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser inserts a user. Duplicates are rejected by the UNIQUE
// constraint on users.username.
func (r *UserRepository) CreateUser(ctx context.Context, username, passwordHash string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash) VALUES (?, ?)`,
		username, passwordHash)
	if isConstraintViolation(err) {
		return oops.Code("USER_DUPLICATE").
			With("username", username).
			Wrap(auth.ErrDuplicateUsername)
	}
	if err != nil {
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("username", username).
			Wrap(storeErr(err))
	}
	return nil
}

// FindPasswordHash returns the password hash stored for username.
func (r *UserRepository) FindPasswordHash(ctx context.Context, username string) (string, error) {
	var hash string
	err := r.db.QueryRowContext(ctx,
		`SELECT password_hash FROM users WHERE username = ?`,
		username).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", oops.Code("USER_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return "", oops.Code("USER_GET_FAILED").
			With("operation", "get password hash").
			With("username", username).
			Wrap(storeErr(err))
	}
	return hash, nil
}

var _ auth.CredentialStore = (*UserRepository)(nil)
