// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/holomush/authgate/internal/auth"
)

// UserRepository implements auth.CredentialStore using PostgreSQL.
type UserRepository struct {
	pool Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// CreateUser inserts a user. Duplicates are rejected by the UNIQUE
// constraint on users.username.
func (r *UserRepository) CreateUser(ctx context.Context, username, passwordHash string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (username, password_hash)
		VALUES ($1, $2)
	`, username, passwordHash)
	if isUniqueViolation(err) {
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
	err := r.pool.QueryRow(ctx, `
		SELECT password_hash FROM users WHERE username = $1
	`, username).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
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

// Compile-time interface check.
var _ auth.CredentialStore = (*UserRepository)(nil)
