// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"regexp"

	"github.com/samber/oops"
)

// Username validation constraints.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
)

// usernameRegex matches usernames that:
// - Start with a letter (a-z, A-Z)
// - Contain only letters, numbers, and underscores
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// User is a registered account. Users are never updated or deleted.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
}

// ValidateUsername validates a username against rules.
// Username requirements:
// - Length: MinUsernameLength to MaxUsernameLength characters
// - Must start with a letter
// - Can contain only letters (a-z, A-Z), numbers (0-9), and underscores (_)
func ValidateUsername(username string) error {
	if username == "" {
		return oops.Code("AUTH_INVALID_USERNAME").
			Wrapf(ErrInvalidUsername, "username cannot be empty")
	}
	if len(username) < MinUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("min", MinUsernameLength).
			Wrapf(ErrInvalidUsername, "username must be at least %d characters", MinUsernameLength)
	}
	if len(username) > MaxUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("max", MaxUsernameLength).
			Wrapf(ErrInvalidUsername, "username must be at most %d characters", MaxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return oops.Code("AUTH_INVALID_USERNAME").
			Wrapf(ErrInvalidUsername, "username must start with a letter and contain only letters, numbers, and underscores")
	}
	return nil
}

// CredentialStore persists (username, password hash) pairs.
type CredentialStore interface {
	// CreateUser inserts a new user. The store's uniqueness constraint decides
	// duplicates: a second insert for the same username fails with an error
	// wrapping ErrDuplicateUsername. Other failures wrap ErrStore.
	CreateUser(ctx context.Context, username, passwordHash string) error

	// FindPasswordHash returns the stored hash for username, or an error
	// wrapping ErrNotFound when no such user exists.
	FindPasswordHash(ctx context.Context, username string) (string, error)
}
