// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "errors"

// Sentinel errors. Repositories and services wrap these with oops codes and
// context; callers match them with errors.Is.
var (
	// ErrNotFound is returned when a requested user or session does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateUsername is returned when the store rejects a second user
	// with the same username.
	ErrDuplicateUsername = errors.New("username already exists")

	// ErrInvalidCredentials covers both an unknown username and a wrong
	// password. The two cases are never distinguished.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrMalformedHash is returned when a stored password hash cannot be parsed.
	ErrMalformedHash = errors.New("malformed password hash")

	// ErrStore wraps infrastructure failures of the backing store.
	ErrStore = errors.New("store failure")

	// ErrInvalidUsername is returned when a username fails validation.
	ErrInvalidUsername = errors.New("invalid username")

	// ErrEmptyPassword is returned when attempting to hash an empty password.
	ErrEmptyPassword = errors.New("password cannot be empty")
)

// IsValidation reports whether err is a user-correctable registration error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrDuplicateUsername) ||
		errors.Is(err, ErrInvalidUsername) ||
		errors.Is(err, ErrEmptyPassword)
}
