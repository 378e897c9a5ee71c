// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth provides the credential and session lifecycle for authgate.
//
// # Components
//
//   - PasswordHasher - argon2id hashing in PHC string format (Argon2idHasher)
//   - CredentialStore - persists (username, password hash) pairs
//   - SessionManager - issues, validates and revokes session tokens
//   - Service - registration, login and logout built from the above
//
// Storage is injected: CredentialStore and SessionRepository are implemented
// by the postgres and sqlite subpackages over a caller-provided pool.
//
// # Errors
//
// Failures wrap the sentinels in errors.go (ErrNotFound, ErrDuplicateUsername,
// ErrInvalidCredentials, ErrMalformedHash, ErrStore) inside oops errors that
// carry a code and context. Callers match with errors.Is and translate to
// user-facing text at the HTTP boundary only.
package auth
