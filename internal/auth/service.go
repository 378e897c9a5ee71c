// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/authgate/pkg/errutil"
)

// DefaultOpTimeout bounds every store call, including pool acquisition.
const DefaultOpTimeout = 5 * time.Second

var tracer = otel.Tracer("github.com/holomush/authgate/internal/auth")

// dummyPasswordHash is used when a user doesn't exist to prevent timing attacks.
// We still run password verification to make response time consistent.
// This is NOT a real credential - it's a fake hash that will never match any password.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Service provides registration, login, logout and session resolution.
type Service struct {
	users     CredentialStore
	sessions  *SessionManager
	hasher    PasswordHasher
	logger    *slog.Logger
	opTimeout time.Duration
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger used for integrity and infrastructure events.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithOpTimeout sets the per-operation store timeout. Zero disables it.
func WithOpTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		s.opTimeout = d
	}
}

// NewService creates a new Service.
func NewService(users CredentialStore, sessions *SessionManager, hasher PasswordHasher, opts ...ServiceOption) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("credential store is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("session manager is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("password hasher is required")
	}

	s := &Service{
		users:     users,
		sessions:  sessions,
		hasher:    hasher,
		logger:    slog.Default(),
		opTimeout: DefaultOpTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("logger cannot be nil")
	}
	return s, nil
}

// Sessions returns the underlying session manager.
func (s *Service) Sessions() *SessionManager {
	return s.sessions
}

func (s *Service) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Register creates a user with a freshly hashed password.
func (s *Service) Register(ctx context.Context, username, password string) (err error) {
	ctx, span := tracer.Start(ctx, "auth.Register", trace.WithAttributes(attribute.String("username", username)))
	defer func() { endSpan(span, err) }()

	if err := ValidateUsername(username); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, ErrEmptyPassword) {
			return err
		}
		return oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	if err := s.users.CreateUser(storeCtx, username, hash); err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			return err
		}
		return oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create user").
			With("username", username).
			Wrap(err)
	}
	return nil
}

// Login authenticates a user and issues a session token.
// Uses constant-time operations to prevent timing-based username enumeration.
func (s *Service) Login(ctx context.Context, username, password string) (token string, err error) {
	ctx, span := tracer.Start(ctx, "auth.Login", trace.WithAttributes(attribute.String("username", username)))
	defer func() { endSpan(span, err) }()

	storeCtx, cancel := s.storeContext(ctx)
	stored, lookupErr := s.users.FindPasswordHash(storeCtx, username)
	cancel()

	targetHash := stored
	userExists := true
	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return "", oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "find password hash").
				Wrap(lookupErr)
		}
		targetHash = dummyPasswordHash
		userExists = false
	}

	// Always verify, even for unknown users, so both paths cost the same.
	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		if userExists && errors.Is(verifyErr, ErrMalformedHash) {
			errutil.LogError(s.logger, "stored password hash is malformed", oops.
				With("username", username).
				Wrap(verifyErr))
		}
		return "", oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
	}
	if !userExists || !valid {
		return "", oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
	}

	storeCtx, cancel = s.storeContext(ctx)
	defer cancel()

	token, err = s.sessions.Create(storeCtx, username)
	if err != nil {
		return "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "create session").
			Wrap(err)
	}
	return token, nil
}

// Logout revokes the session identified by token. Unknown or already
// deleted sessions are not an error.
func (s *Service) Logout(ctx context.Context, token string) (err error) {
	ctx, span := tracer.Start(ctx, "auth.Logout")
	defer func() { endSpan(span, err) }()

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	if err := s.sessions.Delete(storeCtx, token); err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.DebugContext(ctx, "logout for unknown session")
			return nil
		}
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	return nil
}

// Authenticate resolves a session token to a username.
func (s *Service) Authenticate(ctx context.Context, token string) (username string, ok bool, err error) {
	ctx, span := tracer.Start(ctx, "auth.Authenticate")
	defer func() { endSpan(span, err) }()

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	return s.sessions.Validate(storeCtx, token)
}
