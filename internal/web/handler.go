// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package web serves the authgate HTTP surface: registration and login
// pages, logout, and the forward-auth check used by reverse proxies.
package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/samber/oops"

	"github.com/holomush/authgate/internal/observability"
)

// User-facing messages.
const (
	msgAlive              = "authgate is alive!"
	msgUnauthorized       = "Unauthorized"
	msgInternal           = "Internal server error"
	msgInvalidCredentials = "Invalid username or password"
	msgDuplicateUsername  = "Username already exists"
	msgInvalidUsername    = "Username must be 3-30 characters, start with a letter and use only letters, digits or underscores"
	msgEmptyPassword      = "Password cannot be empty"
	msgRegistered         = "Account registered successfully. You may now log in."
)

// maxFormBytes bounds login and registration request bodies.
const maxFormBytes = 16 << 10

// AuthService is the orchestration the handlers drive. *auth.Service
// satisfies it.
type AuthService interface {
	Register(ctx context.Context, username, password string) error
	Login(ctx context.Context, username, password string) (string, error)
	Logout(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (string, bool, error)
}

// Handler serves the gateway routes.
type Handler struct {
	auth         AuthService
	logger       *slog.Logger
	metrics      *observability.Metrics
	ui           UI
	cookieSecure bool
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// WithMetrics records request and auth metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithUI customises the rendered pages.
func WithUI(ui UI) Option {
	return func(h *Handler) { h.ui = ui }
}

// WithSecureCookie controls the Secure attribute of the session cookie.
// It defaults to true; only disable it for plain-HTTP development setups.
func WithSecureCookie(secure bool) Option {
	return func(h *Handler) { h.cookieSecure = secure }
}

// NewHandler creates a Handler.
func NewHandler(svc AuthService, opts ...Option) (*Handler, error) {
	if svc == nil {
		return nil, oops.Code("WEB_INVALID").Errorf("auth service is required")
	}
	h := &Handler{
		auth:         svc,
		logger:       slog.Default(),
		cookieSecure: true,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		return nil, oops.Code("WEB_INVALID").Errorf("logger cannot be nil")
	}
	return h, nil
}

// Router returns the gateway routes wrapped in the request middleware.
func (h *Handler) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(h.requestID, h.accessLog)

	r.HandleFunc("/", h.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/register", h.handleRegisterPage).Methods(http.MethodGet)
	r.HandleFunc("/register", h.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/login", h.handleLoginPage).Methods(http.MethodGet)
	r.HandleFunc("/login", h.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/logout", h.handleLogout).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/auth/proxy", h.handleAuthCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/auth/check", h.handleAuthCheck).Methods(http.MethodGet, http.MethodHead)

	return r
}

func (h *Handler) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	//nolint:errcheck // client may disconnect
	w.Write([]byte(msgAlive))
}
