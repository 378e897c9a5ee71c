// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"errors"
	"net/http"

	"github.com/holomush/authgate/internal/auth"
	"github.com/holomush/authgate/internal/observability"
	"github.com/holomush/authgate/pkg/errutil"
)

// readCredentials parses the username and password form fields.
func readCredentials(w http.ResponseWriter, r *http.Request) (username, password string, err error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		return "", "", err
	}
	return r.PostFormValue("username"), r.PostFormValue("password"), nil
}

func (h *Handler) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "register", pageData{Title: "Register"})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	username, password, err := readCredentials(w, r)
	if err != nil {
		h.metrics.Registration(observability.ResultInvalid)
		h.render(w, r, http.StatusBadRequest, "register", pageData{Title: "Register", Error: "Invalid form submission"})
		return
	}

	err = h.auth.Register(r.Context(), username, password)
	if err == nil {
		h.metrics.Registration(observability.ResultSuccess)
		h.logger.InfoContext(r.Context(), "user registered", "username", username)
		http.Redirect(w, r, "/login?success=1", http.StatusSeeOther)
		return
	}

	page := pageData{Title: "Register", Username: username}
	switch {
	case errors.Is(err, auth.ErrDuplicateUsername):
		h.metrics.Registration(observability.ResultDuplicate)
		page.Error = msgDuplicateUsername
		h.render(w, r, http.StatusConflict, "register", page)
	case errors.Is(err, auth.ErrInvalidUsername):
		h.metrics.Registration(observability.ResultInvalid)
		page.Error = msgInvalidUsername
		h.render(w, r, http.StatusBadRequest, "register", page)
	case errors.Is(err, auth.ErrEmptyPassword):
		h.metrics.Registration(observability.ResultInvalid)
		page.Error = msgEmptyPassword
		h.render(w, r, http.StatusBadRequest, "register", page)
	default:
		h.metrics.Registration(observability.ResultError)
		errutil.LogErrorContext(r.Context(), h.logger, "registration failed", err)
		page.Error = msgInternal
		h.render(w, r, http.StatusInternalServerError, "register", page)
	}
}

func (h *Handler) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	page := pageData{Title: "Login"}
	if r.URL.Query().Has("success") {
		page.Success = msgRegistered
	}
	h.render(w, r, http.StatusOK, "login", page)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	username, password, err := readCredentials(w, r)
	if err != nil {
		h.metrics.Login(observability.ResultInvalid)
		h.render(w, r, http.StatusBadRequest, "login", pageData{Title: "Login", Error: "Invalid form submission"})
		return
	}

	token, err := h.auth.Login(r.Context(), username, password)
	switch {
	case err == nil:
		h.metrics.Login(observability.ResultSuccess)
		http.SetCookie(w, h.sessionCookie(token))
		http.Redirect(w, r, "/", http.StatusSeeOther)
	case errors.Is(err, auth.ErrInvalidCredentials):
		h.metrics.Login(observability.ResultInvalid)
		h.render(w, r, http.StatusUnauthorized, "login", pageData{Title: "Login", Error: msgInvalidCredentials})
	default:
		h.metrics.Login(observability.ResultError)
		errutil.LogErrorContext(r.Context(), h.logger, "login failed", err)
		h.render(w, r, http.StatusInternalServerError, "login", pageData{Title: "Login", Error: msgInternal})
	}
}

// handleLogout deletes the session when a cookie is present and always
// expires the cookie. Store failures are only logged.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := sessionToken(r); token != "" {
		if err := h.auth.Logout(r.Context(), token); err != nil {
			errutil.LogErrorContext(r.Context(), h.logger, "logout failed", err)
		}
	}
	h.metrics.Logout()
	http.SetCookie(w, h.expiredSessionCookie())
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
