// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"net/http"

	"github.com/holomush/authgate/internal/observability"
	"github.com/holomush/authgate/pkg/errutil"
)

// RemoteUserHeader carries the authenticated username back to the proxy.
const RemoteUserHeader = "Remote-User"

// handleAuthCheck implements the forward-auth contract: 200 with
// Remote-User for a live session, 401 otherwise. Store failures also deny;
// the proxy never learns why.
func (h *Handler) handleAuthCheck(w http.ResponseWriter, r *http.Request) {
	token := sessionToken(r)
	if token == "" {
		h.deny(w, observability.ResultDenied)
		return
	}

	username, ok, err := h.auth.Authenticate(r.Context(), token)
	if err != nil {
		errutil.LogErrorContext(r.Context(), h.logger, "session lookup failed", err)
		h.deny(w, observability.ResultError)
		return
	}
	if !ok {
		h.deny(w, observability.ResultDenied)
		return
	}

	h.metrics.AuthCheck(observability.ResultAllowed)
	w.Header().Set(RemoteUserHeader, username)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) deny(w http.ResponseWriter, result string) {
	h.metrics.AuthCheck(result)
	w.Header().Set("Cache-Control", "no-store")
	http.Error(w, msgUnauthorized, http.StatusUnauthorized)
}
