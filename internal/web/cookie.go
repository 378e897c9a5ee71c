// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import "net/http"

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "session"

func (h *Handler) sessionCookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

// expiredSessionCookie instructs the browser to drop the session cookie.
func (h *Handler) expiredSessionCookie() *http.Cookie {
	c := h.sessionCookie("")
	c.MaxAge = -1 // serialised as Max-Age=0
	return c
}

// sessionToken returns the session cookie value, or "".
func sessionToken(r *http.Request) string {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
