// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web_test

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/holomush/authgate/internal/auth"
	"github.com/holomush/authgate/internal/auth/authtest"
	"github.com/holomush/authgate/internal/logging"
	"github.com/holomush/authgate/internal/observability"
	"github.com/holomush/authgate/internal/web"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type gateway struct {
	router  http.Handler
	store   *authtest.MemoryStore
	metrics *observability.Metrics
	logs    *bytes.Buffer
}

func newGateway(t *testing.T, opts ...web.Option) *gateway {
	t.Helper()
	store := authtest.NewMemoryStore()
	sessions, err := auth.NewSessionManager(store)
	require.NoError(t, err)

	logs := &bytes.Buffer{}
	logger := logging.Setup(logging.Options{Service: "authgate", Level: slog.LevelDebug, Writer: logs})

	svc, err := auth.NewService(store, sessions, auth.NewArgon2idHasher(), auth.WithLogger(logger))
	require.NoError(t, err)

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	opts = append([]web.Option{web.WithLogger(logger), web.WithMetrics(metrics)}, opts...)
	h, err := web.NewHandler(svc, opts...)
	require.NoError(t, err)

	return &gateway{router: h.Router(), store: store, metrics: metrics, logs: logs}
}

func (g *gateway) do(method, path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, c := range cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	rec := httptest.NewRecorder()
	g.router.ServeHTTP(rec, req)
	return rec
}

func creds(username, password string) url.Values {
	return url.Values{"username": {username}, "password": {password}}
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == web.SessionCookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", web.SessionCookieName)
	return nil
}

func (g *gateway) register(t *testing.T, username, password string) {
	t.Helper()
	rec := g.do(http.MethodPost, "/register", creds(username, password))
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
}

func (g *gateway) login(t *testing.T, username, password string) *http.Cookie {
	t.Helper()
	rec := g.do(http.MethodPost, "/login", creds(username, password))
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	return sessionCookie(t, rec)
}

func TestNewHandler_Invalid(t *testing.T) {
	_, err := web.NewHandler(nil)
	require.Error(t, err)

	svc := &auth.Service{}
	_, err = web.NewHandler(svc, web.WithLogger(nil))
	require.Error(t, err)
}

func TestRoot(t *testing.T) {
	g := newGateway(t)
	rec := g.do(http.MethodGet, "/", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "authgate is alive!", rec.Body.String())
	assert.Len(t, rec.Header().Get(web.RequestIDHeader), 26, "ULID request id")
}

func TestEndToEnd_RegisterLoginCheckLogout(t *testing.T) {
	g := newGateway(t)

	rec := g.do(http.MethodPost, "/register", creds("alice", "pw1"))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?success=1", rec.Header().Get("Location"))

	rec = g.do(http.MethodPost, "/login", creds("alice", "pw1"))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	cookie := sessionCookie(t, rec)
	assert.Len(t, cookie.Value, 64)
	assert.Equal(t, "/", cookie.Path)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)

	for _, path := range []string{"/auth/proxy", "/auth/check"} {
		rec = g.do(http.MethodGet, path, nil, cookie)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "alice", rec.Header().Get(web.RemoteUserHeader), path)
	}

	rec = g.do(http.MethodGet, "/logout", nil, cookie)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	expired := sessionCookie(t, rec)
	assert.Empty(t, expired.Value)
	assert.Equal(t, "/", expired.Path)
	assert.Less(t, expired.MaxAge, 0, "Max-Age=0 parses as a negative MaxAge")
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "Max-Age=0")

	rec = g.do(http.MethodGet, "/auth/proxy", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Header().Get(web.RemoteUserHeader))
	assert.Zero(t, g.store.SessionCount())
}

func TestAuthCheck_Denials(t *testing.T) {
	g := newGateway(t)
	g.register(t, "alice", "pw1")

	tests := []struct {
		name    string
		cookies []*http.Cookie
	}{
		{"no cookie", nil},
		{"empty cookie", []*http.Cookie{{Name: web.SessionCookieName, Value: ""}}},
		{"malformed token", []*http.Cookie{{Name: web.SessionCookieName, Value: "not-a-token"}}},
		{"unknown token", []*http.Cookie{{Name: web.SessionCookieName, Value: strings.Repeat("ab", 32)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := g.do(http.MethodGet, "/auth/proxy", nil, tt.cookies...)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "Unauthorized", strings.TrimSpace(rec.Body.String()))
			assert.Empty(t, rec.Header().Get(web.RemoteUserHeader))
		})
	}
	assert.Equal(t, float64(len(tests)), testutil.ToFloat64(g.metrics.AuthChecks.WithLabelValues(observability.ResultDenied)))
}

func TestAuthCheck_StoreFailureDenies(t *testing.T) {
	g := newGateway(t)
	g.register(t, "alice", "pw1")
	cookie := g.login(t, "alice", "pw1")

	g.store.Err = errors.New("connection refused")
	rec := g.do(http.MethodGet, "/auth/check", nil, cookie)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized", strings.TrimSpace(rec.Body.String()))
	assert.Empty(t, rec.Header().Get(web.RemoteUserHeader))
	assert.Equal(t, float64(1), testutil.ToFloat64(g.metrics.AuthChecks.WithLabelValues(observability.ResultError)))
	assert.Contains(t, g.logs.String(), "session lookup failed")
}

func TestAuthCheck_DoesNotMutate(t *testing.T) {
	g := newGateway(t)
	g.register(t, "alice", "pw1")
	cookie := g.login(t, "alice", "pw1")

	for range 3 {
		rec := g.do(http.MethodGet, "/auth/proxy", nil, cookie)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Result().Cookies())
	}
	assert.Equal(t, 1, g.store.SessionCount())
}

func TestRegister_Errors(t *testing.T) {
	g := newGateway(t)
	g.register(t, "alice", "pw1")

	tests := []struct {
		name     string
		username string
		password string
		code     int
		message  string
	}{
		{"duplicate", "alice", "other", http.StatusConflict, "Username already exists"},
		{"short username", "al", "pw", http.StatusBadRequest, "Username must be 3-30 characters"},
		{"bad characters", "al ice", "pw", http.StatusBadRequest, "Username must be 3-30 characters"},
		{"empty password", "bob", "", http.StatusBadRequest, "Password cannot be empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := g.do(http.MethodPost, "/register", creds(tt.username, tt.password))
			assert.Equal(t, tt.code, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.message)
			assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
		})
	}

	hash, found := g.store.PasswordHash("alice")
	require.True(t, found)
	ok, err := auth.NewArgon2idHasher().Verify("pw1", hash)
	require.NoError(t, err)
	assert.True(t, ok, "duplicate registration must not replace the first hash")
}

func TestRegister_StoreFailure(t *testing.T) {
	g := newGateway(t)
	g.store.Err = errors.New("disk I/O error")

	rec := g.do(http.MethodPost, "/register", creds("alice", "pw1"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal server error")
	assert.NotContains(t, rec.Body.String(), "disk I/O error")
	assert.Contains(t, g.logs.String(), "disk I/O error")
}

func TestRegister_OversizedForm(t *testing.T) {
	g := newGateway(t)
	rec := g.do(http.MethodPost, "/register", creds("alice", strings.Repeat("x", 64<<10)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	g := newGateway(t)
	g.register(t, "alice", "pw1")

	wrongPassword := g.do(http.MethodPost, "/login", creds("alice", "nope"))
	unknownUser := g.do(http.MethodPost, "/login", creds("mallory", "nope"))

	for _, rec := range []*httptest.ResponseRecorder{wrongPassword, unknownUser} {
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Invalid username or password")
		assert.Empty(t, rec.Result().Cookies())
	}
	assert.Equal(t, wrongPassword.Body.String(), unknownUser.Body.String())
	assert.Equal(t, float64(2), testutil.ToFloat64(g.metrics.Logins.WithLabelValues(observability.ResultInvalid)))
}

func TestLogin_StoreFailure(t *testing.T) {
	g := newGateway(t)
	g.register(t, "alice", "pw1")
	g.store.Err = errors.New("connection refused")

	rec := g.do(http.MethodPost, "/login", creds("alice", "pw1"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal server error")
	assert.Empty(t, rec.Result().Cookies())
}

func TestLogin_Sessions(t *testing.T) {
	g := newGateway(t)
	g.register(t, "alice", "pw1")

	first := g.login(t, "alice", "pw1")
	second := g.login(t, "alice", "pw1")
	assert.NotEqual(t, first.Value, second.Value)
	assert.Equal(t, 2, g.store.SessionCount())

	// Logging out one session leaves the other valid.
	g.do(http.MethodPost, "/logout", nil, first)
	assert.Equal(t, http.StatusUnauthorized, g.do(http.MethodGet, "/auth/proxy", nil, first).Code)
	assert.Equal(t, http.StatusOK, g.do(http.MethodGet, "/auth/proxy", nil, second).Code)
}

func TestLoginPage(t *testing.T) {
	g := newGateway(t)

	rec := g.do(http.MethodGet, "/login", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `action="/login"`)
	assert.NotContains(t, rec.Body.String(), "registered successfully")

	rec = g.do(http.MethodGet, "/login?success=1", nil)
	assert.Contains(t, rec.Body.String(), "Account registered successfully")

	rec = g.do(http.MethodGet, "/register", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `action="/register"`)
}

func TestLogout_WithoutCookie(t *testing.T) {
	g := newGateway(t)
	rec := g.do(http.MethodGet, "/logout", nil)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.Less(t, sessionCookie(t, rec).MaxAge, 0)
}

func TestLogout_UnknownSession(t *testing.T) {
	g := newGateway(t)
	rec := g.do(http.MethodGet, "/logout", nil, &http.Cookie{Name: web.SessionCookieName, Value: strings.Repeat("0", 64)})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.NotContains(t, g.logs.String(), "logout failed")
}

func TestInsecureCookie(t *testing.T) {
	g := newGateway(t, web.WithSecureCookie(false))
	g.register(t, "alice", "pw1")
	cookie := g.login(t, "alice", "pw1")
	assert.False(t, cookie.Secure)
	assert.True(t, cookie.HttpOnly)
}

func TestMethodNotAllowed(t *testing.T) {
	g := newGateway(t)
	assert.Equal(t, http.StatusMethodNotAllowed, g.do(http.MethodDelete, "/login", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, g.do(http.MethodPost, "/auth/proxy", nil).Code)
}

func TestAccessLog(t *testing.T) {
	g := newGateway(t)
	g.register(t, "alice", "secret-password")

	out := g.logs.String()
	assert.Contains(t, out, `"msg":"http request"`)
	assert.Contains(t, out, `"route":"/register"`)
	assert.Contains(t, out, `"request_id"`)
	assert.NotContains(t, out, "secret-password")
	assert.Equal(t, 1, testutil.CollectAndCount(g.metrics.RequestDuration))
}

func TestUI(t *testing.T) {
	dir := t.TempDir()
	cssPath := filepath.Join(dir, "site.css")
	logoPath := filepath.Join(dir, "logo.png")
	require.NoError(t, os.WriteFile(cssPath, []byte("body { color: #123456; }"), 0o600))
	require.NoError(t, os.WriteFile(logoPath, []byte{0x89, 'P', 'N', 'G'}, 0o600))

	ui, err := web.LoadUI("Example <Corp>", cssPath, logoPath)
	require.NoError(t, err)

	g := newGateway(t, web.WithUI(ui))
	body := g.do(http.MethodGet, "/login", nil).Body.String()

	assert.Contains(t, body, "<style>body { color: #123456; }</style>")
	assert.Contains(t, body, `src="data:image/png;base64,`)
	assert.Contains(t, body, "Example &lt;Corp&gt;")
}

func TestLoadUI_MissingFiles(t *testing.T) {
	_, err := web.LoadUI("", filepath.Join(t.TempDir(), "missing.css"), "")
	require.Error(t, err)

	_, err = web.LoadUI("", "", filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, err)

	ui, err := web.LoadUI("Site", "", "")
	require.NoError(t, err)
	assert.Equal(t, "Site", ui.SiteName)
}
