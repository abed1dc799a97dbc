package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AaronLay10/SentientScenes/internal/config"
)

var testCreds = config.Credentials{
	AdminUser:    "admin",
	AdminPass:    "secret",
	OperatorUser: "operator",
	OperatorPass: "opsecret",
}

func TestAuthDisabledWhenNoCredentials(t *testing.T) {
	env := newTestEnv(t, config.Credentials{})
	if env.server.AuthEnabled() {
		t.Fatal("auth should be disabled without credentials")
	}

	w := do(t, env.server.Handler(), "GET", "/status", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
}

func TestAuthEnabledRequiresCredentials(t *testing.T) {
	env := newTestEnv(t, testCreds)
	if !env.server.AuthEnabled() {
		t.Fatal("auth should be enabled")
	}

	w := do(t, env.server.Handler(), "GET", "/status", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", w.Code)
	}
	if w.Header().Get("WWW-Authenticate") == "" {
		t.Error("expected WWW-Authenticate header")
	}
}

func TestAuthRoles(t *testing.T) {
	env := newTestEnv(t, testCreds)
	h := env.server.Handler()

	tests := []struct {
		name       string
		user, pass string
		method     string
		path       string
		body       string
		code       int
	}{
		{"admin status", "admin", "secret", "GET", "/status", "", http.StatusOK},
		{"operator status", "operator", "opsecret", "GET", "/status", "", http.StatusOK},
		{"operator submit", "operator", "opsecret", "POST", "/operations", `{"op":"close_all"}`, http.StatusAccepted},
		{"operator reset", "operator", "opsecret", "POST", "/reset", "", http.StatusForbidden},
		{"admin reset", "admin", "secret", "POST", "/reset", "", http.StatusOK},
		{"wrong password", "admin", "nope", "GET", "/status", "", http.StatusUnauthorized},
		{"health is public", "", "", "GET", "/health", "", http.StatusOK},
		{"metrics are public", "", "", "GET", "/metrics", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.user != "" {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			if w.Code != tt.code {
				t.Errorf("expected %d, got %d", tt.code, w.Code)
			}
		})
	}
}

func TestOperatorCredentialsOptional(t *testing.T) {
	a := newAuthConfig(config.Credentials{AdminUser: "admin", AdminPass: "secret"})
	req := httptest.NewRequest("GET", "/", nil)
	req.SetBasicAuth("", "")
	if role := a.authenticate(req); role != "" {
		t.Errorf("empty credentials must not match unset operator account, got %q", role)
	}
}

func TestSecureCompare(t *testing.T) {
	if !secureCompare("abc", "abc") || secureCompare("abc", "abd") || secureCompare("abc", "ab") {
		t.Error("secureCompare mismatch")
	}
}
