package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/AaronLay10/SentientScenes/internal/config"
)

// Role is the access level granted to an authenticated caller.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
)

type account struct {
	user string
	pass string
	role Role
}

// authConfig holds the accounts allowed to call the API. Accounts with an
// empty user or password are never matched.
type authConfig struct {
	accounts []account
	enabled  bool
}

func newAuthConfig(c config.Credentials) authConfig {
	a := authConfig{enabled: c.Enabled()}
	for _, acc := range []account{
		{user: c.AdminUser, pass: c.AdminPass, role: RoleAdmin},
		{user: c.OperatorUser, pass: c.OperatorPass, role: RoleOperator},
	} {
		if acc.user != "" && acc.pass != "" {
			a.accounts = append(a.accounts, acc)
		}
	}
	return a
}

// AuthEnabled reports whether requests must carry credentials.
func (s *Server) AuthEnabled() bool {
	return s.auth.enabled
}

// authenticate resolves the caller's role. With auth disabled every caller
// is an admin; an empty role means the credentials were rejected.
func (a authConfig) authenticate(r *http.Request) Role {
	if !a.enabled {
		return RoleAdmin
	}
	user, pass, ok := r.BasicAuth()
	if !ok {
		return ""
	}
	for _, acc := range a.accounts {
		if secureCompare(user, acc.user) && secureCompare(pass, acc.pass) {
			return acc.role
		}
	}
	return ""
}

func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="scened"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

// RequireRole only lets callers holding one of roles reach handler.
func (s *Server) RequireRole(handler http.HandlerFunc, roles ...Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := s.auth.authenticate(r)
		if role == "" {
			unauthorized(w)
			return
		}
		for _, allowed := range roles {
			if role == allowed {
				handler(w, r)
				return
			}
		}
		http.Error(w, "Forbidden", http.StatusForbidden)
	}
}

// RequireAnyRole admits admins and operators.
func (s *Server) RequireAnyRole(handler http.HandlerFunc) http.HandlerFunc {
	return s.RequireRole(handler, RoleAdmin, RoleOperator)
}

// RequireAdmin admits admins only.
func (s *Server) RequireAdmin(handler http.HandlerFunc) http.HandlerFunc {
	return s.RequireRole(handler, RoleAdmin)
}
