package daemon

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// adminGate enforces config.DaemonConfig.AdminToken on write-capable
// endpoints. Reuses the teacher's bcrypt cost (pkg/auth.Authenticator)
// rather than its full multi-user RBAC, since the daemon has exactly
// one credential to check.
type adminGate struct {
	tokenHash []byte // bcrypt hash of the configured admin token; nil disables the gate
}

func newAdminGate(adminToken string) (*adminGate, error) {
	if adminToken == "" {
		return &adminGate{}, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(adminToken), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &adminGate{tokenHash: hash}, nil
}

func (g *adminGate) enabled() bool { return g.tokenHash != nil }

// check reports whether r carries the configured admin token. Comparison
// goes through bcrypt so the stored hash, not the plaintext token, lives
// in process memory after startup.
func (g *adminGate) check(r *http.Request) bool {
	if !g.enabled() {
		return true
	}
	token := extractToken(r)
	if token == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(g.tokenHash, []byte(token)) == nil
}

// extractToken pulls the admin token from wherever the caller put it,
// preferring the Authorization header and falling back to the places a
// browser or an SSE client (which can't set custom headers) would use.
func extractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if k := r.Header.Get("X-API-Key"); k != "" {
		return k
	}
	if c, err := r.Cookie("mukernel_token"); err == nil && c.Value != "" {
		return c.Value
	}
	return r.URL.Query().Get("token")
}

// withAuthz wraps handler, requiring the admin token for any endpoint
// that mutates daemon or mubase state. Read endpoints pass writeOnly as
// false and are always served.
func (g *adminGate) withAuthz(writeOnly bool, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if writeOnly && !g.check(r) {
			writeJSONError(w, http.StatusUnauthorized, "missing or invalid admin token")
			return
		}
		handler(w, r)
	}
}
