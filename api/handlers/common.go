package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"mspb-config/config"
)

const (
	AuthCookieName = "authToken"
	MFACookieName  = "mfaToken"
)

// Directory role names the portal gates on.
const (
	RoleEmployees           = "MSPB_Employees"
	RoleCustomerConfigAdmin = "Customer Config Admin"
)

// Principal is the authenticated caller, assembled by the gate chain. Roles
// are populated only once the role gate has run; MFAVerified reflects the
// MFA token presented alongside the session.
type Principal struct {
	Username    string
	UserID      int64
	Email       string
	CustomerID  string
	Roles       []string
	MFAVerified bool
}

func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type principalKeyType struct{}

var principalKey principalKeyType

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFrom(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

func setSessionCookie(w http.ResponseWriter, cfg *config.AppConfig, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   cfg != nil && cfg.Auth.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter, cfg *config.AppConfig, name string) {
	setSessionCookie(w, cfg, name, "", -1)
}

// TokenFromRequest reads the named cookie, falling back to the
// Authorization header for cookie-less API clients.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if cookieName == AuthCookieName {
		const prefix = "Bearer "
		if h := r.Header.Get("Authorization"); len(h) > len(prefix) && h[:len(prefix)] == prefix {
			return h[len(prefix):]
		}
	}
	return ""
}
