package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTokenFromRequestPrefersCookie(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: AuthCookieName, Value: "cookie-token"})
	r.Header.Set("Authorization", "Bearer header-token")
	if got := TokenFromRequest(r, AuthCookieName); got != "cookie-token" {
		t.Fatalf("got %q", got)
	}
}

func TestTokenFromRequestBearerFallback(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer header-token")
	if got := TokenFromRequest(r, AuthCookieName); got != "header-token" {
		t.Fatalf("got %q", got)
	}
	// The MFA token never rides the Authorization header.
	if got := TokenFromRequest(r, MFACookieName); got != "" {
		t.Fatalf("got %q", got)
	}
}

func TestTokenFromRequestMissing(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := TokenFromRequest(r, AuthCookieName); got != "" {
		t.Fatalf("got %q", got)
	}
}

func TestPrincipalRoundTrip(t *testing.T) {
	p := &Principal{Username: "alice", Roles: []string{RoleEmployees}}
	ctx := WithPrincipal(context.Background(), p)
	got := PrincipalFrom(ctx)
	if got == nil || got.Username != "alice" {
		t.Fatalf("principal: %+v", got)
	}
	if !got.HasRole(RoleEmployees) || got.HasRole(RoleCustomerConfigAdmin) {
		t.Fatalf("roles: %+v", got.Roles)
	}
	if PrincipalFrom(context.Background()) != nil {
		t.Fatalf("empty context must not carry a principal")
	}
}
