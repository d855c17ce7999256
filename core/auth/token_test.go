package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func testManager() *TokenManager {
	return NewTokenManager("unit-secret", "external-secret", "mspb-config")
}

func testUser() SessionUser {
	return SessionUser{Username: "alice", UserID: 42, Email: "alice@example.com", CustomerID: "CUST01"}
}

func TestSessionRoundTrip(t *testing.T) {
	m := testManager()
	token, err := m.IssueSession(testUser(), time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := m.VerifySession(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Username != "alice" || claims.UserID != 42 || claims.CustomerID != "CUST01" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestSessionExpiry(t *testing.T) {
	m := testManager()
	token, err := m.IssueSession(testUser(), time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	m.WithClock(func() time.Time { return time.Now().Add(2 * time.Hour) })
	if _, err := m.VerifySession(token); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestSessionTamperedSignature(t *testing.T) {
	m := testManager()
	token, err := m.IssueSession(testUser(), time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape")
	}
	forged := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	if _, err := m.VerifySession(forged); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestMFABindingMismatch(t *testing.T) {
	m := testManager()
	token, err := m.IssueMFA("alice", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.VerifyMFA(token, "alice"); err != nil {
		t.Fatalf("same principal should verify: %v", err)
	}
	if _, err := m.VerifyMFA(token, "bob"); !errors.Is(err, ErrBindingMismatch) {
		t.Fatalf("expected ErrBindingMismatch, got %v", err)
	}
}

func TestMFATokenRejectedAsSession(t *testing.T) {
	m := testManager()
	token, err := m.IssueMFA("alice", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	// An MFA token has no userId/customerId; it must not pass as a session
	// credential carrying a verified flag alone.
	claims, err := m.VerifySession(token)
	if err == nil && claims.UserID != 0 {
		t.Fatalf("mfa token should not carry a session principal: %+v", claims)
	}
}

func TestVerifyExternalUsesSeparateSecret(t *testing.T) {
	m := testManager()
	// Sign an "external" token with the local secret; it must not verify.
	local, err := m.IssueSession(testUser(), time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.VerifyExternal(local); err == nil {
		t.Fatalf("local token must not verify against external secret")
	}

	ext := NewTokenManager("external-secret", "", "idp")
	token, err := ext.IssueSession(SessionUser{Username: "alice", UserID: 42}, time.Hour)
	if err != nil {
		t.Fatalf("issue external: %v", err)
	}
	claims, err := m.VerifyExternal(token)
	if err != nil {
		t.Fatalf("verify external: %v", err)
	}
	if claims.UserID != 42 {
		t.Fatalf("unexpected external user id: %d", claims.UserID)
	}
}

func TestIssueRejectsEmptyUsername(t *testing.T) {
	m := testManager()
	if _, err := m.IssueSession(SessionUser{}, time.Hour); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if _, err := m.IssueMFA("", time.Hour); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}
