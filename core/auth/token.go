package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrExpired         = errors.New("token expired")
	ErrMalformed       = errors.New("token malformed")
	ErrBindingMismatch = errors.New("token principal mismatch")
)

// SessionClaims is the first-stage credential, minted after a successful
// external-token exchange.
type SessionClaims struct {
	Username   string `json:"username"`
	UserID     int64  `json:"userId"`
	Email      string `json:"email"`
	CustomerID string `json:"customerId"`
	jwt.RegisteredClaims
}

// MFAClaims is the second-stage credential. It must bind to the same
// username as the session claims; a bare verified flag is not enough.
type MFAClaims struct {
	Username    string `json:"username"`
	MFAVerified bool   `json:"mfaVerified"`
	VerifiedAt  int64  `json:"verifiedAt"`
	jwt.RegisteredClaims
}

// ExternalClaims is the shape of the identity provider's token; only the
// embedded user id is trusted, everything else is re-read from the
// directory.
type ExternalClaims struct {
	UserID int64 `json:"userId"`
	jwt.RegisteredClaims
}

type TokenManager struct {
	secret         []byte
	externalSecret []byte
	issuer         string
	now            func() time.Time
}

func NewTokenManager(secret, externalSecret, issuer string) *TokenManager {
	if strings.TrimSpace(externalSecret) == "" {
		externalSecret = secret
	}
	return &TokenManager{
		secret:         []byte(secret),
		externalSecret: []byte(externalSecret),
		issuer:         issuer,
		now:            time.Now,
	}
}

// WithClock overrides the verification clock. Test hook.
func (m *TokenManager) WithClock(now func() time.Time) *TokenManager {
	m.now = now
	return m
}

func (m *TokenManager) IssueSession(user SessionUser, ttl time.Duration) (string, error) {
	if strings.TrimSpace(user.Username) == "" {
		return "", ErrMalformed
	}
	now := m.now().UTC()
	claims := SessionClaims{
		Username:   user.Username,
		UserID:     user.UserID,
		Email:      user.Email,
		CustomerID: user.CustomerID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *TokenManager) VerifySession(token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if err := m.parse(token, m.secret, claims); err != nil {
		return nil, err
	}
	if strings.TrimSpace(claims.Username) == "" {
		return nil, ErrMalformed
	}
	return claims, nil
}

func (m *TokenManager) IssueMFA(username string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(username) == "" {
		return "", ErrMalformed
	}
	now := m.now().UTC()
	claims := MFAClaims{
		Username:    username,
		MFAVerified: true,
		VerifiedAt:  now.Unix(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// VerifyMFA checks signature and expiry, then enforces the anti-substitution
// binding: the MFA token must name the same principal as the session token
// it is presented with.
func (m *TokenManager) VerifyMFA(token, expectedUsername string) (*MFAClaims, error) {
	claims := &MFAClaims{}
	if err := m.parse(token, m.secret, claims); err != nil {
		return nil, err
	}
	if !claims.MFAVerified || strings.TrimSpace(claims.Username) == "" {
		return nil, ErrMalformed
	}
	if expectedUsername != "" && claims.Username != expectedUsername {
		return nil, ErrBindingMismatch
	}
	return claims, nil
}

func (m *TokenManager) VerifyExternal(token string) (*ExternalClaims, error) {
	claims := &ExternalClaims{}
	if err := m.parse(token, m.externalSecret, claims); err != nil {
		return nil, err
	}
	if claims.UserID <= 0 {
		return nil, ErrMalformed
	}
	return claims, nil
}

func (m *TokenManager) parse(token string, key []byte, claims jwt.Claims) error {
	if strings.TrimSpace(token) == "" {
		return ErrMalformed
	}
	_, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (interface{}, error) { return key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpired
		}
		return ErrMalformed
	}
	return nil
}
