package mfa

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mspb-config/core/auth"
	"mspb-config/core/utils"
)

var ErrNotConfigured = errors.New("mfa not configured")

// ProvisionResult is the outcome of a secret generation request. Secret
// material appears exactly once, at first issuance; an already-enrolled
// user only gets the confirmation, so the generation endpoint cannot be
// used to re-exfiltrate the secret.
type ProvisionResult struct {
	NeedsSetup bool
	Secret     string
	OtpauthURI string
	Issuer     string
}

// Engine drives the per-user MFA lifecycle: no secret, secret issued
// pending first verification, active. The distinction between the last two
// lives in the secret service; the engine only sees whether a secret
// exists.
type Engine struct {
	secrets SecretService
	issuer  string
	totp    auth.TOTPConfig
	logger  *utils.Logger
	now     func() time.Time
}

func NewEngine(secrets SecretService, issuer string, window int, logger *utils.Logger) *Engine {
	cfg := auth.DefaultTOTPConfig()
	if window >= 0 {
		cfg.Skew = int64(window)
	}
	return &Engine{
		secrets: secrets,
		issuer:  issuer,
		totp:    cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock overrides the verification clock. Test hook.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// GetOrInitSecret is idempotent: the first call generates and stores a
// secret and returns the provisioning material; every later call returns
// only a needs-no-setup confirmation.
func (e *Engine) GetOrInitSecret(ctx context.Context, username string) (*ProvisionResult, error) {
	_, exists, err := e.secrets.FetchSecret(ctx, username)
	if err != nil {
		return nil, err
	}
	if exists {
		return &ProvisionResult{NeedsSetup: false}, nil
	}
	secret, err := auth.GenerateTOTPSecret()
	if err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}
	if err := e.secrets.StoreSecret(ctx, username, secret); err != nil {
		return nil, err
	}
	return &ProvisionResult{
		NeedsSetup: true,
		Secret:     secret,
		OtpauthURI: auth.BuildTOTPProvisioningURI(e.issuer, username, secret),
		Issuer:     e.issuer,
	}, nil
}

// VerifyCode checks a submitted one-time code against the user's stored
// secret within the configured drift window. A successful verification
// stamps the last-auth timestamp best-effort; a failed stamp is logged and
// never fails the verification.
func (e *Engine) VerifyCode(ctx context.Context, username, code string) (bool, error) {
	secret, exists, err := e.secrets.FetchSecret(ctx, username)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, ErrNotConfigured
	}
	ok, err := auth.VerifyTOTP(secret, code, e.now(), e.totp)
	if err != nil {
		return false, fmt.Errorf("verify code: %w", err)
	}
	if !ok {
		return false, nil
	}
	if err := e.secrets.RecordAuth(ctx, username, secret); err != nil && e.logger != nil {
		e.logger.Warnf("mfa last-auth stamp failed for %s: %v", username, err)
	}
	return true, nil
}

// Enrolled probes whether the user has MFA configured. Callers treat an
// unreachable secret service as not-enrolled (availability over
// strictness); the error is returned so they can log the degradation.
func (e *Engine) Enrolled(ctx context.Context, username string) (bool, error) {
	_, exists, err := e.secrets.FetchSecret(ctx, username)
	if err != nil {
		return false, err
	}
	return exists, nil
}
