package config

import (
	"testing"
	"time"
)

func validConfig() *AppConfig {
	return &AppConfig{
		ListenAddr: ":3001",
		DBDriver:   "postgres",
		DBURL:      "postgres://localhost/configs",
		Pool:       PoolConfig{MaxConns: 10, MaxIdleConns: 2, IdleTimeout: 30 * time.Second},
		Auth: AuthConfig{
			JWTSecret:  "secret",
			SessionTTL: 4 * time.Hour,
			MFATTL:     4 * time.Hour,
		},
		MFA: MFAConfig{Window: 2},
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateRejectsMissingJWTSecret(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.JWTSecret = ""
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for missing jwt secret")
	}
}

func TestValidateRejectsBadWindow(t *testing.T) {
	cfg := validConfig()
	cfg.MFA.Window = 11
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for mfa window 11")
	}
	cfg.MFA.Window = -1
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for mfa window -1")
	}
}

func TestValidateRejectsBadDriver(t *testing.T) {
	cfg := validConfig()
	cfg.DBDriver = "mssql"
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

func TestValidateRejectsBadPool(t *testing.T) {
	cfg := validConfig()
	cfg.Pool.MaxConns = 0
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for zero pool size")
	}
}
