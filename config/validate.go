package config

import (
	"fmt"
	"strings"
)

func Validate(cfg *AppConfig) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	switch driver {
	case "", "postgres", "pg", "sqlite":
	default:
		return fmt.Errorf("unsupported db_driver: %s", cfg.DBDriver)
	}
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return fmt.Errorf("listen_addr must be set")
	}
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return fmt.Errorf("jwt_secret must be set (MSPB_JWT_SECRET or JWT_SECRET)")
	}
	if cfg.Auth.SessionTTL <= 0 {
		return fmt.Errorf("session_ttl must be positive")
	}
	if cfg.Auth.MFATTL <= 0 {
		return fmt.Errorf("mfa_ttl must be positive")
	}
	if cfg.MFA.Window < 0 || cfg.MFA.Window > 10 {
		return fmt.Errorf("mfa window out of range: %d", cfg.MFA.Window)
	}
	if cfg.Pool.MaxConns <= 0 {
		return fmt.Errorf("pool max_conns must be positive")
	}
	if cfg.Pool.IdleTimeout < 0 {
		return fmt.Errorf("pool idle_timeout must not be negative")
	}
	return nil
}
