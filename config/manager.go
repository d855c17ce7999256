package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	defaultConfigPath = "config/app.yaml"
	envPrefix         = "MSPB_"
)

func Load() (*AppConfig, error) {
	cfg := &AppConfig{}
	cfgPath := resolveConfigPath()
	if st, err := os.Stat(cfgPath); err == nil && !st.IsDir() {
		if err := cleanenv.ReadConfig(cfgPath, cfg); err != nil {
			return nil, err
		}
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, err
	}
	applyEnvAliases(cfg)
	normalizeConfig(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvAliases accepts the unprefixed variable names the portal has
// always been deployed with, so existing environments keep working.
func applyEnvAliases(cfg *AppConfig) {
	if cfg == nil {
		return
	}
	if v := getEnv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = strings.TrimSpace(v)
	}
	if v := getEnv("MOJO_JWT_SECRET"); v != "" {
		cfg.Auth.ExternalJWTSecret = strings.TrimSpace(v)
	}
	if v := getEnv("MFA_ISSUER"); v != "" {
		cfg.MFA.Issuer = strings.TrimSpace(v)
	}
	if v := getEnv("MFA_WINDOW"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.MFA.Window = n
		}
	}
	if v := getEnv("MIDDLEWARE_URI_AZURE"); v != "" {
		cfg.MFA.SecretServiceURL = strings.TrimSpace(v)
	}
	if v := getEnv("MIDDLEWARE_AZURE_MFA_AUTH"); v != "" {
		cfg.MFA.SecretServiceCode = strings.TrimSpace(v)
	}
	if v := getEnv("READ_ONLY_MODE"); v != "" {
		cfg.ReadOnlyMode = parseBool(v)
	}
	if v := getEnv("ADMIN_READ_ONLY"); v != "" {
		cfg.AdminReadOnly = parseBool(v)
	}
	if v := getEnv("ENV", "APP_ENV"); v != "" {
		cfg.AppEnv = strings.ToLower(strings.TrimSpace(v))
	}
	if v := getEnv("PORT", envPrefix+"PORT"); v != "" {
		cfg.ListenAddr = listenAddrWithPort(cfg.ListenAddr, v)
	}
}

func normalizeConfig(cfg *AppConfig) {
	if cfg == nil {
		return
	}
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	cfg.DBURL = strings.TrimSpace(cfg.DBURL)
	cfg.DirectoryDBURL = strings.TrimSpace(cfg.DirectoryDBURL)
	cfg.AppEnv = strings.ToLower(strings.TrimSpace(cfg.AppEnv))
	if cfg.AppEnv == "" {
		cfg.AppEnv = "production"
	}
	if cfg.Auth.ExternalJWTSecret == "" {
		cfg.Auth.ExternalJWTSecret = cfg.Auth.JWTSecret
	}
	if cfg.Auth.MFATTL > cfg.Auth.SessionTTL {
		cfg.Auth.MFATTL = cfg.Auth.SessionTTL
	}
	cfg.MFA.SecretServiceURL = strings.TrimRight(strings.TrimSpace(cfg.MFA.SecretServiceURL), "/")
}

func resolveConfigPath() string {
	if v := strings.TrimSpace(os.Getenv("APP_CONFIG")); v != "" {
		return v
	}
	return defaultConfigPath
}

func getEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func listenAddrWithPort(addr, port string) string {
	port = strings.TrimSpace(port)
	if port == "" {
		return addr
	}
	host := ""
	if idx := strings.LastIndex(addr, ":"); idx >= 0 {
		host = addr[:idx]
	}
	return host + ":" + port
}
