package config

import "time"

type AppConfig struct {
	ListenAddr string `yaml:"listen_addr" env:"MSPB_LISTEN_ADDR" env-default:":3001"`
	AppEnv     string `yaml:"app_env" env:"MSPB_APP_ENV" env-default:"production"`

	DBDriver       string `yaml:"db_driver" env:"MSPB_DB_DRIVER"`
	DBURL          string `yaml:"db_url" env:"MSPB_DB_URL"`
	DBPath         string `yaml:"db_path" env:"MSPB_DB_PATH"`
	DirectoryDBURL string `yaml:"directory_db_url" env:"MSPB_DIRECTORY_DB_URL"`

	Pool  PoolConfig  `yaml:"pool"`
	Auth  AuthConfig  `yaml:"auth"`
	MFA   MFAConfig   `yaml:"mfa"`
	Probe ProbeConfig `yaml:"probe"`

	// Maintenance mode: writes are intercepted and echoed instead of applied.
	ReadOnlyMode bool `yaml:"read_only_mode" env:"MSPB_READ_ONLY_MODE"`
	// Admin metadata pages honor read-only mode only when this is also set.
	AdminReadOnly bool `yaml:"admin_read_only" env:"MSPB_ADMIN_READ_ONLY"`
	// MSPB_Employees may write through read-only mode when enabled.
	AdminBypassReadOnly bool `yaml:"admin_bypass_read_only" env:"MSPB_ADMIN_BYPASS_READ_ONLY"`
}

type PoolConfig struct {
	MaxConns       int           `yaml:"max_conns" env:"MSPB_POOL_MAX_CONNS" env-default:"10"`
	MaxIdleConns   int           `yaml:"max_idle_conns" env:"MSPB_POOL_MAX_IDLE_CONNS" env-default:"2"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" env:"MSPB_POOL_IDLE_TIMEOUT" env-default:"30s"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"MSPB_POOL_CONNECT_TIMEOUT" env-default:"10s"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"MSPB_JWT_SECRET"`
	// Secret used to verify externally issued identity tokens. Falls back
	// to JWTSecret when empty, matching the portal's shared-secret setup.
	ExternalJWTSecret string        `yaml:"external_jwt_secret" env:"MSPB_EXTERNAL_JWT_SECRET"`
	Issuer            string        `yaml:"issuer" env:"MSPB_TOKEN_ISSUER" env-default:"mspb-config"`
	SessionTTL        time.Duration `yaml:"session_ttl" env:"MSPB_SESSION_TTL" env-default:"4h"`
	MFATTL            time.Duration `yaml:"mfa_ttl" env:"MSPB_MFA_TTL" env-default:"4h"`
	CookieSecure      bool          `yaml:"cookie_secure" env:"MSPB_COOKIE_SECURE"`
}

type MFAConfig struct {
	Issuer               string        `yaml:"issuer" env:"MSPB_MFA_ISSUER" env-default:"MSPB Config Portal"`
	Window               int           `yaml:"window" env:"MSPB_MFA_WINDOW" env-default:"2"`
	SecretServiceURL     string        `yaml:"secret_service_url" env:"MSPB_SECRET_SERVICE_URL"`
	SecretServiceCode    string        `yaml:"secret_service_code" env:"MSPB_SECRET_SERVICE_CODE"`
	SecretServiceTimeout time.Duration `yaml:"secret_service_timeout" env:"MSPB_SECRET_SERVICE_TIMEOUT" env-default:"10s"`
}

type ProbeConfig struct {
	Enabled  bool   `yaml:"enabled" env:"MSPB_PROBE_ENABLED"`
	Schedule string `yaml:"schedule" env:"MSPB_PROBE_SCHEDULE" env-default:"@every 1m"`
}
