// Package config loads service settings from the environment and an optional
// .env file using Viper.
package config

import (
	"strings"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/rs/zerolog"
	"github.com/samber/oops"
	"github.com/spf13/viper"
)

// Config holds the settings of the gosession binary.
type Config struct {
	// HTTPAddr is the listen address of the API server.
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// Env is the deployment environment; "production" forbids dev mode.
	Env string `mapstructure:"APP_ENV"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// JWTSecret is the shared HS256 key, at least 32 bytes.
	JWTSecret     string        `mapstructure:"JWT_SECRET"`
	JWTIssuer     string        `mapstructure:"JWT_ISSUER"`
	JWTAccessTTL  time.Duration `mapstructure:"JWT_ACCESS_TTL"`
	JWTRefreshTTL time.Duration `mapstructure:"JWT_REFRESH_TTL"`
	JWTLeeway     time.Duration `mapstructure:"JWT_LEEWAY"`

	SessionPrefix  string        `mapstructure:"SESSION_REDIS_PREFIX"`
	StoreOpTimeout time.Duration `mapstructure:"STORE_OP_TIMEOUT"`

	// UserServiceURL is the base URL of the user directory service.
	UserServiceURL           string        `mapstructure:"USER_SERVICE_URL"`
	UserServiceTimeout       time.Duration `mapstructure:"USER_SERVICE_TIMEOUT"`
	UserServiceSearchRetries uint64        `mapstructure:"USER_SERVICE_SEARCH_RETRIES"`

	ResetTTL              time.Duration `mapstructure:"RESET_TTL"`
	ResetMaskUnknown      bool          `mapstructure:"RESET_MASK_UNKNOWN"`
	ResetInvalidateLogins bool          `mapstructure:"RESET_INVALIDATE_SESSIONS"`

	LoginRejectPasswordChange bool `mapstructure:"LOGIN_REJECT_PASSWORD_CHANGE"`
	LoginThrottle             bool `mapstructure:"LOGIN_THROTTLE"`
	LoginMaxAttempts          int  `mapstructure:"LOGIN_MAX_ATTEMPTS"`

	// PublicPathPrefixes is a comma-separated gate allow-list. Empty keeps
	// the engine defaults.
	PublicPathPrefixes string `mapstructure:"PUBLIC_PATH_PREFIXES"`

	AuditEnabled   bool `mapstructure:"AUDIT_ENABLED"`
	MetricsEnabled bool `mapstructure:"METRICS_ENABLED"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
}

var defaults = map[string]any{
	"HTTP_ADDR":                    ":8080",
	"APP_ENV":                      "",
	"REDIS_ADDR":                   "localhost:6379",
	"REDIS_PASSWORD":               "",
	"REDIS_DB":                     0,
	"JWT_SECRET":                   "",
	"JWT_ISSUER":                   "goSession",
	"JWT_ACCESS_TTL":               "15m",
	"JWT_REFRESH_TTL":              "168h",
	"JWT_LEEWAY":                   "0s",
	"SESSION_REDIS_PREFIX":         "gs",
	"STORE_OP_TIMEOUT":             "2s",
	"USER_SERVICE_URL":             "http://localhost:8081",
	"USER_SERVICE_TIMEOUT":         "5s",
	"USER_SERVICE_SEARCH_RETRIES":  2,
	"RESET_TTL":                    "15m",
	"RESET_MASK_UNKNOWN":           false,
	"RESET_INVALIDATE_SESSIONS":    true,
	"LOGIN_REJECT_PASSWORD_CHANGE": false,
	"LOGIN_THROTTLE":               true,
	"LOGIN_MAX_ATTEMPTS":           5,
	"PUBLIC_PATH_PREFIXES":         "",
	"AUDIT_ENABLED":                false,
	"METRICS_ENABLED":              true,
	"LOG_LEVEL":                    "info",
	"LOG_FORMAT":                   "json",
}

// Load reads envFile (if present), then builds and validates Config from the
// environment. Env vars override the file. An empty envFile means ".env".
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}

	v := viper.New()
	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	_ = v.ReadInConfig() // a missing file is fine

	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("file", envFile).Wrap(err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return oops.Code("CONFIG_INVALID").Errorf("HTTP_ADDR must be set")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return oops.Code("CONFIG_INVALID").With("LOG_LEVEL", c.LogLevel).Wrap(err)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return oops.Code("CONFIG_INVALID").With("LOG_FORMAT", c.LogFormat).Errorf("LOG_FORMAT must be json or console")
	}
	if c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		return oops.Code("CONFIG_INVALID").Errorf("JWT_SECRET must be at least 32 bytes")
	}
	return nil
}

// IsProduction reports whether APP_ENV is "production".
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Level returns the parsed log level.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// PublicPrefixes splits PublicPathPrefixes.
func (c *Config) PublicPrefixes() []string {
	if c == nil || c.PublicPathPrefixes == "" {
		return nil
	}
	parts := strings.Split(c.PublicPathPrefixes, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// EngineConfig maps the service settings onto [goSession.DefaultConfig].
func (c *Config) EngineConfig() goSession.Config {
	cfg := goSession.DefaultConfig()

	cfg.JWT.Secret = []byte(c.JWTSecret)
	cfg.JWT.Issuer = c.JWTIssuer
	cfg.JWT.AccessTTL = c.JWTAccessTTL
	cfg.JWT.RefreshTTL = c.JWTRefreshTTL
	cfg.JWT.Leeway = c.JWTLeeway

	cfg.Session.RedisPrefix = c.SessionPrefix
	cfg.Session.OperationTimeout = c.StoreOpTimeout

	cfg.Login.RejectPasswordChangeRequired = c.LoginRejectPasswordChange

	cfg.PasswordReset.ResetTTL = c.ResetTTL
	cfg.PasswordReset.MaskUnknownIdentifier = c.ResetMaskUnknown
	cfg.PasswordReset.InvalidateSessionsOnReset = c.ResetInvalidateLogins

	cfg.Security.EnableLoginThrottle = c.LoginThrottle
	if c.LoginMaxAttempts > 0 {
		cfg.Security.MaxLoginAttempts = c.LoginMaxAttempts
	}

	if prefixes := c.PublicPrefixes(); len(prefixes) > 0 {
		cfg.Gate.PublicPathPrefixes = prefixes
	}

	cfg.Audit.Enabled = c.AuditEnabled
	cfg.Metrics.Enabled = c.MetricsEnabled
	cfg.Metrics.EnableLatencyHistograms = c.MetricsEnabled

	return cfg
}
