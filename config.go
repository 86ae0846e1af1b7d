package goSession

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/jwt"
)

// Config defines the engine settings.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	JWT           JWTConfig
	Session       SessionConfig
	Login         LoginConfig
	PasswordReset PasswordResetConfig
	Gate          GateConfig
	Security      SecurityConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls token signing and lifetimes. Secret is the shared
// HS256 key and must be at least 32 bytes.
type JWTConfig struct {
	Secret     []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Leeway     time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls the Redis key layout and per-call timeout shared
// by the session and reset stores.
type SessionConfig struct {
	RedisPrefix      string
	OperationTimeout time.Duration
}

/*
====================================
LOGIN CONFIG
====================================
*/

// LoginConfig defines login policy.
type LoginConfig struct {
	// RejectPasswordChangeRequired refuses to open a session for users the
	// directory flags as having to change their password.
	RejectPasswordChangeRequired bool
}

/*
====================================
PASSWORD RESET CONFIG
====================================
*/

// PasswordResetConfig defines reset token lifetimes and disclosure policy.
type PasswordResetConfig struct {
	ResetTTL time.Duration
	// ExpiredRetention keeps records past ResetTTL so late redemptions are
	// reported as expired instead of invalid.
	ExpiredRetention time.Duration
	// ClaimLease bounds how long a redemption may hold a token before
	// another attempt can claim it.
	ClaimLease time.Duration
	// MaskUnknownIdentifier returns a decoy token instead of ErrUserNotFound.
	MaskUnknownIdentifier     bool
	InvalidateSessionsOnReset bool
	EnableRequestThrottle     bool
	MaxRequests               int
	RequestCooldown           time.Duration
}

/*
====================================
GATE CONFIG
====================================
*/

// GateConfig lists path prefixes that bypass bearer authentication.
type GateConfig struct {
	PublicPathPrefixes []string
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig controls login throttling.
type SecurityConfig struct {
	EnableLoginThrottle   bool
	EnableIPThrottle      bool
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig controls in-process counters and latency histograms.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the engine defaults. JWT.Secret has no default.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			Issuer:     "goSession",
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
			Leeway:     0,
		},
		Session: SessionConfig{
			RedisPrefix:      "gs",
			OperationTimeout: 2 * time.Second,
		},
		Login: LoginConfig{
			RejectPasswordChangeRequired: false,
		},
		PasswordReset: PasswordResetConfig{
			ResetTTL:                  15 * time.Minute,
			ExpiredRetention:          time.Hour,
			ClaimLease:                30 * time.Second,
			MaskUnknownIdentifier:     false,
			InvalidateSessionsOnReset: true,
			EnableRequestThrottle:     true,
			MaxRequests:               5,
			RequestCooldown:           15 * time.Minute,
		},
		Gate: GateConfig{
			PublicPathPrefixes: []string{
				"/api/auth/jwt/",
				"/swagger-ui",
				"/v3/api-docs",
				"/healthz",
				"/metrics",
			},
		},
		Security: SecurityConfig{
			EnableLoginThrottle:   true,
			EnableIPThrottle:      false,
			MaxLoginAttempts:      5,
			LoginCooldownDuration: 15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	if cfg.Gate.PublicPathPrefixes != nil {
		out.Gate.PublicPathPrefixes = append([]string(nil), cfg.Gate.PublicPathPrefixes...)
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if len(c.JWT.Secret) < jwt.MinSecretLength {
		return errors.New("JWT Secret must be at least 32 bytes")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be >= AccessTTL")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	if strings.TrimSpace(c.Session.RedisPrefix) == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}
	if strings.Contains(c.Session.RedisPrefix, " ") {
		return errors.New("Session RedisPrefix must not contain spaces")
	}
	if c.Session.OperationTimeout <= 0 {
		return errors.New("Session OperationTimeout must be > 0")
	}

	if c.PasswordReset.ResetTTL <= 0 {
		return errors.New("PasswordReset ResetTTL must be > 0")
	}
	if c.PasswordReset.ExpiredRetention < 0 {
		return errors.New("PasswordReset ExpiredRetention must be >= 0")
	}
	if c.PasswordReset.ClaimLease <= 0 {
		return errors.New("PasswordReset ClaimLease must be > 0")
	}
	if c.PasswordReset.EnableRequestThrottle {
		if c.PasswordReset.MaxRequests <= 0 {
			return errors.New("PasswordReset MaxRequests must be > 0 when throttle is enabled")
		}
		if c.PasswordReset.RequestCooldown <= 0 {
			return errors.New("PasswordReset RequestCooldown must be > 0 when throttle is enabled")
		}
	}

	for _, prefix := range c.Gate.PublicPathPrefixes {
		if !strings.HasPrefix(prefix, "/") {
			return errors.New("Gate PublicPathPrefixes must start with /")
		}
	}

	if c.Security.EnableLoginThrottle {
		if c.Security.MaxLoginAttempts <= 0 {
			return errors.New("MaxLoginAttempts must be > 0")
		}
		if c.Security.LoginCooldownDuration <= 0 {
			return errors.New("LoginCooldownDuration must be > 0")
		}
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
