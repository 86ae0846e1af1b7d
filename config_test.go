package goSession

import (
	"strings"
	"testing"
	"time"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Secret = []byte("0123456789abcdef0123456789abcdef")
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "defaults with secret valid",
			mutate:    func(c *Config) {},
			wantValid: true,
		},
		{
			name: "short secret invalid",
			mutate: func(c *Config) {
				c.JWT.Secret = []byte("too-short")
			},
			wantValid: false,
		},
		{
			name: "zero access ttl invalid",
			mutate: func(c *Config) {
				c.JWT.AccessTTL = 0
			},
			wantValid: false,
		},
		{
			name: "refresh shorter than access invalid",
			mutate: func(c *Config) {
				c.JWT.RefreshTTL = time.Minute
			},
			wantValid: false,
		},
		{
			name: "jwt leeway valid",
			mutate: func(c *Config) {
				c.JWT.Leeway = 45 * time.Second
			},
			wantValid: true,
		},
		{
			name: "jwt leeway invalid",
			mutate: func(c *Config) {
				c.JWT.Leeway = 3 * time.Minute
			},
			wantValid: false,
		},
		{
			name: "blank redis prefix invalid",
			mutate: func(c *Config) {
				c.Session.RedisPrefix = "  "
			},
			wantValid: false,
		},
		{
			name: "zero operation timeout invalid",
			mutate: func(c *Config) {
				c.Session.OperationTimeout = 0
			},
			wantValid: false,
		},
		{
			name: "zero claim lease invalid",
			mutate: func(c *Config) {
				c.PasswordReset.ClaimLease = 0
			},
			wantValid: false,
		},
		{
			name: "reset throttle without cap invalid",
			mutate: func(c *Config) {
				c.PasswordReset.MaxRequests = 0
			},
			wantValid: false,
		},
		{
			name: "reset throttle disabled ignores cap",
			mutate: func(c *Config) {
				c.PasswordReset.EnableRequestThrottle = false
				c.PasswordReset.MaxRequests = 0
			},
			wantValid: true,
		},
		{
			name: "relative public prefix invalid",
			mutate: func(c *Config) {
				c.Gate.PublicPathPrefixes = []string{"healthz"}
			},
			wantValid: false,
		},
		{
			name: "login throttle disabled ignores attempts",
			mutate: func(c *Config) {
				c.Security.EnableLoginThrottle = false
				c.Security.MaxLoginAttempts = 0
			},
			wantValid: true,
		},
		{
			name: "audit enabled without buffer invalid",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected invalid config, got nil")
			}
		})
	}
}

func TestDefaultConfigValues(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.JWT.AccessTTL != 15*time.Minute {
		t.Fatalf("unexpected access ttl %v", cfg.JWT.AccessTTL)
	}
	if cfg.JWT.RefreshTTL != 168*time.Hour {
		t.Fatalf("unexpected refresh ttl %v", cfg.JWT.RefreshTTL)
	}
	if cfg.PasswordReset.ResetTTL != 15*time.Minute {
		t.Fatalf("unexpected reset ttl %v", cfg.PasswordReset.ResetTTL)
	}
	if cfg.PasswordReset.MaskUnknownIdentifier {
		t.Fatal("unknown identifiers must not be masked by default")
	}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "Secret") {
		t.Fatalf("expected defaults without secret to be rejected, got %v", err)
	}
}

func TestCloneConfigDetachesSecret(t *testing.T) {
	cfg := testConfig()
	clone := cloneConfig(cfg)
	clone.JWT.Secret[0] = 'X'
	clone.Gate.PublicPathPrefixes[0] = "/changed"

	if cfg.JWT.Secret[0] == 'X' {
		t.Fatal("clone shares secret backing array")
	}
	if cfg.Gate.PublicPathPrefixes[0] == "/changed" {
		t.Fatal("clone shares public prefix slice")
	}
}
