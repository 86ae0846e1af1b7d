package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/MrEthical07/goSession/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Validate settings and print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			if err := validateEngineConfig(cfg); err != nil {
				return err
			}
			printConfig(cmd, cfg)
			return nil
		},
	}
}

func printConfig(cmd *cobra.Command, cfg *config.Config) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	rows := [][2]string{
		{"http_addr", cfg.HTTPAddr},
		{"redis_addr", cfg.RedisAddr},
		{"jwt_issuer", cfg.JWTIssuer},
		{"jwt_secret", redact(cfg.JWTSecret)},
		{"access_ttl", cfg.JWTAccessTTL.String()},
		{"refresh_ttl", cfg.JWTRefreshTTL.String()},
		{"session_prefix", cfg.SessionPrefix},
		{"user_service_url", cfg.UserServiceURL},
		{"reset_ttl", cfg.ResetTTL.String()},
		{"reset_mask_unknown", fmt.Sprint(cfg.ResetMaskUnknown)},
		{"reset_invalidate_sessions", fmt.Sprint(cfg.ResetInvalidateLogins)},
		{"login_throttle", fmt.Sprint(cfg.LoginThrottle)},
		{"metrics_enabled", fmt.Sprint(cfg.MetricsEnabled)},
		{"audit_enabled", fmt.Sprint(cfg.AuditEnabled)},
	}
	for _, row := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", row[0], row[1])
	}
	_ = w.Flush()
}

func redact(secret string) string {
	if secret == "" {
		return "(unset)"
	}
	return fmt.Sprintf("(%d bytes)", len(secret))
}
