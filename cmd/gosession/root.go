package main

import (
	"github.com/spf13/cobra"
)

// envFile is the optional .env file read before the environment.
var envFile string

// NewRootCmd creates the root command for the gosession CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gosession",
		Short: "gosession - bearer session token service",
		Long: `gosession issues and validates short-lived bearer access tokens backed
by Redis sessions, with refresh, logout and password reset flows delegated
to an external user directory.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with service settings")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}
