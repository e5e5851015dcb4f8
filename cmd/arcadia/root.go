// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Arcadia Planner Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Arcadia CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "arcadia",
		Short: "Arcadia - personal productivity platform auth service",
		Long: `Arcadia's authentication service manages user credentials,
bearer session tokens, and password reset flows over a JSON REST API.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewStatusCmd())

	return cmd
}
