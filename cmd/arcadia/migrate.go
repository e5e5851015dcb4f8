// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Arcadia Planner Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/arcadia-planner/arcadia/internal/config"
	"github.com/arcadia-planner/arcadia/internal/store"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Run all pending database migrations against the PostgreSQL database.`,
		RunE:  runMigrate,
	}

	cmd.Flags().String("database.url", defaults.Database.URL, "PostgreSQL connection URL")

	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	migrator, err := store.NewMigrator(cfg.Database.URL)
	if err != nil {
		return err
	}
	defer migrator.Close() //nolint:errcheck // close errors surface through Up already

	cmd.Println("Running migrations...")
	if err := migrator.Up(); err != nil {
		return err
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		return err
	}

	cmd.Printf("Migrations completed (version %d, dirty=%v)\n", version, dirty)
	return nil
}
