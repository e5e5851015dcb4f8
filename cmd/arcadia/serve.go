// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Arcadia Planner Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/arcadia-planner/arcadia/internal/auth"
	"github.com/arcadia-planner/arcadia/internal/auth/postgres"
	"github.com/arcadia-planner/arcadia/internal/config"
	"github.com/arcadia-planner/arcadia/internal/httpapi"
	"github.com/arcadia-planner/arcadia/internal/logging"
	"github.com/arcadia-planner/arcadia/internal/observability"
	"github.com/arcadia-planner/arcadia/internal/store"
)

// shutdownTimeout bounds graceful shutdown of the HTTP servers.
const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the auth API server",
		Long: `Start the auth API server, which exposes registration, login,
session validation, logout, and password reset endpoints.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("server.addr", defaults.Server.Addr, "API listen address")
	cmd.Flags().String("observability.addr", defaults.Observability.Addr, "metrics/health listen address (empty = disabled)")
	cmd.Flags().String("database.url", defaults.Database.URL, "PostgreSQL connection URL")
	cmd.Flags().String("log.format", defaults.Log.Format, "log format (json or text)")

	return cmd
}

func runServe(ctx context.Context, cfg config.Config) error {
	logging.SetDefault("arcadia-auth", version, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting auth service",
		"addr", cfg.Server.Addr,
		"metrics_addr", cfg.Observability.Addr,
	)

	pool, err := store.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	authSvc, resetSvc, err := buildServices(pool, cfg)
	if err != nil {
		return err
	}

	var metrics *observability.Metrics
	var obsSrv *observability.Server
	var obsErrCh <-chan error
	if cfg.Observability.Addr != "" {
		obsSrv = observability.NewServer(cfg.Observability.Addr, func() bool {
			return pool.Ping(ctx) == nil
		})
		metrics = obsSrv.Metrics()
		obsErrCh, err = obsSrv.Start()
		if err != nil {
			return err
		}
	}

	apiSrv := httpapi.NewServer(cfg.Server.Addr, authSvc, resetSvc, metrics)
	apiErrCh, err := apiSrv.Start()
	if err != nil {
		if obsSrv != nil {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = obsSrv.Stop(stopCtx) //nolint:errcheck // startup failed, best-effort cleanup
		}
		return err
	}

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case srvErr := <-apiErrCh:
		if srvErr != nil {
			return fmt.Errorf("api server failed: %w", srvErr)
		}
	case srvErr := <-obsErrCh:
		if srvErr != nil {
			return fmt.Errorf("observability server failed: %w", srvErr)
		}
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := apiSrv.Stop(stopCtx); err != nil {
		return err
	}
	if obsSrv != nil {
		if err := obsSrv.Stop(stopCtx); err != nil {
			return err
		}
	}

	slog.Info("auth service stopped")
	return nil
}

// buildServices wires the repositories, hasher, and services together.
func buildServices(pool *pgxpool.Pool, cfg config.Config) (*auth.Service, *auth.PasswordResetService, error) {
	users := postgres.NewUserRepository(pool)
	sessions := postgres.NewSessionRepository(pool)
	resets := postgres.NewResetTokenRepository(pool)
	hasher := auth.NewArgon2idHasher()

	authSvc, err := auth.NewService(users, sessions, hasher)
	if err != nil {
		return nil, nil, err
	}
	authSvc.SetSessionTTLs(cfg.Auth.SessionTTL, cfg.Auth.RememberMeTTL)

	resetSvc, err := auth.NewPasswordResetService(users, resets, hasher)
	if err != nil {
		return nil, nil, err
	}
	resetSvc.SetDefaultTTL(cfg.Auth.ResetTokenTTL)

	return authSvc, resetSvc, nil
}
