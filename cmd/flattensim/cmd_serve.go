package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/talgya/flatten-sim/internal/api"
	"github.com/talgya/flatten-sim/internal/logging"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored runs and accept new ones over HTTP",
		Long: `Serve the run history over HTTP.

GET endpoints are public. POST /api/v1/runs plays a new session and
requires the admin key (FLATTEN_ADMIN_KEY) as a bearer token.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.API.Port, _ = cmd.Flags().GetInt("port")
			}
			slog.Info("api config", "api", cfg.API.String())

			db, err := openStore(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer db.Close()
			slog.Info("database opened", "path", cfg.Store.Path)

			tables, err := cfg.LoadTables()
			if err != nil {
				return fmt.Errorf("load reference data: %w", err)
			}
			days := logging.NewDayLogger(cfg.Logging.TraceDir, cfg.Logging.Level)
			defer days.Close()

			srv := &api.Server{
				Store:         db,
				Runner:        newRunner(cfg, tables, days),
				Port:          cfg.API.Port,
				AdminKey:      cfg.API.AdminKey,
				RatePerMinute: cfg.API.RatePerMinute,
				Version:       version,
			}
			if err := srv.Start(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			slog.Info("shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			slog.Info("server stopped")
			return nil
		},
	}
	cmd.Flags().Int("port", 0, "Listen port (overrides config)")
	return cmd
}
