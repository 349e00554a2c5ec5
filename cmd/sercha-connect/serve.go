package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sercha-connect/internal/adapters/driving/http"
	"github.com/custodia-labs/sercha-connect/internal/worker"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context(), true, false)
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the maintenance worker",
	Long: `Purges expired authorization states and refreshes tokens that are about
to expire. Replicas coordinate through a distributed lock.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context(), false, true)
	},
}

var allCmd = &cobra.Command{
	Use:   "all",
	Short: "Run the HTTP API and the maintenance worker",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context(), true, true)
	},
}

func init() {
	rootCmd.AddCommand(apiCmd, workerCmd, allCmd)
}

func run(parent context.Context, withAPI, withWorker bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.Default()
	logger.Info("sercha-connect starting", "version", version, "api", withAPI, "worker", withWorker)

	a, err := newApp(ctx, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	g, ctx := errgroup.WithContext(ctx)

	if withWorker && !getEnvBool("MAINTENANCE_ENABLED", true) {
		logger.Info("maintenance disabled via MAINTENANCE_ENABLED=false")
		withWorker = false
	}

	if withWorker {
		w := worker.NewWorker(worker.WorkerConfig{
			Maintenance: a.maintenance,
			Lock:        a.lock,
			Store:       a.connections,
			Logger:      logger,
			Interval:    getEnvDuration("MAINTENANCE_INTERVAL", 0),
		})
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("start worker: %w", err)
		}
		g.Go(func() error {
			<-ctx.Done()
			w.Stop()
			logger.Info("worker stopped")
			return nil
		})
	}

	if withAPI {
		cfg := http.DefaultConfig()
		cfg.Port = getEnvInt("PORT", cfg.Port)
		cfg.Version = version
		cfg.CallbackRedirect = getEnv("CALLBACK_REDIRECT_URL", "")
		cfg.CORSOrigins = getEnvList("CORS_ORIGINS")
		cfg.Logger = logger

		var cachePinger http.Pinger
		if a.redisClient != nil {
			cachePinger = a.lock
		}
		server := http.NewServer(cfg, a.service, a.authAdapter, a.connections, cachePinger)
		g.Go(func() error {
			return server.Start(ctx)
		})
	}

	return g.Wait()
}
