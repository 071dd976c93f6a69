// Package main is the entry point for the end-of-day ledger service.
// It ingests nightly brokerage extracts into the ledger, rebuilds realized
// trades and daily aggregates, and serves read-only views over the result.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/eodledger/internal/config"
	"github.com/aristath/eodledger/internal/di"
	"github.com/aristath/eodledger/internal/scheduler"
	"github.com/aristath/eodledger/internal/server"
	"github.com/aristath/eodledger/pkg/logger"
)

// main is the application entry point:
// 1. Loads configuration from environment variables
// 2. Initializes logging
// 3. Wires all dependencies via DI container (database, repositories, services, jobs)
// 4. Starts HTTP server and, when enabled, the nightly scheduler
// 5. Waits for shutdown signal and performs graceful shutdown
func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("data_dir", cfg.DataDir).
		Str("extract_dir", cfg.ExtractDir).
		Str("timezone", cfg.Location.String()).
		Int("accounts", len(cfg.Accounts)).
		Msg("Starting eodledger")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, jobs, err := di.Wire(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	// Closing the ledger writes the final WAL checkpoint
	defer container.Close()

	var sched *scheduler.Scheduler
	if cfg.ScheduleEnabled {
		sched = scheduler.New(cfg.Location, log)
		if err := di.ScheduleJobs(sched, jobs, cfg); err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule jobs")
		}
		sched.Start()
	} else {
		log.Info().Msg("Nightly schedule disabled, batches run on request only")
	}

	srv := server.New(server.Config{
		Log:       log,
		Config:    cfg,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
		Container: container,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	cancel()

	if sched != nil {
		sched.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
