/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the deposit-intake service. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (env vars over flags)
  2. Build the zap logger
  3. Open the store (PostgreSQL if DATABASE_URI is set, else SQLite)
  4. Load reference data (JSON file or built-in defaults)
  5. Wire the engine and HTTP handler
  6. Start the server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close the store
  4. Exit

EXAMPLES:
  # SQLite, built-in reference data
  ./server -db=./data/incentive.db

  # PostgreSQL with a custom grid
  DATABASE_URI=postgres://user:pass@db/incentive ./server -ref=grid.json

SEE ALSO:
  - api/server.go: router configuration
  - config/config.go: configuration surface
*/
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/warp/incentive-engine/api"
	"github.com/warp/incentive-engine/config"
	"github.com/warp/incentive-engine/engine"
	"github.com/warp/incentive-engine/grid"
	"github.com/warp/incentive-engine/store/postgres"
	"github.com/warp/incentive-engine/store/sqlite"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

// intakeStore is the store surface main needs to wire everything.
type intakeStore interface {
	engine.LockingStore
	api.PaymentLister
	Close() error
}

func run(logger *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var store intakeStore
	if cfg.DatabaseURI != "" {
		store, err = postgres.New(cfg.DatabaseURI)
		logger.Info("using postgres store")
	} else {
		store, err = sqlite.New(cfg.SQLitePath)
		logger.Info("using sqlite store", zap.String("path", cfg.SQLitePath))
	}
	if err != nil {
		return err
	}
	defer store.Close()

	ref := grid.Defaults()
	if cfg.ReferenceFile != "" {
		data, err := os.ReadFile(cfg.ReferenceFile)
		if err != nil {
			return err
		}
		if ref, err = grid.ParseReference(data); err != nil {
			return err
		}
		logger.Info("loaded reference data", zap.String("file", cfg.ReferenceFile))
	} else {
		// The file carries its own day_start_hour; built-ins take the
		// configured one.
		ref.DayHour = cfg.DayStartHour
	}

	eng := engine.New(store, ref, logger,
		engine.WithDuplicateWindow(cfg.DuplicateWindow))
	handler := api.NewHandler(eng, store, ref, logger)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         cfg.RunAddress,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", cfg.RunAddress))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
