package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/moodbite/backend/config"
	"github.com/moodbite/backend/internal/app"
	httpDelivery "github.com/moodbite/backend/internal/delivery/http"
	"github.com/moodbite/backend/internal/infrastructure/logging"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Server.Environment, cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting MoodBite backend",
		zap.String("version", "1.0.0"),
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
		zap.String("store", cfg.Store.Type),
		zap.String("catalog", cfg.Catalog.BaseURL),
	)

	// Initialize dependencies
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("failed to close store", zap.Error(err))
		}
	}()

	// Seed the shared catalog in the background; failures never stop the server
	if cfg.Seeder.Enabled {
		go func() {
			report, err := a.Seeder.SeedIfEmpty(ctx)
			if err != nil {
				logger.Error("catalog seed failed", zap.Error(err))
				return
			}
			logger.Info("catalog seed finished",
				zap.String("outcome", string(report.Outcome)),
				zap.Int("attempts", report.Attempts),
				zap.Int("written", report.Written),
			)
		}()
	}

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(a.Scans, a.Dashboards, a.Feed, logger, cfg.Server.AllowedOrigins)

	// Setup router
	router := httpDelivery.SetupRouter(cfg, handler, logger, a.Metrics)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
