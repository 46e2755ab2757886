// Package cli provides common initialization for the finpulse binaries.
// It consolidates the startup sequence shared by cmd/finpulse,
// cmd/finpulse-worker and cmd/finpulse-cli.
package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finpulse/internal/backend"
	"finpulse/internal/config"
	"finpulse/internal/log"
	"finpulse/internal/services"
	"finpulse/internal/store"

	"github.com/joho/godotenv"
)

// SetupLogger builds the component logger for LOG_LEVEL and installs it as
// the slog default. An unknown level falls back to info; Validate reports it.
func SetupLogger(component, level string, out io.Writer) *log.Logger {
	lvl, _ := config.ParseLevel(level)
	logger := log.New(log.Config{
		Level:     lvl,
		Component: component,
		Output:    out,
	})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err, "error_type", log.ErrorTypeConfiguration)
		os.Exit(1)
	}
	return cfg
}

// OpenBackend creates the configured store with its change notifier.
// Returns the backend or exits the process on failure.
func OpenBackend(ctx context.Context, logger *log.Logger, cfg *config.Config) *backend.BackendResult {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err, "error_type", log.ErrorTypeConfiguration)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err,
			"backend", cfg.DataBackend,
			"error_type", log.ErrorTypeDatabase)
		os.Exit(1)
	}
	return res
}

// NewServices wires the expense and report services over st.
func NewServices(cfg *config.Config, st store.Store) (*services.ExpenseService, *services.ReportService) {
	loc, err := cfg.Location()
	if err != nil {
		loc = time.Local
	}
	expenses := services.NewExpenseService(st)
	reports := services.NewReportService(st, services.ReportOptions{
		ReportsDir:     cfg.ReportsDir,
		CurrencySymbol: cfg.CurrencySymbol,
		Location:       loc,
		Timeout:        cfg.ExportTimeout,
	})
	return expenses, reports
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
			return
		}
		logger.Info("Shutdown complete")
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup finished.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
