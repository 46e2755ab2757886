package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"finpulse/internal/amqp"
	"finpulse/internal/cli"
	apphttp "finpulse/internal/http"
	"finpulse/internal/log"

	"golang.org/x/sync/errgroup"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp, os.Getenv("LOG_LEVEL"), os.Stdout)
	cfg := cli.LoadAndValidateConfig(logger)

	be := cli.OpenBackend(context.Background(), logger, cfg)
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()

	expenses, reports := cli.NewServices(cfg, be.Store)

	deps := apphttp.Deps{
		Expenses: expenses,
		Reports:  reports,
		Store:    be.Store,
		Ping:     be.Ping,
		Logger:   logger,
	}

	// Background exports are optional; without a broker the UI hides them.
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, background exports disabled", "error", err, "error_type", log.ErrorTypeNetwork)
		} else {
			defer client.Close()
			deps.Exports = client
			logger.Info("Background exports enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	srv := apphttp.NewServer(":"+cfg.Port, deps)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting finpulse server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"reports_dir", cfg.ReportsDir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
