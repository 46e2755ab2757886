package main

import (
	"context"
	"errors"
	"os"
	"time"

	"finpulse/internal/amqp"
	"finpulse/internal/cli"
	"finpulse/internal/log"
	"finpulse/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker, os.Getenv("LOG_LEVEL"), os.Stdout)
	logger.Info("Starting finpulse-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the export worker", "error_type", log.ErrorTypeConfiguration)
		os.Exit(1)
	}

	be := cli.OpenBackend(context.Background(), logger, cfg)
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()

	_, reports := cli.NewServices(cfg, be.Store)

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err, "error_type", log.ErrorTypeNetwork)
		os.Exit(1)
	}
	defer client.Close()

	exportWorker := worker.NewExportWorker(reports, reports.Location())

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	logger.Info("Consuming export requests",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue,
		"reports_dir", cfg.ReportsDir)
	if err := client.ConsumeExportRequests(ctx, exportWorker.HandleExportRequest); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
