// Command finpulse-cli records expenses and produces reports from a terminal.
//
// Usage:
//
//	finpulse-cli add -title Lunch -amount 12.50 -category Food [-date 2024-03-15] [-notes ...]
//	finpulse-cli category NAME
//	finpulse-cli categories
//	finpulse-cli list [-filter today|week|all|last:N|custom] [-start YYYY-MM-DD -end YYYY-MM-DD]
//	finpulse-cli report [-filter ...]
//	finpulse-cli export -format pdf|csv [-filter ...] [-queue]
//	finpulse-cli watch [-filter ...]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"finpulse/internal/amqp"
	"finpulse/internal/cli"
	"finpulse/internal/config"
	"finpulse/internal/core"
	"finpulse/internal/log"
	"finpulse/internal/services"
	"finpulse/internal/store"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// errUsage marks bad invocations; they exit like validation failures.
var errUsage = errors.New("usage")

// app holds what the subcommands need. queue is dialed on demand.
type app struct {
	expenses *services.ExpenseService
	reports  *services.ReportService
	store    *store.Observable
	queue    func() (exportQueue, error)
	in       io.Reader
	out      io.Writer
	logger   *log.Logger
}

type exportQueue interface {
	PublishExportRequest(ctx context.Context, msg *amqp.ExportRequestMessage) error
	Close() error
}

func main() {
	cli.LoadEnvFile()
	// Logs go to stderr so command output stays pipeable.
	logger := cli.SetupLogger(log.ComponentCLI, os.Getenv("LOG_LEVEL"), os.Stderr)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	be := cli.OpenBackend(ctx, logger, cfg)
	expenses, reports := cli.NewServices(cfg, be.Store)

	a := &app{
		expenses: expenses,
		reports:  reports,
		store:    be.Store,
		queue:    dialQueue(cfg),
		in:       os.Stdin,
		out:      os.Stdout,
		logger:   logger,
	}
	code := exitCode(a.run(ctx, os.Args[1:]), os.Stderr)

	if err := be.Cleanup(); err != nil {
		logger.Error("Backend cleanup failed", "error", err)
	}
	os.Exit(code)
}

func dialQueue(cfg *config.Config) func() (exportQueue, error) {
	return func() (exportQueue, error) {
		if cfg.AMQPURL == "" {
			return nil, errors.New("AMQP_URL is not set: background exports are disabled")
		}
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// exitCode reports err on stderr and maps it to the process status.
func exitCode(err error, stderr io.Writer) int {
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp), errors.Is(err, context.Canceled):
		return exitOK
	case errors.Is(err, errUsage):
		fmt.Fprintln(stderr, err)
		return exitUsage
	case core.IsValidation(err):
		fmt.Fprintln(stderr, "invalid input:", err)
		return exitUsage
	default:
		fmt.Fprintln(stderr, "error:", err)
		return exitFailure
	}
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: finpulse-cli <add|category|categories|list|report|export|watch> [flags]", errUsage)
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "add":
		return a.add(ctx, rest)
	case "category":
		return a.category(ctx, rest)
	case "categories":
		return a.categories(ctx)
	case "list":
		return a.list(ctx, rest)
	case "report":
		return a.report(ctx, rest)
	case "export":
		return a.export(ctx, rest)
	case "watch":
		return a.watch(ctx, rest)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}
