package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"finpulse/internal/amqp"
	"finpulse/internal/core"
	"finpulse/internal/services"
)

// Exporter renders and publishes one report.
type Exporter interface {
	Export(ctx context.Context, req services.ExportRequest) (services.ExportResult, error)
}

// ExportWorker turns queued export requests into published artifacts
type ExportWorker struct {
	exporter Exporter
	loc      *time.Location
}

func NewExportWorker(exporter Exporter, loc *time.Location) *ExportWorker {
	if loc == nil {
		loc = time.Local
	}
	return &ExportWorker{exporter: exporter, loc: loc}
}

// HandleExportRequest processes a single export request message from AMQP.
// Requests that can never succeed are returned wrapped in amqp.ErrRejected.
func (w *ExportWorker) HandleExportRequest(ctx context.Context, msg *amqp.ExportRequestMessage) error {
	req, err := w.toRequest(msg)
	if err != nil {
		return fmt.Errorf("%w: %v", amqp.ErrRejected, err)
	}

	start := time.Now()
	res, err := w.exporter.Export(ctx, req)
	if err != nil {
		if core.IsValidation(err) {
			return fmt.Errorf("%w: %v", amqp.ErrRejected, err)
		}
		return fmt.Errorf("export %s: %w", msg.ID, err)
	}

	slog.InfoContext(ctx, "Export request completed",
		"id", msg.ID,
		"file", res.File,
		"path", res.Path,
		"bytes", res.Size,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (w *ExportWorker) toRequest(msg *amqp.ExportRequestMessage) (services.ExportRequest, error) {
	format, err := services.ParseExportFormat(msg.Format)
	if err != nil {
		return services.ExportRequest{}, err
	}
	filter, err := core.ParseDateFilter(msg.Filter, "", "", w.loc)
	if err != nil {
		return services.ExportRequest{}, err
	}
	return services.ExportRequest{
		ID:          msg.ID,
		Format:      format,
		Filter:      filter,
		RequestedAt: msg.RequestedAt.In(w.loc),
	}, nil
}
