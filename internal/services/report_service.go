package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"finpulse/internal/core"
	"finpulse/internal/report"
	"finpulse/internal/store"

	"github.com/google/uuid"
)

// ExportFormat selects the artifact produced by an export.
type ExportFormat string

const (
	FormatPDF ExportFormat = "pdf"
	FormatCSV ExportFormat = "csv"
)

// ChartBars is the number of days shown in the spending chart.
const ChartBars = 7

func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(s))) {
	case FormatPDF:
		return FormatPDF, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", &core.ValidationError{Field: "format", Err: fmt.Errorf("unsupported export format %q", s)}
	}
}

// DefaultReportFilter is the window of the report screen and its exports.
func DefaultReportFilter() core.DateFilter {
	return core.LastNDays(core.DefaultLastDays)
}

// ExportRequest asks for one artifact. A zero RequestedAt means now. ID names
// the published file; an empty ID gets a fresh one.
type ExportRequest struct {
	ID          string
	Format      ExportFormat
	Filter      core.DateFilter
	RequestedAt time.Time
}

// ExportResult describes a published artifact, or why it could not be produced.
// Name is the suggested download name; File is the name it was published
// under in the reports directory, unique per request.
type ExportResult struct {
	Name     string
	File     string
	MIMEType string
	Path     string
	Data     []byte
	Size     int
	Err      error
}

type ReportOptions struct {
	ReportsDir     string
	CurrencySymbol string
	Location       *time.Location
	// Timeout bounds a single export; zero means no limit.
	Timeout time.Duration
	Now     func() time.Time
}

// ReportService aggregates expenses for the report screen and renders the
// shareable artifacts.
type ReportService struct {
	store store.ExpenseStore
	opts  ReportOptions
}

func NewReportService(st store.ExpenseStore, opts ReportOptions) *ReportService {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &ReportService{store: st, opts: opts}
}

// Location is the calendar used for day boundaries.
func (s *ReportService) Location() *time.Location {
	return s.opts.Location
}

// ReportsDir is where exports are published.
func (s *ReportService) ReportsDir() string {
	return s.opts.ReportsDir
}

func (s *ReportService) CurrencySymbol() string {
	return s.opts.CurrencySymbol
}

// Now returns the service clock in the report calendar.
func (s *ReportService) Now() time.Time {
	return s.opts.Now().In(s.opts.Location)
}

// Summary computes totals, groupings and the chart for f relative to now.
// Empty data yields an empty summary, not an error.
func (s *ReportService) Summary(ctx context.Context, f core.DateFilter, now time.Time) (core.Summary, error) {
	list, err := s.list(ctx, f, now)
	if err != nil {
		return core.Summary{}, err
	}
	return core.Summarize(f, list, s.opts.Location), nil
}

// Render produces the artifact for req without publishing it.
func (s *ReportService) Render(ctx context.Context, req ExportRequest) (report.Artifact, error) {
	now := req.RequestedAt
	if now.IsZero() {
		now = s.Now()
	}
	list, err := s.list(ctx, req.Filter, now)
	if err != nil {
		return report.Artifact{}, err
	}

	switch req.Format {
	case FormatCSV:
		return report.RenderDelimitedText(list, s.opts.Location), nil
	case FormatPDF:
		return report.RenderDocument(
			core.GroupByDay(list, s.opts.Location),
			core.GroupByCategory(list),
			report.DocumentOptions{
				Title:          DocumentTitle(req.Filter),
				CurrencySymbol: s.opts.CurrencySymbol,
				Location:       s.opts.Location,
				Now:            now,
			},
		)
	default:
		return report.Artifact{}, &core.ValidationError{Field: "format", Err: fmt.Errorf("unsupported export format %q", req.Format)}
	}
}

// Export renders req and publishes it to the reports directory.
func (s *ReportService) Export(ctx context.Context, req ExportRequest) (ExportResult, error) {
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	a, err := s.Render(ctx, req)
	if err != nil {
		return ExportResult{}, fmt.Errorf("render %s export: %w", req.Format, err)
	}
	if err := ctx.Err(); err != nil {
		return ExportResult{}, err
	}
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	published := a
	published.Name = report.PublishedName(a.Name, id)
	path, err := report.Publish(s.opts.ReportsDir, published)
	if err != nil {
		return ExportResult{}, err
	}

	slog.InfoContext(ctx, "Report exported",
		"format", req.Format,
		"filter", req.Filter.String(),
		"path", path,
		"bytes", len(a.Data))

	return ExportResult{
		Name:     a.Name,
		File:     published.Name,
		MIMEType: a.MIMEType,
		Path:     path,
		Data:     a.Data,
		Size:     len(a.Data),
	}, nil
}

// ExportAsync runs Export off the caller's goroutine. The channel yields one
// result and is closed; if ctx is cancelled first it is closed empty.
func (s *ReportService) ExportAsync(ctx context.Context, req ExportRequest) <-chan ExportResult {
	out := make(chan ExportResult, 1)
	go func() {
		defer close(out)
		res, err := s.Export(ctx, req)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			res = ExportResult{Err: err}
		}
		out <- res
	}()
	return out
}

func (s *ReportService) list(ctx context.Context, f core.DateFilter, now time.Time) ([]core.ExpenseWithCategory, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	list, err := s.store.ListExpenses(ctx, f.RangePtr(now.In(s.opts.Location)))
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return list, nil
}

// DocumentTitle is the PDF heading for f.
func DocumentTitle(f core.DateFilter) string {
	if f == DefaultReportFilter() {
		return report.DefaultTitle
	}
	return "Expense Report (" + f.Title() + ")"
}
