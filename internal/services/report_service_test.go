package services

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"finpulse/internal/core"
	"finpulse/internal/report"
	"finpulse/internal/store/memory"

	"github.com/shopspring/decimal"
)

func newReportService(t *testing.T) (*ReportService, *ExpenseService, string) {
	t.Helper()
	st := memory.New([]string{"Food", "Transport"})
	dir := filepath.Join(t.TempDir(), "reports")
	rs := NewReportService(st, ReportOptions{
		ReportsDir:     dir,
		CurrencySymbol: "₹",
		Location:       time.UTC,
		Now:            func() time.Time { return fixedNow },
	})
	return rs, NewExpenseService(st).WithClock(func() time.Time { return fixedNow }), dir
}

func seedReport(t *testing.T, svc *ExpenseService) {
	t.Helper()
	for _, in := range []ExpenseInput{
		{Title: `He said "hi"`, Amount: "1500", Category: "Food", Date: fixedNow.Add(-2 * time.Hour)},
		{Title: "Bus", Amount: "20", Category: "Transport", Date: fixedNow.AddDate(0, 0, -1)},
		{Title: "Ancient", Amount: "3", Category: "Food", Date: fixedNow.AddDate(0, -2, 0)},
	} {
		if _, err := svc.AddExpense(context.Background(), in); err != nil {
			t.Fatalf("AddExpense() error = %v", err)
		}
	}
}

func TestSummary(t *testing.T) {
	rs, svc, _ := newReportService(t)
	seedReport(t, svc)

	s, err := rs.Summary(context.Background(), DefaultReportFilter(), fixedNow)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if s.Count != 2 || !s.Total.Equal(decimal.NewFromInt(1520)) {
		t.Fatalf("unexpected summary %+v", s)
	}
	if len(s.Daily) != 2 || s.Daily[0].Day.Day() != 15 {
		t.Fatalf("unexpected daily totals %+v", s.Daily)
	}
	if len(s.Categories) != 2 || s.Categories[0].Category.Name != "Food" {
		t.Fatalf("unexpected category totals %+v", s.Categories)
	}
}

func TestSummary_Empty(t *testing.T) {
	rs, _, _ := newReportService(t)
	s, err := rs.Summary(context.Background(), core.Today(), fixedNow)
	if err != nil {
		t.Fatalf("empty data must not be an error: %v", err)
	}
	if s.Count != 0 || !s.Total.IsZero() || len(s.Daily) != 0 || len(s.Chart) != 0 {
		t.Fatalf("expected empty summary, got %+v", s)
	}
}

func TestExport_CSV(t *testing.T) {
	rs, svc, dir := newReportService(t)
	seedReport(t, svc)

	res, err := rs.Export(context.Background(), ExportRequest{Format: FormatCSV, Filter: core.Today()})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if res.Name != report.DelimitedTextName || res.MIMEType != report.MIMECSV {
		t.Fatalf("unexpected result %+v", res)
	}
	if filepath.Dir(res.Path) != dir || filepath.Base(res.Path) != res.File {
		t.Fatalf("artifact published at %q as %q", res.Path, res.File)
	}
	data, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	want := "Date,Category,Title,Amount,Notes\n" + `2024-03-15,Food,"He said ""hi""",1500.00,""` + "\n"
	if string(data) != want || string(res.Data) != want {
		t.Fatalf("unexpected csv:\n%s", data)
	}
}

func TestExport_UsesRequestID(t *testing.T) {
	rs, _, dir := newReportService(t)
	res, err := rs.Export(context.Background(), ExportRequest{ID: "job-7", Format: FormatPDF, Filter: core.AllTime()})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if res.File != "FinPulse_Report_job-7.pdf" || res.Path != filepath.Join(dir, res.File) {
		t.Fatalf("unexpected published file %+v", res)
	}
}

func TestExport_SequentialExportsKeepTheirOwnRows(t *testing.T) {
	rs, svc, _ := newReportService(t)
	seedReport(t, svc)
	ctx := context.Background()

	all, err := rs.Export(ctx, ExportRequest{Format: FormatCSV, Filter: core.AllTime()})
	if err != nil {
		t.Fatalf("Export(all) error = %v", err)
	}
	today, err := rs.Export(ctx, ExportRequest{Format: FormatCSV, Filter: core.Today()})
	if err != nil {
		t.Fatalf("Export(today) error = %v", err)
	}
	if all.Path == today.Path {
		t.Fatalf("exports share %q", all.Path)
	}

	rows := func(path string) int {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		return strings.Count(string(data), "\n") - 1
	}
	if got := rows(all.Path); got != 3 {
		t.Fatalf("all-time export has %d rows, want 3", got)
	}
	if got := rows(today.Path); got != 1 {
		t.Fatalf("today export has %d rows, want 1", got)
	}
}

func TestExport_PDF(t *testing.T) {
	rs, svc, _ := newReportService(t)
	seedReport(t, svc)

	res, err := rs.Export(context.Background(), ExportRequest{Format: FormatPDF, Filter: DefaultReportFilter()})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	data, _ := os.ReadFile(res.Path)
	if res.Name != report.DocumentName || !bytes.HasPrefix(data, []byte("%PDF-")) || res.Size != len(data) {
		t.Fatalf("unexpected pdf result %+v", res)
	}
}

func TestExport_ArtifactIOFailure(t *testing.T) {
	st := memory.New([]string{"Food"})
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	rs := NewReportService(st, ReportOptions{ReportsDir: blocker, Location: time.UTC})

	_, err := rs.Export(context.Background(), ExportRequest{Format: FormatCSV, Filter: core.AllTime()})
	if !errors.Is(err, report.ErrArtifactIO) {
		t.Fatalf("expected ErrArtifactIO, got %v", err)
	}
}

func TestExport_InvalidRequest(t *testing.T) {
	rs, _, _ := newReportService(t)
	ctx := context.Background()

	if _, err := rs.Export(ctx, ExportRequest{Format: "xlsx", Filter: core.Today()}); !core.IsValidation(err) {
		t.Fatalf("expected validation error for format, got %v", err)
	}
	if _, err := rs.Export(ctx, ExportRequest{Format: FormatCSV, Filter: core.LastNDays(0)}); !errors.Is(err, core.ErrInvalidFilter) {
		t.Fatalf("expected ErrInvalidFilter, got %v", err)
	}
}

func TestExportAsync(t *testing.T) {
	rs, svc, _ := newReportService(t)
	seedReport(t, svc)

	select {
	case res, ok := <-rs.ExportAsync(context.Background(), ExportRequest{Format: FormatCSV, Filter: core.AllTime()}):
		if !ok || res.Err != nil || res.Path == "" {
			t.Fatalf("unexpected async result %+v ok=%v", res, ok)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for export")
	}
}

func TestExportAsync_Cancelled(t *testing.T) {
	rs, _, _ := newReportService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, ok := <-rs.ExportAsync(ctx, ExportRequest{Format: FormatCSV, Filter: core.AllTime()})
	if ok {
		t.Fatalf("cancelled export must not deliver a result, got %+v", res)
	}
}

func TestParseExportFormat(t *testing.T) {
	for in, want := range map[string]ExportFormat{"pdf": FormatPDF, " CSV ": FormatCSV} {
		got, err := ParseExportFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseExportFormat(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseExportFormat("doc"); !core.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestDocumentTitle(t *testing.T) {
	if got := DocumentTitle(DefaultReportFilter()); got != "Expense Report (Last 7 Days)" {
		t.Errorf("DocumentTitle(week) = %q", got)
	}
	if got := DocumentTitle(core.AllTime()); got != "Expense Report (All Expenses)" {
		t.Errorf("DocumentTitle(all) = %q", got)
	}
}
