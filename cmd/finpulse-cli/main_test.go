package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"finpulse/internal/amqp"
	"finpulse/internal/feed"
	"finpulse/internal/log"
	"finpulse/internal/services"
	"finpulse/internal/store"
	"finpulse/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 15, 14, 0, 0, 0, time.UTC)

// syncBuffer lets the watch loop write while the test reads.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fakeQueue struct {
	msgs   []*amqp.ExportRequestMessage
	closed bool
}

func (q *fakeQueue) PublishExportRequest(_ context.Context, msg *amqp.ExportRequestMessage) error {
	q.msgs = append(q.msgs, msg)
	return nil
}

func (q *fakeQueue) Close() error {
	q.closed = true
	return nil
}

func newTestApp(t *testing.T) (*app, *syncBuffer) {
	t.Helper()
	obs := store.NewObservable(memory.New([]string{"Food", "Transport"}), feed.NewHub())
	t.Cleanup(func() { _ = obs.Close() })
	clock := func() time.Time { return fixedNow }
	out := &syncBuffer{}
	return &app{
		expenses: services.NewExpenseService(obs).WithClock(clock),
		reports: services.NewReportService(obs, services.ReportOptions{
			ReportsDir:     t.TempDir(),
			CurrencySymbol: "$",
			Location:       time.UTC,
			Now:            clock,
		}),
		store:  obs,
		queue:  func() (exportQueue, error) { return nil, errors.New("no broker") },
		in:     strings.NewReader(""),
		out:    out,
		logger: log.New(log.Config{Output: io.Discard}),
	}, out
}

func TestAddAndList(t *testing.T) {
	a, out := newTestApp(t)
	ctx := context.Background()

	require.NoError(t, a.run(ctx, []string{"add", "-title", "Lunch", "-amount", "12.5", "-category", "Food", "-notes", "with Sam"}))
	assert.Equal(t, "Saved #1 Lunch ($12.50) on 2024-03-15\n", out.String())

	require.NoError(t, a.run(ctx, []string{"add", "-title", "Train", "-amount", "4", "-category", "Transport", "-date", "2024-03-01"}))

	out.buf.Reset()
	require.NoError(t, a.run(ctx, []string{"list", "-filter", "week"}))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Last 7 Days: 1 expenses, total $12.50", lines[0])
	assert.Contains(t, lines[1], "Lunch")
	assert.Contains(t, lines[1], "with Sam")

	out.buf.Reset()
	require.NoError(t, a.run(ctx, []string{"list", "-filter", "custom", "-start", "2024-03-01", "-end", "2024-03-02"}))
	assert.Contains(t, out.String(), "Mar 01 - Mar 02: 1 expenses, total $4.00")
}

func TestExitCodes(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()
	var stderr bytes.Buffer

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"no command", nil, exitUsage},
		{"unknown command", []string{"delete"}, exitUsage},
		{"bad flag", []string{"list", "-nope"}, exitUsage},
		{"invalid amount", []string{"add", "-title", "x", "-amount", "0", "-category", "Food"}, exitUsage},
		{"invalid date", []string{"add", "-title", "x", "-amount", "1", "-category", "Food", "-date", "yesterday"}, exitUsage},
		{"invalid filter", []string{"report", "-filter", "last:0"}, exitUsage},
		{"invalid format", []string{"export", "-format", "xlsx"}, exitUsage},
		{"queue unavailable", []string{"export", "-queue"}, exitFailure},
		{"help", []string{"list", "-h"}, exitOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stderr.Reset()
			assert.Equal(t, tt.want, exitCode(a.run(ctx, tt.args), &stderr))
			if tt.want != exitOK {
				assert.NotEmpty(t, stderr.String())
			}
		})
	}
}

func TestCategories(t *testing.T) {
	a, out := newTestApp(t)
	ctx := context.Background()

	require.NoError(t, a.run(ctx, []string{"category", "Travel"}))
	assert.Equal(t, "3\tTravel\n", out.String())

	out.buf.Reset()
	require.NoError(t, a.run(ctx, []string{"categories"}))
	assert.Equal(t, "1\tFood\n2\tTransport\n3\tTravel\n", out.String())

	assert.ErrorIs(t, a.run(ctx, []string{"category"}), errUsage)
}

func TestReport(t *testing.T) {
	a, out := newTestApp(t)
	ctx := context.Background()

	require.NoError(t, a.run(ctx, []string{"report"}))
	assert.Equal(t, "Expense Report (Last 7 Days)\n0 expenses, total $0.00\nNo data available.\n", out.String())

	require.NoError(t, a.run(ctx, []string{"add", "-title", "Lunch", "-amount", "10", "-category", "Food"}))
	require.NoError(t, a.run(ctx, []string{"add", "-title", "Bus", "-amount", "2", "-category", "Transport", "-date", "2024-03-14"}))
	out.buf.Reset()
	require.NoError(t, a.run(ctx, []string{"report", "-filter", "all"}))
	report := out.String()
	assert.Contains(t, report, "Expense Report (All Expenses)")
	assert.Contains(t, report, "2 expenses, total $12.00")
	assert.Contains(t, report, "Daily Totals")
	assert.Contains(t, report, "2024-03-14")
	assert.Contains(t, report, "Category Totals")
	assert.Less(t, strings.Index(report, "Food"), strings.Index(report, "Transport"))
}

func TestExport(t *testing.T) {
	a, out := newTestApp(t)
	ctx := context.Background()
	require.NoError(t, a.run(ctx, []string{"add", "-title", "Lunch", "-amount", "10", "-category", "Food"}))

	out.buf.Reset()
	require.NoError(t, a.run(ctx, []string{"export", "-format", "csv", "-filter", "today"}))
	path := strings.Split(out.String(), "\t")[0]
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Date,Category,Title,Amount,Notes\n2024-03-15,Food,Lunch,10.00,\"\"\n", string(data))

	out.buf.Reset()
	require.NoError(t, a.run(ctx, []string{"export"}))
	assert.Contains(t, out.String(), "application/pdf")
}

func TestExportQueued(t *testing.T) {
	a, out := newTestApp(t)
	q := &fakeQueue{}
	a.queue = func() (exportQueue, error) { return q, nil }

	require.NoError(t, a.run(context.Background(), []string{"export", "-queue", "-format", "csv", "-filter", "last:30"}))
	require.Len(t, q.msgs, 1)
	assert.Equal(t, "csv", q.msgs[0].Format)
	assert.Equal(t, "last:30", q.msgs[0].Filter)
	assert.True(t, q.closed)
	assert.Contains(t, out.String(), "Queued export "+q.msgs[0].ID)
}

func TestWatch(t *testing.T) {
	a, out := newTestApp(t)
	pr, pw := io.Pipe()
	a.in = pr

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.run(ctx, []string{"watch"}) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Today's Expenses: 0 expenses")
	}, 2*time.Second, 10*time.Millisecond)

	_, err := a.expenses.AddExpense(ctx, services.ExpenseInput{Title: "Tea", Amount: "1.5", Category: "Food"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Today's Expenses: 1 expenses, total $1.50")
	}, 2*time.Second, 10*time.Millisecond)

	_, err = io.WriteString(pw, "all\n")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "All Expenses: 1 expenses")
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	_ = pw.Close()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}
