package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"finpulse/internal/core"
	"finpulse/internal/log"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.metrics.started).Round(time.Second).String(),
	})
}

// handleReady checks templates, the store and the reports directory setup
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)
	fail := func(name string, err error) {
		checks[name] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	if s.templates == nil {
		fail("templates", fmt.Errorf("templates not loaded"))
	} else {
		checks["templates"] = "ok"
	}

	switch {
	case s.expenses == nil:
		fail("store", fmt.Errorf("not configured"))
	case s.ping != nil:
		if err := s.ping(ctx); err != nil {
			fail("store", err)
		} else {
			checks["store"] = "ok"
		}
	default:
		if _, err := s.expenses.Categories(ctx); err != nil {
			fail("store", err)
		} else {
			checks["store"] = "ok"
		}
	}

	if s.exports != nil {
		checks["export_queue"] = "configured"
	} else {
		checks["export_queue"] = "disabled"
	}
	checks["cache"] = map[string]any{"summary_entries": s.summaries.Size()}
	checks["rate_limiter"] = map[string]any{"active_clients": s.limiter.ActiveClients()}

	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	write := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	write("http_requests_total", "counter", "Total number of HTTP requests", s.tracer.GetMetrics().TotalRequests)
	write("expenses_created_total", "counter", "Expenses created through the UI", atomic.LoadInt64(&s.metrics.expensesCreated))
	write("exports_served_total", "counter", "Report artifacts rendered and downloaded", atomic.LoadInt64(&s.metrics.exportsServed))
	write("exports_queued_total", "counter", "Export requests handed to the worker", atomic.LoadInt64(&s.metrics.exportsQueued))
	write("report_cache_hits_total", "counter", "Report summary cache hits", atomic.LoadInt64(&s.metrics.cacheHits))
	write("report_cache_misses_total", "counter", "Report summary cache misses", atomic.LoadInt64(&s.metrics.cacheMisses))
	write("report_cache_entries", "gauge", "Cached report summaries", s.summaries.Size())
	write("expense_streams_active", "gauge", "Open expense event streams", atomic.LoadInt64(&s.metrics.streams))
	write("rate_limit_hits_total", "counter", "Requests rejected by the rate limiter", s.limiter.GetMetrics().TotalHits)
	write("suspicious_requests_total", "counter", "Suspicious requests detected", s.detector.GetMetrics().SuspiciousRequests)
	write("uptime_seconds", "gauge", "Application uptime in seconds", int64(time.Since(s.metrics.started).Seconds()))
}

type indexData struct {
	Today      string
	Categories []core.Category
	TotalToday decimal.Decimal
	Filters    []filterOption
	Queue      bool
}

type filterOption struct {
	Value, Label string
}

var listFilters = []filterOption{
	{"today", "Today"},
	{"week", "Last 7 Days"},
	{"all", "All"},
	{"custom", "Custom Range"},
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded",
			log.FieldPath, r.URL.Path,
			"error_type", log.ErrorTypeConfiguration)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	now := s.now()
	data := indexData{
		Today:   now.Format("2006-01-02"),
		Filters: listFilters,
		Queue:   s.exports != nil,
	}

	// Categories and today's total are independent reads; a failure of
	// either still renders the page with an empty value.
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		cats, err := s.expenses.Categories(ctx)
		if err != nil {
			return fmt.Errorf("list categories: %w", err)
		}
		data.Categories = cats
		return nil
	})
	g.Go(func() error {
		total, err := s.expenses.TotalToday(ctx, now)
		if err != nil {
			return fmt.Errorf("total today: %w", err)
		}
		data.TotalToday = total
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(r.Context(), "Index data error", "error", err, "error_type", log.ErrorTypeDatabase)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		s.logger.ErrorContext(r.Context(), "Index template execution failed", "error", err, "template", "index.html")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
