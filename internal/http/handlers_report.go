package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"finpulse/internal/amqp"
	"finpulse/internal/core"
	"finpulse/internal/log"
	"finpulse/internal/report"
	"finpulse/internal/services"
)

type reportData struct {
	core.Summary
	Title string
	Empty bool
}

// handleReport renders the report partial: daily totals, category totals
// and the spending chart. Defaults to the last 7 days.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilterOrDefault(r, s)
	if err != nil {
		UnprocessableEntityError(validationMessage(err)).Write(w)
		return
	}

	sum, err := s.summary(r.Context(), f)
	if err != nil {
		s.structured.LogError(r.Context(), "Report summary error", err, log.ComponentReport, log.OpList, nil)
		InternalServerError("Error loading report").Write(w)
		return
	}

	s.renderPartial(w, r, "report.html", reportData{
		Summary: sum,
		Title:   services.DocumentTitle(f),
		Empty:   sum.Count == 0,
	})
}

// summary serves report aggregates from the cache. Entries are keyed by the
// current day so relative filters roll over at midnight.
func (s *Server) summary(ctx context.Context, f core.DateFilter) (core.Summary, error) {
	now := s.now()
	key := summaryKey{filter: f.String(), day: now.Format("2006-01-02")}
	if sum, ok := s.summaries.Get(key); ok {
		atomic.AddInt64(&s.metrics.cacheHits, 1)
		return sum, nil
	}
	atomic.AddInt64(&s.metrics.cacheMisses, 1)

	sum, err := s.reports.Summary(ctx, f, now)
	if err != nil {
		return core.Summary{}, err
	}
	s.summaries.Set(key, sum)
	return sum, nil
}

func (s *Server) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	s.handleExport(w, r, services.FormatPDF)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	s.handleExport(w, r, services.FormatCSV)
}

// handleExport renders the artifact off the request goroutine, publishes it
// to the reports directory and streams the rendered bytes back as an
// attachment.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, format services.ExportFormat) {
	f, err := parseFilterOrDefault(r, s)
	if err != nil {
		UnprocessableEntityError(validationMessage(err)).Write(w)
		return
	}

	req := services.ExportRequest{Format: format, Filter: f, RequestedAt: s.now()}
	var res services.ExportResult
	select {
	case <-r.Context().Done():
		return
	case out, ok := <-s.reports.ExportAsync(r.Context(), req):
		if !ok {
			return
		}
		res = out
	}

	if res.Err != nil {
		s.writeExportError(w, r, req, res.Err)
		return
	}

	atomic.AddInt64(&s.metrics.exportsServed, 1)
	s.structured.LogExportPublished(r.Context(), string(format), f.String(), res.File, res.Size)
	w.Header().Set("X-Export-File", res.File)
	s.serveArtifact(w, r, res.Name, res.MIMEType, time.Time{}, bytes.NewReader(res.Data))
}

func (s *Server) writeExportError(w http.ResponseWriter, r *http.Request, req services.ExportRequest, err error) {
	fields := log.NewFields().WithExport(string(req.Format), req.Filter.String(), "", 0)
	switch {
	case core.IsValidation(err):
		UnprocessableEntityError(validationMessage(err)).Write(w)
	case errors.Is(err, report.ErrArtifactIO):
		s.structured.LogError(r.Context(), "Report file could not be written", err, log.ComponentExport, log.OpPublish,
			fields.WithRequestID(requestID(r)))
		InternalServerError("Could not create the report file").Write(w)
	default:
		s.structured.LogError(r.Context(), "Report export failed", err, log.ComponentExport, log.OpRender,
			fields.WithRequestID(requestID(r)))
		InternalServerError("Error creating report").Write(w)
	}
}

// handleQueueExport asks the export worker to render a report in the
// background. 503 when no queue is configured.
func (s *Server) handleQueueExport(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if s.exports == nil {
		ErrorResponse(http.StatusServiceUnavailable, "Background exports are not enabled").Write(w)
		return
	}
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}

	format, err := services.ParseExportFormat(p.Get("format"))
	if err != nil {
		UnprocessableEntityError(validationMessage(err)).Write(w)
		return
	}
	f := services.DefaultReportFilter()
	if kind := p.Get("filter"); kind != "" {
		if f, err = core.ParseDateFilter(kind, p.Get("start"), p.Get("end"), s.location()); err != nil {
			UnprocessableEntityError(validationMessage(err)).Write(w)
			return
		}
	}

	msg := amqp.NewExportRequestMessage(string(format), f.String())
	if err := s.exports.PublishExportRequest(r.Context(), msg); err != nil {
		s.structured.LogError(r.Context(), "Failed to queue export", err, log.ComponentAMQP, log.OpEnqueue,
			log.NewFields().WithExport(string(format), f.String(), "", 0))
		ErrorResponse(http.StatusServiceUnavailable, "Could not queue the export, try again later").Write(w)
		return
	}

	atomic.AddInt64(&s.metrics.exportsQueued, 1)
	name := report.DocumentName
	if format == services.FormatCSV {
		name = report.DelimitedTextName
	}
	name = report.PublishedName(name, msg.ID)
	NewHTMXResponse().
		Status(http.StatusAccepted).
		TriggerExportQueued(msg.ID, string(format)).
		TriggerNotification(NotificationInfo, "Export queued", 3000).
		BodyHTML(`<div class="info">Export queued. <a href="/exports/` + name + `">Download when ready</a></div>`).
		Write(w)
}

// handleDownloadExport serves a previously published artifact by name.
func (s *Server) handleDownloadExport(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet, http.MethodHead); resp != nil {
		resp.Write(w)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/exports/")
	path, err := report.Open(s.reports.ReportsDir(), name)
	if err != nil {
		NotFoundError("Export not found").Write(w)
		return
	}
	file, err := os.Open(path)
	if err != nil {
		s.structured.LogError(r.Context(), "Open artifact failed", err, log.ComponentExport, log.OpPublish, nil)
		InternalServerError("Could not open the report file").Write(w)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		InternalServerError("Could not open the report file").Write(w)
		return
	}
	s.serveArtifact(w, r, name, report.MIMETypeFor(name), info.ModTime(), file)
}

func (s *Server) serveArtifact(w http.ResponseWriter, r *http.Request, name, mimeType string, modTime time.Time, content io.ReadSeeker) {
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", strconv.Quote(name)))
	http.ServeContent(w, r, name, modTime, content)
}

func parseFilterOrDefault(r *http.Request, s *Server) (core.DateFilter, error) {
	if strings.TrimSpace(r.URL.Query().Get("filter")) == "" {
		return services.DefaultReportFilter(), nil
	}
	return ParseFilterParams(r.URL.Query(), s.location())
}
