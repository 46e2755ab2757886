package http

import (
	"bytes"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"finpulse/internal/core"
	"finpulse/internal/log"
	"finpulse/internal/services"
	"finpulse/internal/store"
)

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}

	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		s.logger.WarnContext(r.Context(), "Parse body error", "error", err, log.FieldPath, r.URL.Path)
		BadRequestError("Invalid request format").Write(w)
		return
	}

	input, err := ParseExpenseInput(p, s.now(), s.location())
	if err != nil {
		UnprocessableEntityError(validationMessage(err)).Write(w)
		return
	}

	e, err := s.expenses.AddExpense(r.Context(), input)
	switch {
	case core.IsValidation(err):
		UnprocessableEntityError(validationMessage(err)).Write(w)
		return
	case errors.Is(err, store.ErrUnknownCategory):
		UnprocessableEntityError("Unknown category").Write(w)
		return
	case err != nil:
		s.structured.LogError(r.Context(), "Failed to save expense", err, log.ComponentExpense, log.OpCreate,
			log.NewFields().WithExpense(0, input.Title, input.Amount, input.Category))
		InternalServerError("Error saving expense").Write(w)
		return
	}

	atomic.AddInt64(&s.metrics.expensesCreated, 1)
	s.structured.LogExpenseCreated(r.Context(), e.ID, e.Title, core.FormatAmount(e.Amount), input.Category)

	NewHTMXResponse().
		TriggerExpenseCreated(e.ID, e.Date.In(s.location()).Format("2006-01-02")).
		TriggerFormReset().
		TriggerReportRefresh().
		TriggerSuccessNotification("Expense saved").
		BodyHTML(`<div class="success">Saved: ` + template.HTMLEscapeString(e.Title) +
			` (` + template.HTMLEscapeString(core.FormatMoney(s.currencySymbol(), e.Amount)) + `)</div>`).
		Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}

	c, err := s.expenses.AddCategory(r.Context(), p.Get("name"))
	switch {
	case core.IsValidation(err):
		UnprocessableEntityError(validationMessage(err)).Write(w)
		return
	case err != nil:
		s.structured.LogError(r.Context(), "Failed to save category", err, log.ComponentExpense, log.OpCreate, nil)
		InternalServerError("Error saving category").Write(w)
		return
	}

	NewHTMXResponse().
		TriggerCategoryCreated(c.ID, c.Name).
		BodyHTML(`<option value="` + template.HTMLEscapeString(c.Name) + `" selected>` +
			template.HTMLEscapeString(c.Name) + `</option>`).
		Write(w)
}

// listData feeds expense_list.html.
type listData struct {
	services.ListSnapshot
	Location *time.Location
}

// handleExpenseList renders the list partial for the selected filter.
func (s *Server) handleExpenseList(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFilterParams(r.URL.Query(), s.location())
	if err != nil {
		UnprocessableEntityError(validationMessage(err)).Write(w)
		return
	}

	list, err := s.expenses.Expenses(r.Context(), f, s.now())
	if err != nil {
		s.structured.LogError(r.Context(), "List expenses error", err, log.ComponentExpense, log.OpList,
			log.NewFields().WithRequestID(requestID(r)))
		InternalServerError("Error loading expenses").Write(w)
		return
	}

	s.renderPartial(w, r, "expense_list.html", listData{
		ListSnapshot: services.NewListSnapshot(f, list),
		Location:     s.location(),
	})
}

// handleExpenseEvents streams the expense list for one filter as
// server-sent events. Every store change re-renders the partial; a slow
// client only ever receives the latest snapshot.
func (s *Server) handleExpenseEvents(w http.ResponseWriter, r *http.Request) {
	if s.store == nil || s.templates == nil {
		InternalServerError("Live updates unavailable").Write(w)
		return
	}
	f, err := ParseFilterParams(r.URL.Query(), s.location())
	if err != nil {
		UnprocessableEntityError(validationMessage(err)).Write(w)
		return
	}

	rc := http.NewResponseController(w)
	// The stream outlives the server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	view := services.NewListView(r.Context(), s.store, s.store.Notifier(), s.now)
	defer view.Close()
	if err := view.SetFilter(f); err != nil {
		UnprocessableEntityError(validationMessage(err)).Write(w)
		return
	}

	atomic.AddInt64(&s.metrics.streams, 1)
	defer atomic.AddInt64(&s.metrics.streams, -1)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		s.logger.WarnContext(r.Context(), "Streaming unsupported", "error", err)
		return
	}

	keepAlive := time.NewTicker(30 * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			if _, err := w.Write([]byte(": keep-alive\n\n")); err != nil {
				return
			}
		case u, ok := <-view.Updates():
			if !ok {
				return
			}
			var buf bytes.Buffer
			if err := s.templates.ExecuteTemplate(&buf, "expense_list.html", listData{ListSnapshot: u.Value, Location: s.location()}); err != nil {
				s.logger.ErrorContext(r.Context(), "Template execution error", "error", err, "template", "expense_list.html")
				return
			}
			if err := writeEvent(w, "expenses", buf.String()); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

// writeEvent writes one server-sent event; multi-line payloads become
// several data fields.
func writeEvent(w http.ResponseWriter, event, payload string) error {
	var b strings.Builder
	b.WriteString("event: ")
	b.WriteString(event)
	b.WriteByte('\n')
	for _, line := range strings.Split(strings.TrimRight(payload, "\n"), "\n") {
		b.WriteString("data: ")
		b.WriteString(strings.TrimRight(line, "\r"))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	_, err := w.Write([]byte(b.String()))
	return err
}

func (s *Server) renderPartial(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		InternalServerError("templates not loaded").Write(w)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution error", "error", err, "template", name)
		InternalServerError("Error rendering page").Write(w)
		return
	}
	NewHTMXResponse().BodyHTML(buf.String()).Write(w)
}
