package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"sheetledger/internal/core"
	"sheetledger/internal/log"
	"sheetledger/internal/services"
	"sheetledger/internal/ui"
)

// Mutation actions, as reported in HX-Trigger details and metrics.
const (
	actionAdd    = "add"
	actionEdit   = "edit"
	actionDelete = "delete"
	actionReload = "reload"
)

// View containers in the page. The chart canvas is never swapped; only the
// report summary next to it is.
const (
	targetRecords = "#records-view"
	targetSummary = "#report-summary"
)

var errTemplatesMissing = errors.New("templates not loaded")

type indexData struct {
	ui.View
	Today string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != RouteIndex {
		http.NotFound(w, r)
		return
	}
	if fail := RequireGET(r); fail != nil {
		fail.Write(w)
		return
	}
	if s.templates == nil {
		log.FromContext(r.Context()).WithComponent(log.ComponentTemplate).ErrorContext(r.Context(), "Templates not loaded",
			log.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	// first visit after a failed startup load
	if s.service.LoadedAt().IsZero() {
		ctx, cancel := context.WithTimeout(r.Context(), s.handlerTimeout)
		_ = s.service.Reload(ctx)
		cancel()
	}

	data := indexData{
		View:  ui.Build(s.state.Snapshot(), s.service.Records()),
		Today: today(s.now()),
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "index.html", data); err != nil {
		s.renderFailed(w, r, "index.html", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleView renders the visible view for the selected month.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	if fail := RequireGET(r); fail != nil {
		fail.Write(w)
		return
	}
	s.writeView(w, r, s.state.Snapshot())
}

func (s *Server) handleToggleView(w http.ResponseWriter, r *http.Request) {
	if fail := RequirePOST(r); fail != nil {
		fail.Write(w)
		return
	}
	snap := s.state.Toggle()
	log.FromContext(r.Context()).DebugContext(r.Context(), "View toggled", "view", string(snap.View))
	s.writeView(w, r, snap)
}

func (s *Server) handleSetMonth(w http.ResponseWriter, r *http.Request) {
	if fail := RequirePOST(r); fail != nil {
		fail.Write(w)
		return
	}
	p, fail := ParseBodyOrFail(r)
	if fail != nil {
		fail.Write(w)
		return
	}
	snap, err := s.state.SetMonth(p.Get("month"))
	if err != nil {
		UnprocessableEntityError(validationMessage(err)).Write(w)
		return
	}
	log.FromContext(r.Context()).DebugContext(r.Context(), "Month filter set", log.FieldMonth, snap.Month)
	s.writeView(w, r, snap)
}

// writeView renders the records list or the report summary and points the
// swap at the matching container. The view:changed trigger lets the page
// show that container and refresh the budget panel and the chart.
func (s *Server) writeView(w http.ResponseWriter, r *http.Request, snap ui.Snapshot) {
	view := ui.Build(snap, s.service.Records())

	name, data, target := "records", any(view.Records), targetRecords
	if view.Mode == ui.ViewReport {
		name, data, target = "chart", view.Chart, targetSummary
	}
	body, err := s.render(name, data)
	if err != nil {
		s.renderFailed(w, r, name, err)
		return
	}
	NewHTMXResponse().
		Retarget(target, "innerHTML").
		TriggerViewChanged(string(view.Mode), view.Month).
		BodyHTML(body).
		Write(w)
}

// handleChartData returns the category totals of the selected month for
// Chart.js.
func (s *Server) handleChartData(w http.ResponseWriter, r *http.Request) {
	if fail := RequireGET(r); fail != nil {
		fail.Write(w)
		return
	}
	snap := s.state.Snapshot()
	data := ui.BuildChartData(core.FilterByMonth(s.service.Records(), snap.Month), snap.Month)
	log.FromContext(r.Context()).DebugContext(r.Context(), "Chart data served",
		log.FieldOperation, log.OpRead,
		log.FieldMonth, snap.Month,
		log.FieldRecords, len(data.Labels))
	writeJSON(w, http.StatusOK, data)
}

func (s *Server) handleMonths(w http.ResponseWriter, r *http.Request) {
	if fail := RequireGET(r); fail != nil {
		fail.Write(w)
		return
	}
	snap := s.state.Snapshot()
	body, err := s.render("months", ui.BuildMonthOptions(s.service.Records(), snap.Month))
	if err != nil {
		s.renderFailed(w, r, "months", err)
		return
	}
	NewHTMXResponse().BodyHTML(body).Write(w)
}

func (s *Server) handleBudgetPanel(w http.ResponseWriter, r *http.Request) {
	if fail := RequireGET(r); fail != nil {
		fail.Write(w)
		return
	}
	body, err := s.renderBudget(s.state.Snapshot())
	if err != nil {
		s.renderFailed(w, r, "budget", err)
		return
	}
	NewHTMXResponse().BodyHTML(body).Write(w)
}

// handleSetBudget stores the budget and answers with the refreshed panel.
// Invalid values keep the previous budget.
func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	if fail := RequirePOST(r); fail != nil {
		fail.Write(w)
		return
	}
	p, fail := ParseBodyOrFail(r)
	if fail != nil {
		fail.Write(w)
		return
	}
	snap, err := s.state.SetBudget(p.Get("budget"))
	if err != nil {
		UnprocessableEntityError(validationMessage(err)).Write(w)
		return
	}
	body, err := s.renderBudget(snap)
	if err != nil {
		s.renderFailed(w, r, "budget", err)
		return
	}
	NewHTMXResponse().
		Retarget("#budget-panel", "innerHTML").
		TriggerSuccessNotification("Budget set").
		BodyHTML(body).
		Write(w)
}

func (s *Server) renderBudget(snap ui.Snapshot) ([]byte, error) {
	filtered := core.FilterByMonth(s.service.Records(), snap.Month)
	return s.render("budget", ui.BuildBudgetView(snap.Budget, filtered, snap.Month))
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	if fail := RequirePOST(r); fail != nil {
		fail.Write(w)
		return
	}
	p, fail := ParseBodyOrFail(r)
	if fail != nil {
		fail.Write(w)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.handlerTimeout)
	defer cancel()

	err := s.service.Add(ctx, p.EntryInput())
	s.observeMutation(actionAdd, err)
	if err != nil {
		mutationError(err, "Could not save the expense").Write(w)
		return
	}
	NewHTMXResponse().
		TriggerRecordsChanged(actionAdd).
		TriggerFormReset().
		TriggerSuccessNotification("Expense added").
		Write(w)
}

func (s *Server) handleEditRecord(w http.ResponseWriter, r *http.Request) {
	if fail := RequirePOST(r); fail != nil {
		fail.Write(w)
		return
	}
	p, fail := ParseBodyOrFail(r)
	if fail != nil {
		fail.Write(w)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.handlerTimeout)
	defer cancel()

	err := s.service.Edit(ctx, p.EditInput())
	s.observeMutation(actionEdit, err)
	if err != nil {
		mutationError(err, "Could not save changes").Write(w)
		return
	}
	NewHTMXResponse().
		TriggerRecordsChanged(actionEdit).
		TriggerSuccessNotification("Changes saved").
		Write(w)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	if fail := RequireDeleteOrPOST(r); fail != nil {
		fail.Write(w)
		return
	}
	p, fail := ParseBodyOrFail(r)
	if fail != nil {
		fail.Write(w)
		return
	}
	row := p.Get("row")
	if row == "" {
		// htmx sends DELETE parameters in the query string
		row = sanitizeInput(r.URL.Query().Get("row"))
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.handlerTimeout)
	defer cancel()

	err := s.service.Delete(ctx, row)
	s.observeMutation(actionDelete, err)
	if err != nil {
		mutationError(err, "Could not delete the record").Write(w)
		return
	}
	NewHTMXResponse().
		TriggerRecordsChanged(actionDelete).
		TriggerSuccessNotification("Record deleted").
		Write(w)
}

// handleReload forces a full reload of the cache from the store.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if fail := RequirePOST(r); fail != nil {
		fail.Write(w)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.handlerTimeout)
	defer cancel()

	if err := s.service.Reload(ctx); err != nil {
		BadGatewayError("Could not load records").Write(w)
		return
	}
	NewHTMXResponse().
		TriggerRecordsChanged(actionReload).
		TriggerNotification(NotificationInfo, "Records reloaded", 2000).
		Write(w)
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.started).Round(time.Second).String(),
	})
}

// handleReady reports ready once templates are parsed and the cache has
// loaded from the store at least once.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if loaded := s.service.LoadedAt(); loaded.IsZero() {
		checks["cache"] = "not loaded"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["cache"] = map[string]interface{}{
			"records":   s.service.Size(),
			"loaded_at": loaded.Format(time.RFC3339),
			"status":    "ok",
		}
	}

	checks["rate_limiter"] = map[string]interface{}{
		"active_clients": s.limiter.ActiveClients(),
		"status":         "ok",
	}

	writeJSON(w, httpStatus, map[string]interface{}{
		"status":    status,
		"timestamp": s.now().Format(time.RFC3339),
		"checks":    checks,
	})
}

func (s *Server) observeMutation(action string, err error) {
	if services.IsValidationError(err) {
		return
	}
	s.metrics.ObserveMutation(action, err)
}

func (s *Server) render(name string, data any) ([]byte, error) {
	if s.templates == nil {
		return nil, errTemplatesMissing
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Server) renderFailed(w http.ResponseWriter, r *http.Request, name string, err error) {
	log.FromContext(r.Context()).WithComponent(log.ComponentTemplate).ErrorContext(r.Context(), "Template execution failed",
		append(log.NewFields().WithOperation(log.OpRender).WithError(err).ToSlice(), "template", name)...)
	InternalServerError("Could not render page").Write(w)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
