package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/knjiznica/internal/fines"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// ReportsHandler serves the dashboard and the event feed.
type ReportsHandler struct {
	DB        *sql.DB
	Formatter *fines.Formatter
}

type statsResponse struct {
	*store.Stats
	Currency              string `json:"currency,omitempty"`
	UnpaidFinesDisplay    string `json:"unpaid_fines_display,omitempty"`
	CollectedFinesDisplay string `json:"collected_fines_display,omitempty"`
}

// Stats handles GET /api/stats.
func (h *ReportsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := store.GetStats(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to compute stats", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}

	resp := statsResponse{Stats: stats}
	if h.Formatter != nil {
		resp.Currency = h.Formatter.Code()
		resp.UnpaidFinesDisplay = h.Formatter.Format(stats.UnpaidFines)
		resp.CollectedFinesDisplay = h.Formatter.Format(stats.CollectedFines)
	}
	jsonResponse(w, http.StatusOK, resp)
}

// Events handles GET /api/events.
func (h *ReportsHandler) Events(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.EventFilter{
		Type:      q.Get("type"),
		Aggregate: q.Get("aggregate"),
	}

	var err error
	if f.AggregateID, err = queryInt64(r, "aggregate_id"); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := queryInt64(r, "limit")
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	f.Limit = int(limit)
	if v := q.Get("since"); v != "" {
		if f.Since, err = time.Parse(time.RFC3339, v); err != nil {
			jsonError(w, http.StatusBadRequest, "invalid since, expected RFC 3339")
			return
		}
	}

	events, err := store.ListEvents(r.Context(), h.DB, f)
	if err != nil {
		slog.Error("failed to list events", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	jsonResponse(w, http.StatusOK, events)
}

// Health handles GET /healthz.
func (h *ReportsHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.DB.PingContext(r.Context()); err != nil {
		slog.Error("health check failed", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}
