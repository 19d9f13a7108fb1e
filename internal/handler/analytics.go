package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/privileges-api/privileges/internal/export"
	"github.com/privileges-api/privileges/internal/query"
	"github.com/privileges-api/privileges/internal/service"
)

// AnalyticsHandler serves aggregate and row-level views of stored events.
type AnalyticsHandler struct {
	events *service.EventService
	logger *slog.Logger
}

// NewAnalyticsHandler creates an AnalyticsHandler.
func NewAnalyticsHandler(events *service.EventService, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{events: events, logger: logger}
}

// Summary returns event totals and the top users and reasons.
// GET /api/v1/analytics/summary
func (h *AnalyticsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.events.Summary(r.Context(), queryString(r, "timeframe", query.DefaultTimeframe))
	if err != nil {
		h.logger.Error("analytics summary", "error", err, "request_id", requestID(r))
		writeError(w, http.StatusInternalServerError, "Failed to generate analytics")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// Events returns a page of projected events for BI tools, as JSON or CSV.
// GET /api/v1/analytics/events
func (h *AnalyticsHandler) Events(w http.ResponseWriter, r *http.Request) {
	res, err := h.events.Analytics(r.Context(), service.AnalyticsParams{
		Period:   queryString(r, "period", query.DefaultPeriod),
		Fields:   queryString(r, "fields", ""),
		Filter:   queryString(r, "filter", ""),
		Page:     queryInt(r, "page", 1),
		PageSize: queryInt(r, "pageSize", service.DefaultPageSize),
		Delayed:  queryTriState(r, "delayed"),
	})
	if err != nil {
		if errors.Is(err, query.ErrInvalidFilter) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error":   "Invalid filter expression",
				"message": err.Error(),
			})
			return
		}
		h.logger.Error("analytics events", "error", err, "request_id", requestID(r))
		writeError(w, http.StatusInternalServerError, "Failed to generate analytics")
		return
	}

	if queryString(r, "format", "json") == "csv" {
		attachment(w, "text/csv", "analytics_export.csv")
		if err := export.WriteRows(w, res.Fields, res.Page.Data); err != nil {
			h.logger.Error("write analytics csv", "error", err, "request_id", requestID(r))
		}
		return
	}
	writeJSON(w, http.StatusOK, res.Page)
}
