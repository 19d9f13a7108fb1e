package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/privileges-api/privileges/internal/export"
	"github.com/privileges-api/privileges/internal/query"
	"github.com/privileges-api/privileges/internal/service"
)

// ExportHandler serves bulk downloads of stored events.
type ExportHandler struct {
	events *service.EventService
	logger *slog.Logger
}

// NewExportHandler creates an ExportHandler.
func NewExportHandler(events *service.EventService, logger *slog.Logger) *ExportHandler {
	return &ExportHandler{events: events, logger: logger}
}

// CSV streams every matching event as CSV.
// GET /api/v1/exports/csv
func (h *ExportHandler) CSV(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.Export(r.Context(),
		queryString(r, "period", query.DefaultPeriod), queryString(r, "event", ""))
	if err != nil {
		h.logger.Error("export csv", "error", err, "request_id", requestID(r))
		writeError(w, http.StatusInternalServerError, "Failed to export data as CSV")
		return
	}
	attachment(w, "text/csv", "webhooks-export.csv")
	if err := export.WriteEvents(w, events); err != nil {
		h.logger.Error("write export csv", "error", err, "request_id", requestID(r))
	}
}

// JSON returns every matching event as a JSON array.
// GET /api/v1/exports/json
func (h *ExportHandler) JSON(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.Export(r.Context(),
		queryString(r, "period", query.DefaultPeriod), queryString(r, "event", ""))
	if err != nil {
		h.logger.Error("export json", "error", err, "request_id", requestID(r))
		writeError(w, http.StatusInternalServerError, "Failed to export data as JSON")
		return
	}
	attachment(w, "application/json", "webhooks-export.json")
	json.NewEncoder(w).Encode(events)
}
