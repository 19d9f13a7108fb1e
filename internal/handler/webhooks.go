package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/privileges-api/privileges/internal/model"
	"github.com/privileges-api/privileges/internal/service"
)

// WebhookHandler receives events from endpoint agents and serves them back
// to API clients.
type WebhookHandler struct {
	events      *service.EventService
	maxBodySize int64
	logger      *slog.Logger
}

// NewWebhookHandler creates a WebhookHandler. Intake bodies larger than
// maxBodySize bytes are rejected.
func NewWebhookHandler(events *service.EventService, maxBodySize int64, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{events: events, maxBodySize: maxBodySize, logger: logger}
}

// Receive stores one webhook. It is the only write endpoint that needs no
// credential.
// POST /api/v1/webhooks
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorBody(w, http.StatusRequestEntityTooLarge, model.ErrorResponse{
				Error:     "Payload too large",
				RequestID: reqID,
			})
			return
		}
		writeErrorBody(w, http.StatusBadRequest, model.ErrorResponse{
			Error:     service.ReasonInvalidJSON,
			Details:   err.Error(),
			RequestID: reqID,
		})
		return
	}

	receipt, err := h.events.Ingest(r.Context(), body, r.UserAgent())
	if err != nil {
		var ie *service.IntakeError
		if errors.As(err, &ie) {
			h.logger.Warn("webhook rejected",
				"reason", ie.Reason,
				"details", ie.Detail,
				"user_agent", r.UserAgent(),
				"request_id", reqID,
			)
			writeErrorBody(w, http.StatusBadRequest, model.ErrorResponse{
				Error:     ie.Reason,
				Details:   ie.Detail,
				RequestID: reqID,
			})
			return
		}
		h.logger.Error("webhook not stored", "error", err, "request_id", reqID)
		writeErrorBody(w, http.StatusInternalServerError, model.ErrorResponse{
			Error:     "Database operation failed",
			RequestID: reqID,
		})
		return
	}

	writeJSON(w, http.StatusOK, receipt)
}

// List returns a page of stored webhooks, newest first.
// GET /api/v1/webhooks
func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.events.List(r.Context(), service.ListParams{
		Page:    queryInt(r, "page", 1),
		Limit:   queryInt(r, "limit", service.DefaultListLimit),
		Event:   queryString(r, "event", ""),
		Delayed: queryTriState(r, "delayed"),
	})
	if err != nil {
		h.logger.Error("list webhooks", "error", err, "request_id", requestID(r))
		writeError(w, http.StatusInternalServerError, "Failed to retrieve webhooks")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Get returns one webhook.
// GET /api/v1/webhooks/{id}
func (h *WebhookHandler) Get(w http.ResponseWriter, r *http.Request) {
	e, err := h.events.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if service.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Webhook not found")
			return
		}
		h.logger.Error("get webhook", "error", err, "request_id", requestID(r))
		writeError(w, http.StatusInternalServerError, "Failed to retrieve webhook")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// Delete removes one webhook. The route is only mounted behind the delete
// feature flag.
// DELETE /api/v1/webhooks/{id}
func (h *WebhookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.events.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		if service.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Webhook not found")
			return
		}
		h.logger.Error("delete webhook", "error", err, "request_id", requestID(r))
		writeError(w, http.StatusInternalServerError, "Failed to delete webhook")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Webhook deleted successfully"})
}
