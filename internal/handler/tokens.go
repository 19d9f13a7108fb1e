package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/privileges-api/privileges/internal/model"
	"github.com/privileges-api/privileges/internal/server/middleware"
	"github.com/privileges-api/privileges/internal/service"
	"github.com/privileges-api/privileges/internal/token"
)

// TokenHandler manages database-issued API tokens. Every route requires the
// token_management permission, enforced by middleware.
type TokenHandler struct {
	tokens *service.TokenService
	logger *slog.Logger
}

// NewTokenHandler creates a TokenHandler.
func NewTokenHandler(tokens *service.TokenService, logger *slog.Logger) *TokenHandler {
	return &TokenHandler{tokens: tokens, logger: logger}
}

// List returns every token without key material.
// GET /api/v1/tokens
func (h *TokenHandler) List(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.tokens.List(r.Context())
	if err != nil {
		h.logger.Error("list tokens", "error", err, "request_id", requestID(r))
		writeError(w, http.StatusInternalServerError, "Server error listing tokens")
		return
	}
	if tokens == nil {
		tokens = []model.Token{}
	}
	writeJSON(w, http.StatusOK, model.TokenList{Tokens: tokens})
}

// Get returns one token.
// GET /api/v1/tokens/{id}
func (h *TokenHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.tokens.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if service.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Token not found")
			return
		}
		h.logger.Error("get token", "error", err, "request_id", requestID(r))
		writeError(w, http.StatusInternalServerError, "Server error getting token")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// Create issues a token and returns its key exactly once.
// POST /api/v1/tokens
func (h *TokenHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.TokenCreateRequest
	if err := readJSON(r, &req); err != nil {
		writeErrorBody(w, http.StatusBadRequest, model.ErrorResponse{
			Error:   "Invalid token data",
			Details: err.Error(),
		})
		return
	}
	// Raw timestamps are an operator escape hatch; the API only takes codes.
	if !token.IsKnownDuration(req.ExpiresIn) {
		writeErrorBody(w, http.StatusBadRequest, model.ErrorResponse{
			Error:   "Invalid token data",
			Details: "expires_in must be one of " + strings.Join(token.Durations, ", "),
		})
		return
	}

	created, err := h.tokens.Create(r.Context(), middleware.GetPrincipal(r.Context()), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			writeErrorBody(w, http.StatusBadRequest, model.ErrorResponse{
				Error:   "Invalid token data",
				Details: strings.TrimPrefix(err.Error(), service.ErrValidation.Error()+": "),
			})
		case errors.Is(err, service.ErrPermissionEscalation):
			writeError(w, http.StatusForbidden, "Cannot grant permissions you do not hold")
		case errors.Is(err, service.ErrInvalidExpiration):
			writeErrorBody(w, http.StatusBadRequest, model.ErrorResponse{
				Error:   "Invalid expiration time",
				Message: "Expiration time must be in the future",
			})
		default:
			h.logger.Error("create token", "error", err, "request_id", requestID(r))
			writeErrorBody(w, http.StatusInternalServerError, model.ErrorResponse{
				Error:   "Database error",
				Message: "Error storing token in database",
			})
		}
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// Manage revokes (default) or permanently deletes a token, selected by the
// action query parameter. A caller can never act on its own token.
// DELETE /api/v1/tokens/{id}
func (h *TokenHandler) Manage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	action := service.ParseAction(queryString(r, "action", string(service.ActionRevoke)))

	res, err := h.tokens.Apply(r.Context(), middleware.GetPrincipal(r.Context()), id, action)
	if err != nil {
		switch {
		case service.IsNotFound(err):
			writeError(w, http.StatusNotFound, "Token not found")
		case errors.Is(err, service.ErrSelfOperation):
			writeError(w, http.StatusBadRequest, "Cannot modify your own token")
		default:
			h.logger.Error("manage token", "error", err, "token_id", id, "request_id", requestID(r))
			writeErrorBody(w, http.StatusInternalServerError, model.ErrorResponse{
				Error:   "Database error",
				Message: "Error updating token in database",
			})
		}
		return
	}
	writeJSON(w, http.StatusOK, res)
}
