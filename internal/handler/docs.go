package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Documentation routes.
const (
	OpenAPIPath = "/api/v1/openapi"
	UIPath      = "/api/v1/ui"
)

// DocsHandler serves the OpenAPI document and the Swagger UI that renders it.
type DocsHandler struct {
	document []byte
	ui       http.HandlerFunc
}

// NewDocsHandler renders doc once; it does not change at runtime.
func NewDocsHandler(doc *openapi3.T) (*DocsHandler, error) {
	document, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal openapi document: %w", err)
	}
	return &DocsHandler{
		document: document,
		ui: httpSwagger.Handler(
			httpSwagger.URL(OpenAPIPath),
			httpSwagger.DocExpansion("list"),
			httpSwagger.PersistAuthorization(true),
		),
	}, nil
}

// OpenAPI serves the API description.
// GET /api/v1/openapi
func (h *DocsHandler) OpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(h.document)
}

// UI serves Swagger UI assets under /api/v1/ui/.
// GET /api/v1/ui/*
func (h *DocsHandler) UI(w http.ResponseWriter, r *http.Request) {
	h.ui(w, r)
}

// RedirectToUI sends documentation aliases to the Swagger UI index.
func RedirectToUI(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, UIPath+"/index.html", http.StatusFound)
}
