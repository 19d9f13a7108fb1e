// Package handler implements the HTTP endpoints of the Privileges API.
// Handlers translate requests into service calls and service errors into
// JSON responses; authentication and permission checks happen in
// middleware before a handler runs.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/privileges-api/privileges/internal/model"
	"github.com/privileges-api/privileges/internal/server/middleware"
)

// writeJSON serializes v as JSON and writes it to the response with the given
// HTTP status code. The Content-Type header is set to application/json.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes {"error": message}.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, model.ErrorResponse{Error: message})
}

// writeErrorBody writes a full error envelope.
func writeErrorBody(w http.ResponseWriter, status int, body model.ErrorResponse) {
	writeJSON(w, status, body)
}

// readJSON decodes the request body as JSON into v. The body is closed after
// decoding regardless of success or failure.
func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// attachment marks the response as a download named filename.
func attachment(w http.ResponseWriter, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
}

// queryInt extracts an integer query parameter, returning defaultVal if the
// parameter is missing or cannot be parsed.
func queryInt(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// queryString extracts a string query parameter, returning defaultVal when
// it is absent or empty.
func queryString(r *http.Request, key, defaultVal string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return defaultVal
}

// queryTriState reads a boolean filter. Only the literals "true" and "false"
// count; anything else means the filter is not applied.
func queryTriState(r *http.Request, key string) *bool {
	var v bool
	switch r.URL.Query().Get(key) {
	case "true":
		v = true
	case "false":
		v = false
	default:
		return nil
	}
	return &v
}

func requestID(r *http.Request) string {
	return middleware.GetRequestID(r.Context())
}
