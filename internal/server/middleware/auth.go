package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/privileges-api/privileges/internal/model"
	"github.com/privileges-api/privileges/internal/service"
)

type contextKeyAuth string

// AuthPrincipalKey is the context key for the authenticated principal.
const AuthPrincipalKey contextKeyAuth = "auth_principal"

// IntakePath is the webhook endpoint that accepts unauthenticated POSTs.
const IntakePath = "/api/v1/webhooks"

// Authenticator resolves a bearer key into a principal. *service.AuthService
// satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, key, path string) (*model.Principal, error)
}

var publicPaths = map[string]bool{
	"/":               true,
	"/ui":             true,
	"/api/v1/ui":      true,
	"/api/docs":       true,
	"/api/v1/docs":    true,
	"/api/v1/openapi": true,
	"/healthz":        true,
	"/readyz":         true,
}

var publicPrefixes = []string{"/api/v1/ui/", "/swagger-ui", "/static/"}

var publicSuffixes = []string{".js", ".css", ".png", ".ico"}

// IsPublic reports whether a request bypasses the gate entirely.
func IsPublic(method, path string) bool {
	if method == http.MethodOptions {
		return true
	}
	if method == http.MethodPost && path == IntakePath {
		return true
	}
	if publicPaths[path] {
		return true
	}
	for _, p := range publicPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	for _, s := range publicSuffixes {
		if strings.HasSuffix(path, s) {
			return true
		}
	}
	return false
}

// Gate returns the authentication middleware. Public requests pass through
// with no principal; every other request must carry
// "Authorization: Bearer <key>" that the authenticator accepts. The resolved
// principal is stored in the request context for handlers.
func Gate(auth Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsPublic(r.Method, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			key, ok := bearerToken(r)
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "Unauthorized - Bearer token required")
				return
			}

			principal, err := auth.Authenticate(r.Context(), key, r.URL.Path)
			if err != nil {
				status, msg := authFailure(err)
				if status == http.StatusInternalServerError {
					logger.Error("authentication failed",
						"error", err,
						"path", r.URL.Path,
						"request_id", GetRequestID(r.Context()),
					)
				}
				writeAuthError(w, status, msg)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	key := strings.TrimPrefix(h, "Bearer ")
	return key, key != ""
}

func authFailure(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidToken):
		return http.StatusUnauthorized, "Unauthorized - Invalid token"
	case errors.Is(err, service.ErrTokenInactive):
		return http.StatusUnauthorized, "Unauthorized - Token is inactive"
	case errors.Is(err, service.ErrTokenExpired):
		return http.StatusUnauthorized, "Unauthorized - Token is expired"
	case errors.Is(err, service.ErrServiceTokenDenied):
		return http.StatusForbidden, "Forbidden - Service tokens cannot access token management endpoints"
	default:
		return http.StatusInternalServerError, "Server error during authentication"
	}
}

// RequirePermission rejects requests whose principal lacks perm. It must be
// used after Gate.
func RequirePermission(perm model.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := GetPrincipal(r.Context())
			if p == nil {
				writeAuthError(w, http.StatusUnauthorized, "Unauthorized - Bearer token required")
				return
			}
			if !p.Permissions.Has(perm) {
				writeAuthError(w, http.StatusForbidden, "Insufficient permissions: "+string(perm)+" required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// FeatureFlag answers 404 with message while enabled is false.
func FeatureFlag(enabled bool, message string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeAuthError(w, http.StatusNotFound, message)
		})
	}
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *model.Principal) context.Context {
	return context.WithValue(ctx, AuthPrincipalKey, p)
}

// GetPrincipal extracts the authenticated principal from the context.
// Returns nil if no principal is present (i.e., unauthenticated request).
func GetPrincipal(ctx context.Context) *model.Principal {
	if p, ok := ctx.Value(AuthPrincipalKey).(*model.Principal); ok {
		return p
	}
	return nil
}

// writeAuthError writes {"error": message}. It cannot use the handler
// package helpers, which import this package.
func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(model.ErrorResponse{Error: message})
}
