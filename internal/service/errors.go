// Package service holds the rules that sit between the HTTP layer and the
// store: credential resolution, token lifecycle and webhook intake.
package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

var (
	ErrInvalidToken         = errors.New("invalid token")
	ErrTokenInactive        = errors.New("token is inactive")
	ErrTokenExpired         = errors.New("token is expired")
	ErrServiceTokenDenied   = errors.New("service tokens cannot access token management endpoints")
	ErrSelfOperation        = errors.New("cannot modify your own token")
	ErrPermissionEscalation = errors.New("cannot grant permissions the caller does not hold")
	ErrInvalidExpiration    = errors.New("expiration time must be in the future")
	ErrValidation           = errors.New("validation failed")
)

// Intake failure reasons, used verbatim as the error field of 400 responses.
const (
	ReasonInvalidJSON = "Invalid JSON payload"
	ReasonValidation  = "Validation failed"
)

// IntakeError rejects a webhook body. Detail is safe to echo to the client.
type IntakeError struct {
	Reason string
	Detail any
}

func (e *IntakeError) Error() string {
	return fmt.Sprintf("%s: %v", e.Reason, e.Detail)
}

// Is makes every IntakeError match ErrValidation.
func (e *IntakeError) Is(target error) bool {
	return target == ErrValidation
}

// FieldError locates a schema violation in the payload.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func schemaDetail(err error) any {
	var se *openapi3.SchemaError
	if errors.As(err, &se) {
		return []FieldError{{Field: strings.Join(se.JSONPointer(), "."), Reason: se.Reason}}
	}
	return err.Error()
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}
