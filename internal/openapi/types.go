package openapi

import (
	"github.com/getkin/kin-openapi/openapi3"

	"github.com/privileges-api/privileges/internal/query"
)

// TypeMapping pairs an OpenAPI type with an optional format.
type TypeMapping struct {
	Type   string // string, integer, number, boolean, object, array
	Format string // date-time, int64, ...
}

// fieldTypes maps event catalog types to OpenAPI types.
var fieldTypes = map[string]TypeMapping{
	"string":  {"string", ""},
	"boolean": {"boolean", ""},
	"number":  {"integer", "int32"},
	"object":  {"object", ""},
}

// timeFields carry RFC 3339 timestamps.
var timeFields = map[string]bool{
	"timestamp":   true,
	"expires":     true,
	"received_at": true,
	"created_at":  true,
}

// MapField returns the OpenAPI type of a catalog field. Unknown types fall
// back to string.
func MapField(f query.Field) TypeMapping {
	m, ok := fieldTypes[f.Type]
	if !ok {
		m = TypeMapping{Type: "string"}
	}
	if timeFields[f.Name] {
		m.Format = "date-time"
	}
	return m
}

func fieldSchema(f query.Field) *openapi3.Schema {
	m := MapField(f)
	s := &openapi3.Schema{
		Type:        &openapi3.Types{m.Type},
		Format:      m.Format,
		Description: f.Description,
	}
	switch f.Name {
	case "expires", "cf_network_version", "os_version":
		s.Nullable = true
	}
	return s
}
