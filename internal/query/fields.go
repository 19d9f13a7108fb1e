package query

import (
	"strings"

	"github.com/privileges-api/privileges/internal/model"
)

// Field is one selectable, filterable attribute of a stored event.
type Field struct {
	Name        string
	Column      string
	Type        string
	Description string
}

var catalog = []Field{
	{"id", "id", "string", "Webhook unique identifier"},
	{"user", "username", "string", "User identifier"},
	{"machine", "machine", "string", "Machine identifier"},
	{"event", "event", "string", "Event type"},
	{"reason", "reason", "string", "Reason for privilege change"},
	{"admin", "admin", "boolean", "Whether admin privileges were granted"},
	{"timestamp", "event_timestamp", "string", "Event timestamp"},
	{"delayed", "is_delayed", "boolean", "Whether event was delayed"},
	{"expires", "expires", "string", "Expiration timestamp"},
	{"received_at", "received_at", "string", "When webhook was received"},
	{"custom_data", "custom_data", "object", "Custom data including machine name, OS version, and serial"},
	{"client_version", "client_version", "number", "Client version"},
	{"platform", "platform", "string", "Platform (e.g., macOS)"},
	{"cf_network_version", "cf_network_version", "string", "CF Network version"},
	{"os_version", "os_version", "string", "OS version"},
	{"created_at", "created_at", "string", "Creation timestamp"},
}

var byName = func() map[string]Field {
	m := make(map[string]Field, len(catalog))
	for _, f := range catalog {
		m[f.Name] = f
	}
	return m
}()

// defaultSelection is used when a fields parameter names nothing known.
var defaultSelection = []string{
	"id", "user", "machine", "event", "reason", "admin", "timestamp", "delayed", "custom_data",
}

// Fields returns the full catalog in its canonical order.
func Fields() []Field {
	out := make([]Field, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup finds a catalog field by its public name.
func Lookup(name string) (Field, bool) {
	f, ok := byName[name]
	return f, ok
}

// SelectFields resolves a comma-separated fields parameter. Unknown names are
// dropped; an empty parameter selects everything; a parameter that names
// nothing known falls back to the default selection.
func SelectFields(param string) []Field {
	if strings.TrimSpace(param) == "" {
		return Fields()
	}
	var out []Field
	seen := make(map[string]bool)
	for _, name := range strings.Split(param, ",") {
		name = strings.TrimSpace(name)
		f, ok := byName[name]
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, f)
	}
	if len(out) == 0 {
		for _, name := range defaultSelection {
			out = append(out, byName[name])
		}
	}
	return out
}

// Names returns the public names of fields in order.
func Names(fields []Field) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Name
	}
	return out
}

// Schema describes fields for BI clients.
func Schema(fields []Field) []model.FieldSchema {
	out := make([]model.FieldSchema, len(fields))
	for i, f := range fields {
		out[i] = model.FieldSchema{Name: f.Name, Type: f.Type, Description: f.Description}
	}
	return out
}

// Project reduces an event to the selected fields.
func Project(e model.Event, fields []Field) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		out[f.Name] = Value(e, f.Name)
	}
	return out
}

// Value returns the named field of e as it appears in API output. Nullable
// fields come back as nil.
func Value(e model.Event, name string) any {
	switch name {
	case "id":
		return e.ID
	case "user":
		return e.User
	case "machine":
		return e.Machine
	case "event":
		return e.Event
	case "reason":
		return e.Reason
	case "admin":
		return e.Admin
	case "timestamp":
		return e.Timestamp
	case "delayed":
		return e.Delayed
	case "expires":
		return deref(e.Expires)
	case "received_at":
		return e.ReceivedAt
	case "custom_data":
		if e.CustomData == nil {
			return map[string]any{}
		}
		return e.CustomData
	case "client_version":
		return e.ClientVersion
	case "platform":
		return e.Platform
	case "cf_network_version":
		return deref(e.CFNetworkVersion)
	case "os_version":
		return deref(e.OSVersion)
	case "created_at":
		return e.CreatedAt
	default:
		return nil
	}
}

func deref(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
