package openapi

import (
	"github.com/getkin/kin-openapi/openapi3"

	"github.com/privileges-api/privileges/internal/model"
	"github.com/privileges-api/privileges/internal/query"
	"github.com/privileges-api/privileges/internal/token"
)

func ref(name string) *openapi3.SchemaRef {
	return openapi3.NewSchemaRef("#/components/schemas/"+name, nil)
}

func inline(s *openapi3.Schema) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: s}
}

func withExample(s *openapi3.Schema, example any) *openapi3.Schema {
	s.Example = example
	return s
}

// WebhookSchema describes the body a Privileges client posts to the intake
// endpoint. It is used both in the published document and to validate
// incoming payloads, so the two cannot drift apart.
func WebhookSchema() *openapi3.Schema {
	nonEmpty := func(example string) *openapi3.Schema {
		return withExample(openapi3.NewStringSchema().WithMinLength(1), example)
	}
	return &openapi3.Schema{
		Type:     &openapi3.Types{"object"},
		Required: []string{"user", "machine", "event", "reason", "admin", "timestamp"},
		Properties: openapi3.Schemas{
			"id":      inline(openapi3.NewStringSchema().WithFormat("uuid")),
			"user":    inline(nonEmpty("jappleseed")),
			"machine": inline(nonEmpty("A7B45C3D-8F12-4E56-9D23-F1A8B7C6D5E4")),
			"event": inline(withExample(
				openapi3.NewStringSchema().WithEnum(model.EventGranted, model.EventRevoked),
				model.EventGranted,
			)),
			"reason":      inline(nonEmpty("Installing software")),
			"admin":       inline(withExample(openapi3.NewBoolSchema(), true)),
			"timestamp":   inline(withExample(openapi3.NewDateTimeSchema(), "2025-04-25T12:23:30Z")),
			"expires":     inline(withExample(openapi3.NewDateTimeSchema(), "2025-04-25T12:28:30Z")),
			"received_at": inline(openapi3.NewDateTimeSchema()),
			"created_at":  inline(openapi3.NewDateTimeSchema()),
			"custom_data": inline(withExample(openapi3.NewObjectSchema(), map[string]any{
				"department": "Developer",
				"name":       "My awesome Mac",
				"os_version": "15.4.1",
				"serial":     "XYZ1234567",
			})),
			"client_version":     inline(withExample(openapi3.NewIntegerSchema(), 479)),
			"platform":           inline(nonEmpty("macOS")),
			"cf_network_version": inline(withExample(openapi3.NewStringSchema(), "3826.500.111.1.1")),
			"os_version":         inline(withExample(openapi3.NewStringSchema(), "24.4.0")),
			"delayed":            inline(openapi3.NewBoolSchema().WithDefault(false)),
		},
	}
}

// eventSchema is the stored representation, built from the analytics field
// catalog.
func eventSchema() *openapi3.Schema {
	props := openapi3.Schemas{}
	var required []string
	for _, f := range query.Fields() {
		props[f.Name] = inline(fieldSchema(f))
		if !fieldSchema(f).Nullable {
			required = append(required, f.Name)
		}
	}
	return &openapi3.Schema{
		Type:       &openapi3.Types{"object"},
		Properties: props,
		Required:   required,
	}
}

func permissionsSchema() *openapi3.Schema {
	flag := func(desc string) *openapi3.SchemaRef {
		s := openapi3.NewBoolSchema()
		s.Description = desc
		return inline(s)
	}
	return &openapi3.Schema{
		Type: &openapi3.Types{"object"},
		Properties: openapi3.Schemas{
			"read":             flag("Permission to read data"),
			"write":            flag("Permission to write data"),
			"delete":           flag("Permission to delete webhooks"),
			"token_management": flag("Permission to create, list and revoke tokens"),
		},
	}
}

func unixSchema(nullable bool) *openapi3.SchemaRef {
	s := openapi3.NewInt64Schema()
	s.Description = "Unix timestamp in seconds"
	s.Nullable = nullable
	return inline(s)
}

func tokenSchema() *openapi3.Schema {
	return &openapi3.Schema{
		Type: &openapi3.Types{"object"},
		Properties: openapi3.Schemas{
			"id":               inline(openapi3.NewStringSchema().WithFormat("uuid")),
			"name":             inline(openapi3.NewStringSchema()),
			"description":      inline(openapi3.NewStringSchema().WithNullable()),
			"key_prefix":       inline(withExample(openapi3.NewStringSchema(), "sk_a1B2c3D4")),
			"created_at":       unixSchema(false),
			"last_used_at":     unixSchema(true),
			"expires_at":       unixSchema(true),
			"is_active":        inline(openapi3.NewBoolSchema()),
			"is_service_token": inline(openapi3.NewBoolSchema()),
			"permissions":      ref("Permissions"),
		},
	}
}

func durationEnum() []any {
	out := make([]any, len(token.Durations))
	for i, d := range token.Durations {
		out[i] = d
	}
	return out
}

func tokenCreateSchema() *openapi3.Schema {
	return &openapi3.Schema{
		Type:     &openapi3.Types{"object"},
		Required: []string{"name", "expires_in"},
		Properties: openapi3.Schemas{
			"name":             inline(withExample(openapi3.NewStringSchema().WithMinLength(1), "Analytics Token")),
			"description":      inline(openapi3.NewStringSchema()),
			"expires_in":       inline(withExample(openapi3.NewStringSchema().WithEnum(durationEnum()...), "30d")),
			"permissions":      ref("Permissions"),
			"is_service_token": inline(openapi3.NewBoolSchema().WithDefault(false)),
		},
	}
}

func createdTokenSchema() *openapi3.Schema {
	s := tokenSchema()
	delete(s.Properties, "key_prefix")
	delete(s.Properties, "last_used_at")
	delete(s.Properties, "is_active")
	token := openapi3.NewStringSchema()
	token.Description = "The API key. It is only shown once."
	s.Properties["token"] = inline(token)
	s.Properties["expires_in"] = inline(openapi3.NewStringSchema())
	return s
}

func countsSchema(key string) *openapi3.Schema {
	item := &openapi3.Schema{
		Type: &openapi3.Types{"object"},
		Properties: openapi3.Schemas{
			key:     inline(openapi3.NewStringSchema()),
			"count": inline(openapi3.NewInt64Schema()),
		},
	}
	return openapi3.NewArraySchema().WithItems(item)
}

func componentSchemas() openapi3.Schemas {
	return openapi3.Schemas{
		"ErrorResponse": inline(&openapi3.Schema{
			Type:     &openapi3.Types{"object"},
			Required: []string{"error"},
			Properties: openapi3.Schemas{
				"error":     inline(openapi3.NewStringSchema()),
				"message":   inline(openapi3.NewStringSchema()),
				"details":   inline(&openapi3.Schema{}),
				"requestId": inline(openapi3.NewStringSchema()),
			},
		}),
		"WebhookPayload": inline(WebhookSchema()),
		"Webhook":        inline(eventSchema()),
		"WebhookReceipt": inline(&openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"id":          inline(openapi3.NewStringSchema().WithFormat("uuid")),
				"received_at": inline(openapi3.NewDateTimeSchema()),
			},
		}),
		"Pagination": inline(&openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"total": inline(openapi3.NewInt64Schema()),
				"page":  inline(openapi3.NewIntegerSchema()),
				"limit": inline(openapi3.NewIntegerSchema()),
				"pages": inline(openapi3.NewIntegerSchema()),
			},
		}),
		"WebhookList": inline(&openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"data":       inline(&openapi3.Schema{Type: &openapi3.Types{"array"}, Items: ref("Webhook")}),
				"pagination": ref("Pagination"),
			},
		}),
		"AnalyticsSummary": inline(&openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"timeframe":  inline(openapi3.NewStringSchema().WithEnum("day", "week", "month", "year")),
				"total":      inline(openapi3.NewInt64Schema()),
				"events":     inline(countsSchema("event")),
				"topUsers":   inline(countsSchema("user")),
				"topReasons": inline(countsSchema("reason")),
			},
		}),
		"AnalyticsEvents": inline(&openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"metadata": inline(&openapi3.Schema{
					Type: &openapi3.Types{"object"},
					Properties: openapi3.Schemas{
						"totalRecords": inline(openapi3.NewInt64Schema()),
						"pageCount":    inline(openapi3.NewIntegerSchema()),
						"currentPage":  inline(openapi3.NewIntegerSchema()),
						"pageSize":     inline(openapi3.NewIntegerSchema()),
						"schema": inline(openapi3.NewArraySchema().WithItems(&openapi3.Schema{
							Type: &openapi3.Types{"object"},
							Properties: openapi3.Schemas{
								"name":        inline(openapi3.NewStringSchema()),
								"type":        inline(openapi3.NewStringSchema()),
								"description": inline(openapi3.NewStringSchema()),
							},
						})),
					},
				}),
				"data": inline(openapi3.NewArraySchema().WithItems(openapi3.NewObjectSchema())),
			},
		}),
		"Permissions":        inline(permissionsSchema()),
		"Token":              inline(tokenSchema()),
		"TokenCreateRequest": inline(tokenCreateSchema()),
		"CreatedToken":       inline(createdTokenSchema()),
		"TokenList": inline(&openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"tokens": inline(&openapi3.Schema{Type: &openapi3.Types{"array"}, Items: ref("Token")}),
			},
		}),
		"ActionResult": inline(&openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"success": inline(openapi3.NewBoolSchema()),
				"message": inline(openapi3.NewStringSchema()),
			},
		}),
	}
}
