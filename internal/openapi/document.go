// Package openapi builds the OpenAPI 3.1 description of the HTTP API with
// kin-openapi. The webhook payload schema doubles as the intake validator.
package openapi

import (
	"github.com/getkin/kin-openapi/openapi3"
)

// Tags group operations in the rendered UI.
const (
	TagWebhooks  = "Webhooks"
	TagAnalytics = "Analytics"
	TagExports   = "Exports"
	TagTokens    = "Tokens"
)

// OpenAPIVersion is the OpenAPI revision Generate targets.
const OpenAPIVersion = "3.1.0"

// Generate returns the document for the API served at baseURL. An empty
// baseURL omits the servers block.
func Generate(version, baseURL string) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: OpenAPIVersion,
		Info: &openapi3.Info{
			Title:       "Privileges Webhook API",
			Description: "Receives privilege elevation events from Privileges clients on macOS and exposes them for querying, analytics and export.",
			Version:     version,
		},
		Tags: openapi3.Tags{
			{Name: TagWebhooks, Description: "Webhook intake and retrieval"},
			{Name: TagAnalytics, Description: "Aggregates and BI-friendly event listings"},
			{Name: TagExports, Description: "Bulk CSV and JSON downloads"},
			{Name: TagTokens, Description: "API token management"},
		},
	}
	if baseURL != "" {
		doc.Servers = openapi3.Servers{{URL: baseURL}}
	}

	components := openapi3.NewComponents()
	components.Schemas = componentSchemas()
	components.SecuritySchemes = openapi3.SecuritySchemes{
		"bearerAuth": &openapi3.SecuritySchemeRef{
			Value: &openapi3.SecurityScheme{
				Type:         "http",
				Scheme:       "bearer",
				Description:  "A database-issued API token (sk_...) or the environment secret.",
				BearerFormat: "opaque",
			},
		},
	}
	doc.Components = &components
	doc.Security = openapi3.SecurityRequirements{{"bearerAuth": {}}}

	doc.Paths = openapi3.NewPaths()
	addWebhookPaths(doc)
	addAnalyticsPaths(doc)
	addExportPaths(doc)
	addTokenPaths(doc)

	return doc
}

// public marks an operation as not requiring credentials.
var public = &openapi3.SecurityRequirements{}

func addWebhookPaths(doc *openapi3.T) {
	doc.Paths.Set("/api/v1/webhooks", &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags:        []string{TagWebhooks},
			Summary:     "Receive a webhook",
			Description: "Accepts an event from a Privileges client. Missing client metadata is filled from the User-Agent.",
			OperationID: "createWebhook",
			Security:    public,
			RequestBody: jsonBody("Privileges event", ref("WebhookPayload")),
			Responses:   newResponses("200", "Webhook stored", ref("WebhookReceipt"), "400", "500"),
		},
		Get: &openapi3.Operation{
			Tags:        []string{TagWebhooks},
			Summary:     "List webhooks",
			OperationID: "listWebhooks",
			Parameters: openapi3.Parameters{
				intParam("limit", "Page size (1-1000, default 50)"),
				intParam("page", "Page number, starting at 1"),
				stringParam("event", "Only events of this type"),
				boolParam("delayed", "Only delayed (true) or immediate (false) events"),
			},
			Responses: newResponses("200", "Paged webhooks", ref("WebhookList"), "401", "403", "500"),
		},
	})

	doc.Paths.Set("/api/v1/webhooks/{id}", &openapi3.PathItem{
		Parameters: openapi3.Parameters{pathParam("id", "Webhook id")},
		Get: &openapi3.Operation{
			Tags:        []string{TagWebhooks},
			Summary:     "Get a webhook",
			OperationID: "getWebhook",
			Responses:   newResponses("200", "The webhook", ref("Webhook"), "401", "403", "404", "500"),
		},
		Delete: &openapi3.Operation{
			Tags:        []string{TagWebhooks},
			Summary:     "Delete a webhook",
			Description: "Requires the delete permission and the enable_delete_endpoint feature flag.",
			OperationID: "deleteWebhook",
			Responses:   newResponses("200", "Webhook deleted", ref("ActionResult"), "401", "403", "404", "500"),
		},
	})
}

func addAnalyticsPaths(doc *openapi3.T) {
	doc.Paths.Set("/api/v1/analytics/summary", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{TagAnalytics},
			Summary:     "Event totals and top users and reasons",
			OperationID: "analyticsSummary",
			Parameters: openapi3.Parameters{
				enumParam("timeframe", "Window to aggregate over (default week)", "day", "week", "month", "year"),
			},
			Responses: newResponses("200", "Summary", ref("AnalyticsSummary"), "401", "403", "500"),
		},
	})

	events := newResponses("200", "Selected fields of matching events", ref("AnalyticsEvents"), "400", "401", "403", "500")
	addContent(events, "200", "text/csv", openapi3.NewStringSchema())
	doc.Paths.Set("/api/v1/analytics/events", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{TagAnalytics},
			Summary:     "BI-friendly event listing",
			OperationID: "analyticsEvents",
			Parameters: openapi3.Parameters{
				enumParam("period", "Lookback window (default 7d)", "1d", "7d", "30d", "90d", "all"),
				stringParam("fields", "Comma-separated field names"),
				stringParam("filter", `Filter expression, e.g. user eq "jappleseed" and admin eq "true"`),
				intParam("page", "Page number, starting at 1"),
				intParam("pageSize", "Page size (1-1000, default 100)"),
				enumParam("format", "Response format (default json)", "json", "csv"),
				boolParam("delayed", "Only delayed (true) or immediate (false) events"),
			},
			Responses: events,
		},
	})
}

func addExportPaths(doc *openapi3.T) {
	params := openapi3.Parameters{
		enumParam("period", "Lookback window (default 7d)", "7d", "14d", "30d", "90d", "180d", "all"),
		stringParam("event", "Only events of this type"),
	}

	csv := newResponses("200", "CSV file", nil, "401", "403", "500")
	addContent(csv, "200", "text/csv", openapi3.NewStringSchema())
	doc.Paths.Set("/api/v1/exports/csv", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{TagExports},
			Summary:     "Export webhooks as CSV",
			OperationID: "exportCSV",
			Parameters:  params,
			Responses:   csv,
		},
	})

	doc.Paths.Set("/api/v1/exports/json", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{TagExports},
			Summary:     "Export webhooks as JSON",
			OperationID: "exportJSON",
			Parameters:  params,
			Responses: newResponses("200", "JSON file",
				inline(&openapi3.Schema{Type: &openapi3.Types{"array"}, Items: ref("Webhook")}),
				"401", "403", "500"),
		},
	})
}

func addTokenPaths(doc *openapi3.T) {
	doc.Paths.Set("/api/v1/tokens", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{TagTokens},
			Summary:     "List tokens",
			OperationID: "listTokens",
			Responses:   newResponses("200", "All tokens, newest first", ref("TokenList"), "401", "403", "500"),
		},
		Post: &openapi3.Operation{
			Tags:        []string{TagTokens},
			Summary:     "Create a token",
			Description: "The key is returned once and cannot be retrieved again.",
			OperationID: "createToken",
			RequestBody: jsonBody("Token to create", ref("TokenCreateRequest")),
			Responses:   newResponses("201", "Token created", ref("CreatedToken"), "400", "401", "403", "500"),
		},
	})

	doc.Paths.Set("/api/v1/tokens/{id}", &openapi3.PathItem{
		Parameters: openapi3.Parameters{pathParam("id", "Token id")},
		Get: &openapi3.Operation{
			Tags:        []string{TagTokens},
			Summary:     "Get a token",
			OperationID: "getToken",
			Responses:   newResponses("200", "The token", ref("Token"), "401", "403", "404", "500"),
		},
		Delete: &openapi3.Operation{
			Tags:        []string{TagTokens},
			Summary:     "Revoke or delete a token",
			OperationID: "revokeToken",
			Parameters: openapi3.Parameters{
				enumParam("action", "revoke (default) deactivates, delete removes permanently", "revoke", "delete"),
			},
			Responses: newResponses("200", "Action applied", ref("ActionResult"), "400", "401", "403", "404", "500"),
		},
	})
}

// ─── Builders ───────────────────────────────────────────────────────────────

var errorDescriptions = map[string]string{
	"400": "Bad request",
	"401": "Unauthorized",
	"403": "Forbidden",
	"404": "Not found",
	"500": "Internal server error",
}

// newResponses builds a success response plus the listed error responses.
// A nil schema leaves the success response without JSON content.
func newResponses(status, description string, schema *openapi3.SchemaRef, errorCodes ...string) *openapi3.Responses {
	responses := openapi3.NewResponsesWithCapacity(1 + len(errorCodes))

	success := &openapi3.Response{Description: &description}
	if schema != nil {
		success.Content = openapi3.NewContentWithJSONSchemaRef(schema)
	}
	responses.Set(status, &openapi3.ResponseRef{Value: success})

	for _, code := range errorCodes {
		desc := errorDescriptions[code]
		responses.Set(code, &openapi3.ResponseRef{
			Value: &openapi3.Response{
				Description: &desc,
				Content:     openapi3.NewContentWithJSONSchemaRef(ref("ErrorResponse")),
			},
		})
	}
	return responses
}

func addContent(responses *openapi3.Responses, status, mediaType string, schema *openapi3.Schema) {
	r := responses.Value(status)
	if r == nil || r.Value == nil {
		return
	}
	if r.Value.Content == nil {
		r.Value.Content = openapi3.Content{}
	}
	r.Value.Content[mediaType] = openapi3.NewMediaType().WithSchema(schema)
}

func jsonBody(description string, schema *openapi3.SchemaRef) *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{
		Value: &openapi3.RequestBody{
			Description: description,
			Required:    true,
			Content:     openapi3.NewContentWithJSONSchemaRef(schema),
		},
	}
}

func pathParam(name, description string) *openapi3.ParameterRef {
	return &openapi3.ParameterRef{
		Value: openapi3.NewPathParameter(name).
			WithDescription(description).
			WithSchema(openapi3.NewStringSchema()),
	}
}

func stringParam(name, description string) *openapi3.ParameterRef {
	return &openapi3.ParameterRef{
		Value: openapi3.NewQueryParameter(name).
			WithDescription(description).
			WithSchema(openapi3.NewStringSchema()),
	}
}

func intParam(name, description string) *openapi3.ParameterRef {
	return &openapi3.ParameterRef{
		Value: openapi3.NewQueryParameter(name).
			WithDescription(description).
			WithSchema(openapi3.NewIntegerSchema()),
	}
}

func boolParam(name, description string) *openapi3.ParameterRef {
	return &openapi3.ParameterRef{
		Value: openapi3.NewQueryParameter(name).
			WithDescription(description).
			WithSchema(openapi3.NewBoolSchema()),
	}
}

func enumParam(name, description string, values ...any) *openapi3.ParameterRef {
	return &openapi3.ParameterRef{
		Value: openapi3.NewQueryParameter(name).
			WithDescription(description).
			WithSchema(openapi3.NewStringSchema().WithEnum(values...)),
	}
}
