package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/privileges-api/privileges/internal/query"
)

// FieldsURI names the resource describing the event field catalog.
const FieldsURI = "privileges://fields"

// registerResources adds MCP resource definitions to the server. Resources
// provide read-only data that LLM clients can load into their context.
func (s *MCPServer) registerResources(srv *server.MCPServer) {
	srv.AddResource(
		mcp.NewResource(
			FieldsURI,
			"Event Fields",
			mcp.WithResourceDescription(
				"Every field of a stored privilege event with its type and meaning. "+
					"These names are valid in the fields and filter arguments of "+ToolQueryEvents+".",
			),
			mcp.WithMIMEType("application/json"),
		),
		s.handleFieldsResource,
	)
}

func (s *MCPServer) handleFieldsResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {

	b, err := json.MarshalIndent(query.Schema(query.Fields()), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal fields: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      FieldsURI,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}
