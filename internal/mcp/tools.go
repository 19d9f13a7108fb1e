package mcp

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/privileges-api/privileges/internal/model"
	"github.com/privileges-api/privileges/internal/query"
	"github.com/privileges-api/privileges/internal/service"
)

// Tool names.
const (
	ToolListEvents       = "privileges_list_events"
	ToolGetEvent         = "privileges_get_event"
	ToolAnalyticsSummary = "privileges_analytics_summary"
	ToolQueryEvents      = "privileges_query_events"
)

// registerTools registers all Privileges MCP tools on the given server.
func (s *MCPServer) registerTools(srv *server.MCPServer) {
	srv.AddTool(
		mcp.NewTool(ToolListEvents,
			mcp.WithDescription(
				"List privilege elevation events reported by Privileges clients, newest first. "+
					"Each event records who requested admin rights, on which machine, why, and when.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithNumber("limit",
				mcp.Description("Events per page (default 50, max 1000)"),
			),
			mcp.WithNumber("page",
				mcp.Description("Page number starting at 1"),
			),
			mcp.WithString("event",
				mcp.Description("Only return events of this type"),
				mcp.Enum(model.EventGranted, model.EventRevoked),
			),
			mcp.WithBoolean("delayed",
				mcp.Description("Only return events that were (true) or were not (false) delivered late"),
			),
		),
		s.handleListEvents,
	)

	srv.AddTool(
		mcp.NewTool(ToolGetEvent,
			mcp.WithDescription("Fetch a single privilege event by its id."),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("Event id as returned by "+ToolListEvents),
			),
		),
		s.handleGetEvent,
	)

	srv.AddTool(
		mcp.NewTool(ToolAnalyticsSummary,
			mcp.WithDescription(
				"Summarise privilege events over a recent timeframe: total count, counts per "+
					"event type, and the five most frequent users and reasons.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("timeframe",
				mcp.Description("Window to summarise (default week)"),
				mcp.Enum("day", "week", "month", "year"),
				mcp.DefaultString(query.DefaultTimeframe),
			),
		),
		s.handleAnalyticsSummary,
	)

	srv.AddTool(
		mcp.NewTool(ToolQueryEvents,
			mcp.WithDescription(
				"Query events with field selection and filtering for analysis.\n\n"+
					"Filter syntax: field op \"value\" [and field op \"value\" ...]\n"+
					"  Operators: eq, ne, gt, lt, ge, le\n"+
					"  Example: user eq \"jappleseed\" and admin eq \"true\"\n\n"+
					"Read the privileges://fields resource for the selectable fields.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("period",
				mcp.Description("Lookback window (default 7d)"),
				mcp.Enum("1d", "7d", "30d", "90d", query.PeriodAll),
			),
			mcp.WithString("fields",
				mcp.Description("Comma-separated field names. Omit for all fields."),
			),
			mcp.WithString("filter",
				mcp.Description("Filter expression"),
			),
			mcp.WithNumber("page",
				mcp.Description("Page number starting at 1"),
			),
			mcp.WithNumber("pageSize",
				mcp.Description("Rows per page (default 100, max 1000)"),
			),
		),
		s.handleQueryEvents,
	)
}

func (s *MCPServer) handleListEvents(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	list, err := s.events.List(ctx, service.ListParams{
		Page:    optionalInt(request, "page", 1),
		Limit:   optionalInt(request, "limit", service.DefaultListLimit),
		Event:   optionalString(request, "event", ""),
		Delayed: optionalBool(request, "delayed"),
	})
	if err != nil {
		s.logger.Error("mcp list events", "error", err)
		return toolError("Failed to list events: %v", err)
	}
	return successJSON(list)
}

func (s *MCPServer) handleGetEvent(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	id, err := requireString(request, "id")
	if err != nil {
		return toolError("%v", err)
	}

	e, err := s.events.Get(ctx, id)
	if err != nil {
		if service.IsNotFound(err) {
			return toolError("Event %q not found. Use %s to find event ids.", id, ToolListEvents)
		}
		s.logger.Error("mcp get event", "error", err, "webhook_id", id)
		return toolError("Failed to get event: %v", err)
	}
	return successJSON(e)
}

func (s *MCPServer) handleAnalyticsSummary(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	sum, err := s.events.Summary(ctx, optionalString(request, "timeframe", query.DefaultTimeframe))
	if err != nil {
		s.logger.Error("mcp analytics summary", "error", err)
		return toolError("Failed to summarise events: %v", err)
	}
	return successJSON(sum)
}

func (s *MCPServer) handleQueryEvents(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	res, err := s.events.Analytics(ctx, service.AnalyticsParams{
		Period:   optionalString(request, "period", query.DefaultPeriod),
		Fields:   optionalString(request, "fields", ""),
		Filter:   optionalString(request, "filter", ""),
		Page:     optionalInt(request, "page", 1),
		PageSize: optionalInt(request, "pageSize", service.DefaultPageSize),
	})
	if err != nil {
		if errors.Is(err, query.ErrInvalidFilter) {
			return toolError("%v\n\nFilter syntax: field op \"value\" [and ...]\n"+
				"  Operators: eq, ne, gt, lt, ge, le\n"+
				"  Fields: %v", err, query.Names(query.Fields()))
		}
		s.logger.Error("mcp query events", "error", err)
		return toolError("Failed to query events: %v", err)
	}
	return successJSON(res.Page)
}
