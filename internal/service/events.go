package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/google/uuid"

	"github.com/privileges-api/privileges/internal/model"
	"github.com/privileges-api/privileges/internal/openapi"
	"github.com/privileges-api/privileges/internal/query"
	"github.com/privileges-api/privileges/internal/store"
	"github.com/privileges-api/privileges/internal/token"
)

// Paging bounds shared by the list endpoints and MCP tools.
const (
	DefaultListLimit = 50
	DefaultPageSize  = 100
	MaxPageSize      = 1000
)

// EventStore is the subset of the store event handling needs.
type EventStore interface {
	InsertEvent(ctx context.Context, e *model.Event) error
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	DeleteEvent(ctx context.Context, id string) error
	ListEvents(ctx context.Context, q store.EventQuery) ([]model.Event, int64, error)
	Summary(ctx context.Context, since string) (*model.Summary, error)
}

var (
	agentVersionRe = regexp.MustCompile(`PrivilegesAgent/(\d+)`)
	cfNetworkRe    = regexp.MustCompile(`CFNetwork/(\S+)`)
	darwinRe       = regexp.MustCompile(`Darwin/(\S+)`)
)

// EventService validates, enriches and queries privilege events.
type EventService struct {
	store  EventStore
	clock  token.Clock
	schema *openapi3.Schema
	logger *slog.Logger
}

func NewEventService(store EventStore, clock token.Clock, logger *slog.Logger) *EventService {
	if clock == nil {
		clock = token.SystemClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EventService{
		store:  store,
		clock:  clock,
		schema: openapi.WebhookSchema(),
		logger: logger,
	}
}

// Ingest validates a raw webhook body, fills client metadata from the
// User-Agent where the payload lacks it, and stores the event. Malformed or
// invalid bodies yield an *IntakeError.
func (s *EventService) Ingest(ctx context.Context, body []byte, userAgent string) (*model.Receipt, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &IntakeError{Reason: ReasonInvalidJSON, Detail: err.Error()}
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, &IntakeError{Reason: ReasonValidation, Detail: "payload must be a JSON object"}
	}
	if v, ok := obj["expires"]; ok && v == "" {
		delete(obj, "expires")
	}
	if err := s.schema.VisitJSON(obj); err != nil {
		return nil, &IntakeError{Reason: ReasonValidation, Detail: schemaDetail(err)}
	}

	var p model.WebhookPayload
	normalized, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("re-encode payload: %w", err)
	}
	if err := json.Unmarshal(normalized, &p); err != nil {
		return nil, &IntakeError{Reason: ReasonValidation, Detail: err.Error()}
	}

	e, err := s.buildEvent(p, userAgent)
	if err != nil {
		return nil, err
	}
	if err := s.store.InsertEvent(ctx, e); err != nil {
		return nil, fmt.Errorf("store event: %w", err)
	}

	s.logger.Info("webhook received",
		"webhook_id", e.ID,
		"event", e.Event,
		"user", e.User,
		"delayed", e.Delayed,
	)
	return &model.Receipt{ID: e.ID, ReceivedAt: e.ReceivedAt}, nil
}

func (s *EventService) buildEvent(p model.WebhookPayload, userAgent string) (*model.Event, error) {
	ts, err := normalizeTime("timestamp", p.Timestamp)
	if err != nil {
		return nil, err
	}
	var expires *string
	if p.Expires != nil {
		v, err := normalizeTime("expires", *p.Expires)
		if err != nil {
			return nil, err
		}
		expires = &v
	}

	now := model.FormatTime(s.clock.Now())
	e := &model.Event{
		ID:               uuid.NewString(),
		User:             p.User,
		Machine:          p.Machine,
		Event:            p.Event,
		Reason:           p.Reason,
		Admin:            p.Admin,
		Timestamp:        ts,
		Expires:          expires,
		ReceivedAt:       now,
		CustomData:       p.CustomData,
		CFNetworkVersion: p.CFNetworkVersion,
		OSVersion:        p.OSVersion,
		CreatedAt:        now,
	}
	if e.CustomData == nil {
		e.CustomData = map[string]any{}
	}
	if p.Delayed != nil {
		e.Delayed = *p.Delayed
	}

	if p.ClientVersion != nil {
		e.ClientVersion = *p.ClientVersion
	} else {
		e.ClientVersion = 1
		if m := agentVersionRe.FindStringSubmatch(userAgent); m != nil {
			if v, err := strconv.Atoi(m[1]); err == nil {
				e.ClientVersion = v
			}
		}
	}

	if p.Platform != nil {
		e.Platform = *p.Platform
	} else {
		switch {
		case strings.Contains(userAgent, "Darwin"):
			e.Platform = "macOS"
		case userAgent != "":
			e.Platform = userAgent
		default:
			e.Platform = "Unknown"
		}
	}

	if e.CFNetworkVersion == nil {
		if m := cfNetworkRe.FindStringSubmatch(userAgent); m != nil {
			e.CFNetworkVersion = &m[1]
		}
	}
	if e.OSVersion == nil {
		if m := darwinRe.FindStringSubmatch(userAgent); m != nil {
			e.OSVersion = &m[1]
		}
	}
	return e, nil
}

// normalizeTime re-renders an RFC 3339 timestamp in UTC with millisecond
// precision.
func normalizeTime(field, v string) (string, error) {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return "", &IntakeError{
			Reason: ReasonValidation,
			Detail: []FieldError{{Field: field, Reason: "must be an RFC 3339 timestamp with a time zone"}},
		}
	}
	return model.FormatTime(t), nil
}

// ListParams selects a page of GET /api/v1/webhooks.
type ListParams struct {
	Page    int
	Limit   int
	Event   string
	Delayed *bool
}

// List returns one page of events, newest first.
func (s *EventService) List(ctx context.Context, p ListParams) (*model.EventList, error) {
	limit := clamp(p.Limit, DefaultListLimit)
	page, offset := paginate(p.Page, limit)

	events, total, err := s.store.ListEvents(ctx, store.EventQuery{
		Event:   p.Event,
		Delayed: p.Delayed,
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []model.Event{}
	}
	return &model.EventList{
		Data: events,
		Pagination: model.Pagination{
			Total: total,
			Page:  page,
			Limit: limit,
			Pages: model.PageCount(total, limit),
		},
	}, nil
}

// Get returns one event or store.ErrNotFound.
func (s *EventService) Get(ctx context.Context, id string) (*model.Event, error) {
	return s.store.GetEvent(ctx, id)
}

// Delete removes one event or returns store.ErrNotFound.
func (s *EventService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteEvent(ctx, id); err != nil {
		return err
	}
	s.logger.Info("webhook deleted", "webhook_id", id)
	return nil
}

// Summary aggregates events over a day, week, month or year.
func (s *EventService) Summary(ctx context.Context, timeframe string) (*model.Summary, error) {
	w := query.TimeframeWindow(timeframe, s.clock.Now())
	sum, err := s.store.Summary(ctx, w.Since)
	if err != nil {
		return nil, err
	}
	sum.Timeframe = w.Name
	return sum, nil
}

// AnalyticsParams are the query parameters of GET /api/v1/analytics/events.
type AnalyticsParams struct {
	Period   string
	Fields   string
	Filter   string
	Page     int
	PageSize int
	Delayed  *bool
}

// AnalyticsResult is a page of projected events plus the selected fields in
// output order.
type AnalyticsResult struct {
	Fields []query.Field
	Page   model.AnalyticsPage
}

// Analytics runs a BI query. A malformed filter yields an error matching
// query.ErrInvalidFilter.
func (s *EventService) Analytics(ctx context.Context, p AnalyticsParams) (*AnalyticsResult, error) {
	fields := query.SelectFields(p.Fields)
	conds, err := query.ParseFilter(p.Filter)
	if err != nil {
		return nil, err
	}
	w := query.AnalyticsWindow(p.Period, s.clock.Now())
	size := clamp(p.PageSize, DefaultPageSize)
	page, offset := paginate(p.Page, size)

	events, total, err := s.store.ListEvents(ctx, store.EventQuery{
		Since:      w.Since,
		Delayed:    p.Delayed,
		Conditions: conds,
		Limit:      size,
		Offset:     offset,
	})
	if err != nil {
		return nil, err
	}

	data := make([]map[string]any, len(events))
	for i, e := range events {
		data[i] = query.Project(e, fields)
	}
	return &AnalyticsResult{
		Fields: fields,
		Page: model.AnalyticsPage{
			Metadata: model.AnalyticsMetadata{
				TotalRecords: total,
				PageCount:    model.PageCount(total, size),
				CurrentPage:  page,
				PageSize:     size,
				Schema:       query.Schema(fields),
			},
			Data: data,
		},
	}, nil
}

// Export returns every event in the export window, newest first.
func (s *EventService) Export(ctx context.Context, period, event string) ([]model.Event, error) {
	w := query.ExportWindow(period, s.clock.Now())
	events, _, err := s.store.ListEvents(ctx, store.EventQuery{Since: w.Since, Event: event})
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []model.Event{}
	}
	return events, nil
}

// IsNotFound reports whether err means the requested row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

// clamp bounds a requested page size to [1, MaxPageSize], substituting def
// for unset values.
func clamp(v, def int) int {
	if v <= 0 {
		return def
	}
	return min(v, MaxPageSize)
}

// paginate bounds page to [1, math.MaxInt/size] so the row offset it returns
// never overflows. size must be positive.
func paginate(page, size int) (int, int) {
	page = min(max(page, 1), math.MaxInt/size)
	return page, (page - 1) * size
}
