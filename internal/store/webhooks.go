package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/privileges-api/privileges/internal/model"
	"github.com/privileges-api/privileges/internal/query"
)

// ---------------------------------------------------------------------------
// Event Store
// ---------------------------------------------------------------------------

// eventRow maps 1:1 to the webhooks table. The public names "user",
// "timestamp" and "delayed" are stored under non-reserved column names.
type eventRow struct {
	ID               string         `db:"id"`
	Username         string         `db:"username"`
	Machine          string         `db:"machine"`
	Event            string         `db:"event"`
	Reason           string         `db:"reason"`
	Admin            int            `db:"admin"`
	Timestamp        string         `db:"event_timestamp"`
	Expires          sql.NullString `db:"expires"`
	ReceivedAt       string         `db:"received_at"`
	CustomData       string         `db:"custom_data"`
	ClientVersion    int            `db:"client_version"`
	Platform         string         `db:"platform"`
	CFNetworkVersion sql.NullString `db:"cf_network_version"`
	OSVersion        sql.NullString `db:"os_version"`
	Delayed          int            `db:"is_delayed"`
	CreatedAt        string         `db:"created_at"`
}

const eventColumns = `id, username, machine, event, reason, admin, event_timestamp,
	expires, received_at, custom_data, client_version, platform,
	cf_network_version, os_version, is_delayed, created_at`

func eventRowFromModel(e *model.Event) (eventRow, error) {
	custom := []byte("{}")
	if len(e.CustomData) > 0 {
		var err error
		if custom, err = json.Marshal(e.CustomData); err != nil {
			return eventRow{}, fmt.Errorf("encode custom_data: %w", err)
		}
	}
	return eventRow{
		ID:               e.ID,
		Username:         e.User,
		Machine:          e.Machine,
		Event:            e.Event,
		Reason:           e.Reason,
		Admin:            boolToInt(e.Admin),
		Timestamp:        e.Timestamp,
		Expires:          nullString(e.Expires),
		ReceivedAt:       e.ReceivedAt,
		CustomData:       string(custom),
		ClientVersion:    e.ClientVersion,
		Platform:         e.Platform,
		CFNetworkVersion: nullString(e.CFNetworkVersion),
		OSVersion:        nullString(e.OSVersion),
		Delayed:          boolToInt(e.Delayed),
		CreatedAt:        e.CreatedAt,
	}, nil
}

// toModel never fails: custom_data that does not decode to an object is
// rendered as an empty object.
func (r eventRow) toModel() model.Event {
	custom := map[string]any{}
	if r.CustomData != "" {
		if err := json.Unmarshal([]byte(r.CustomData), &custom); err != nil || custom == nil {
			custom = map[string]any{}
		}
	}
	return model.Event{
		ID:               r.ID,
		User:             r.Username,
		Machine:          r.Machine,
		Event:            r.Event,
		Reason:           r.Reason,
		Admin:            r.Admin != 0,
		Timestamp:        r.Timestamp,
		Expires:          stringPtr(r.Expires),
		ReceivedAt:       r.ReceivedAt,
		CustomData:       custom,
		ClientVersion:    r.ClientVersion,
		Platform:         r.Platform,
		CFNetworkVersion: stringPtr(r.CFNetworkVersion),
		OSVersion:        stringPtr(r.OSVersion),
		Delayed:          r.Delayed != 0,
		CreatedAt:        r.CreatedAt,
	}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// InsertEvent stores a new webhook event.
func (s *Store) InsertEvent(ctx context.Context, e *model.Event) error {
	row, err := eventRowFromModel(e)
	if err != nil {
		return &Error{Kind: KindConstraint, Op: "insert event", Err: err}
	}

	const q = `INSERT INTO webhooks
		(id, username, machine, event, reason, admin, event_timestamp,
		 expires, received_at, custom_data, client_version, platform,
		 cf_network_version, os_version, is_delayed, created_at)
		VALUES
		(:id, :username, :machine, :event, :reason, :admin, :event_timestamp,
		 :expires, :received_at, :custom_data, :client_version, :platform,
		 :cf_network_version, :os_version, :is_delayed, :created_at)`

	if _, err := s.db.NamedExecContext(ctx, q, row); err != nil {
		return wrap("insert event", err)
	}
	return nil
}

// GetEvent looks up an event by id.
func (s *Store) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	var row eventRow
	q := s.db.Rebind("SELECT " + eventColumns + " FROM webhooks WHERE id = ?")
	if err := s.db.GetContext(ctx, &row, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("get event")
		}
		return nil, wrap("get event", err)
	}
	e := row.toModel()
	return &e, nil
}

// DeleteEvent removes an event by id.
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	return s.execOne(ctx, "delete event", "DELETE FROM webhooks WHERE id = ?", id)
}

// EventQuery selects events for listing, analytics and export.
type EventQuery struct {
	// Since bounds event_timestamp from below; empty means unbounded.
	Since      string
	Event      string
	Delayed    *bool
	Conditions []query.Condition
	// Limit of zero returns every matching row.
	Limit  int
	Offset int
}

var allowedOperators = map[string]bool{"=": true, "!=": true, ">": true, "<": true, ">=": true, "<=": true}

// where renders q as a WHERE clause with "?" placeholders.
func (q EventQuery) where() (string, []any, error) {
	var (
		clauses []string
		args    []any
	)
	if q.Since != "" {
		clauses = append(clauses, "event_timestamp >= ?")
		args = append(args, q.Since)
	}
	if q.Event != "" {
		clauses = append(clauses, "event = ?")
		args = append(args, q.Event)
	}
	if q.Delayed != nil {
		clauses = append(clauses, "is_delayed = ?")
		args = append(args, boolToInt(*q.Delayed))
	}
	for _, c := range q.Conditions {
		if err := query.ValidateIdentifier(c.Column); err != nil {
			return "", nil, err
		}
		if !allowedOperators[c.Operator] {
			return "", nil, fmt.Errorf("operator %q not allowed", c.Operator)
		}
		clauses = append(clauses, c.Column+" "+c.Operator+" ?")
		args = append(args, c.Value)
	}
	if len(clauses) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

// ListEvents returns one page of matching events, newest first, together
// with the total number of matches.
func (s *Store) ListEvents(ctx context.Context, q EventQuery) ([]model.Event, int64, error) {
	where, args, err := q.where()
	if err != nil {
		return nil, 0, &Error{Kind: KindConstraint, Op: "list events", Err: err}
	}

	var total int64
	if err := s.db.GetContext(ctx, &total, s.db.Rebind("SELECT COUNT(*) FROM webhooks"+where), args...); err != nil {
		return nil, 0, wrap("count events", err)
	}

	stmt := "SELECT " + eventColumns + " FROM webhooks" + where + " ORDER BY event_timestamp DESC, id"
	if q.Limit > 0 {
		stmt += " LIMIT ? OFFSET ?"
		args = append(args, q.Limit, q.Offset)
	}

	var rows []eventRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(stmt), args...); err != nil {
		return nil, 0, wrap("list events", err)
	}
	out := make([]model.Event, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, total, nil
}

// topN bounds the user and reason rankings of a summary.
const topN = 5

// Summary aggregates events since the given lower bound (empty means all).
// Timeframe is left for the caller to fill.
func (s *Store) Summary(ctx context.Context, since string) (*model.Summary, error) {
	where, args, err := EventQuery{Since: since}.where()
	if err != nil {
		return nil, &Error{Kind: KindConstraint, Op: "summary", Err: err}
	}

	sum := &model.Summary{
		Events:     []model.EventCount{},
		TopUsers:   []model.UserCount{},
		TopReasons: []model.ReasonCount{},
	}

	if err := s.db.GetContext(ctx, &sum.Total, s.db.Rebind("SELECT COUNT(*) FROM webhooks"+where), args...); err != nil {
		return nil, wrap("summary total", err)
	}
	if err := s.db.SelectContext(ctx, &sum.Events, s.db.Rebind(
		"SELECT event, COUNT(*) AS count FROM webhooks"+where+
			" GROUP BY event ORDER BY count DESC, event"), args...); err != nil {
		return nil, wrap("summary events", err)
	}
	if err := s.db.SelectContext(ctx, &sum.TopUsers, s.db.Rebind(
		"SELECT username, COUNT(*) AS count FROM webhooks"+where+
			fmt.Sprintf(" GROUP BY username ORDER BY count DESC, username LIMIT %d", topN)), args...); err != nil {
		return nil, wrap("summary users", err)
	}
	if err := s.db.SelectContext(ctx, &sum.TopReasons, s.db.Rebind(
		"SELECT reason, COUNT(*) AS count FROM webhooks"+where+
			fmt.Sprintf(" GROUP BY reason ORDER BY count DESC, reason LIMIT %d", topN)), args...); err != nil {
		return nil, wrap("summary reasons", err)
	}
	return sum, nil
}
