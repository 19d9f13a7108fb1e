package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/privileges-api/privileges/internal/model"
	"github.com/privileges-api/privileges/internal/query"
	"github.com/privileges-api/privileges/internal/store"
	"github.com/privileges-api/privileges/internal/token"
)

const agentUA = "PrivilegesAgent/479 CFNetwork/3826.500.111.1.1 Darwin/24.4.0"

func newTestEvents(t *testing.T) (*EventService, *store.Store) {
	t.Helper()
	st := newTestStore(t)
	return NewEventService(st, token.FixedClock(fixedNow), nil), st
}

func TestIngest_EnrichesFromUserAgent(t *testing.T) {
	svc, st := newTestEvents(t)
	ctx := context.Background()

	body := `{"user":"jappleseed","machine":"M1","event":"corp.sap.privileges.granted",
		"reason":"Installing software","admin":true,"timestamp":"2025-06-15T14:23:30+02:00","expires":""}`
	receipt, err := svc.Ingest(ctx, []byte(body), agentUA)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-15T12:00:00.000Z", receipt.ReceivedAt)

	e, err := st.GetEvent(ctx, receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, 479, e.ClientVersion)
	assert.Equal(t, "macOS", e.Platform)
	require.NotNil(t, e.CFNetworkVersion)
	assert.Equal(t, "3826.500.111.1.1", *e.CFNetworkVersion)
	require.NotNil(t, e.OSVersion)
	assert.Equal(t, "24.4.0", *e.OSVersion)
	assert.Equal(t, "2025-06-15T12:23:30.000Z", e.Timestamp, "timestamps are normalised to UTC")
	assert.Nil(t, e.Expires, "empty expires is treated as absent")
	assert.False(t, e.Delayed)
	assert.Equal(t, map[string]any{}, e.CustomData)
	assert.Equal(t, e.ReceivedAt, e.CreatedAt)
}

func TestIngest_PayloadWinsOverUserAgent(t *testing.T) {
	svc, st := newTestEvents(t)
	ctx := context.Background()

	body := `{"user":"u","machine":"m","event":"corp.sap.privileges.revoked","reason":"done","admin":false,
		"timestamp":"2025-06-15T11:00:00Z","expires":"2025-06-15T11:05:00Z","client_version":500,
		"platform":"macOS 15","cf_network_version":"1.0","os_version":"25.0.0","delayed":true,
		"custom_data":{"serial":"XYZ"}}`
	receipt, err := svc.Ingest(ctx, []byte(body), agentUA)
	require.NoError(t, err)

	e, err := st.GetEvent(ctx, receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, 500, e.ClientVersion)
	assert.Equal(t, "macOS 15", e.Platform)
	assert.Equal(t, "1.0", *e.CFNetworkVersion)
	assert.Equal(t, "25.0.0", *e.OSVersion)
	assert.True(t, e.Delayed)
	require.NotNil(t, e.Expires)
	assert.Equal(t, "2025-06-15T11:05:00.000Z", *e.Expires)
	assert.Equal(t, "XYZ", e.CustomData["serial"])
}

func TestIngest_PlatformFallbacks(t *testing.T) {
	tests := []struct {
		ua           string
		wantPlatform string
		wantVersion  int
	}{
		{"curl/8.4.0", "curl/8.4.0", 1},
		{"", "Unknown", 1},
		{"PrivilegesAgent/12", "PrivilegesAgent/12", 12},
	}
	for _, tt := range tests {
		svc, st := newTestEvents(t)
		body := `{"user":"u","machine":"m","event":"corp.sap.privileges.granted","reason":"r","admin":true,"timestamp":"2025-06-15T11:00:00Z"}`
		receipt, err := svc.Ingest(context.Background(), []byte(body), tt.ua)
		require.NoError(t, err)
		e, err := st.GetEvent(context.Background(), receipt.ID)
		require.NoError(t, err)
		assert.Equal(t, tt.wantPlatform, e.Platform, "ua %q", tt.ua)
		assert.Equal(t, tt.wantVersion, e.ClientVersion, "ua %q", tt.ua)
		assert.Nil(t, e.OSVersion)
	}
}

func TestIngest_Rejects(t *testing.T) {
	svc, _ := newTestEvents(t)

	tests := []struct {
		name   string
		body   string
		reason string
	}{
		{"not json", `{"user":`, ReasonInvalidJSON},
		{"array", `[1,2]`, ReasonValidation},
		{"missing fields", `{"user":"u"}`, ReasonValidation},
		{"bad event", `{"user":"u","machine":"m","event":"x","reason":"r","admin":true,"timestamp":"2025-06-15T11:00:00Z"}`, ReasonValidation},
		{"no time zone", `{"user":"u","machine":"m","event":"corp.sap.privileges.granted","reason":"r","admin":true,"timestamp":"2025-06-15T11:00:00"}`, ReasonValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Ingest(context.Background(), []byte(tt.body), "")
			var ie *IntakeError
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, tt.reason, ie.Reason)
			assert.NotNil(t, ie.Detail)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestIngest_StoreFailure(t *testing.T) {
	svc, st := newTestEvents(t)
	require.NoError(t, st.Close())

	body := `{"user":"u","machine":"m","event":"corp.sap.privileges.granted","reason":"r","admin":true,"timestamp":"2025-06-15T11:00:00Z"}`
	_, err := svc.Ingest(context.Background(), []byte(body), "")
	require.Error(t, err)
	var ie *IntakeError
	assert.False(t, errors.As(err, &ie))
}

func seed(t *testing.T, st *store.Store, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		event := model.EventGranted
		if i%2 == 1 {
			event = model.EventRevoked
		}
		ts := model.FormatTime(fixedNow.Add(-time.Duration(i) * 24 * time.Hour))
		e := &model.Event{
			ID: "e" + string(rune('a'+i)), User: []string{"ann", "bob"}[i%2], Machine: "m",
			Event: event, Reason: "r", Admin: i%2 == 0, Timestamp: ts, ReceivedAt: ts,
			CreatedAt: ts, ClientVersion: 1, Platform: "macOS", Delayed: i == 0,
		}
		require.NoError(t, st.InsertEvent(context.Background(), e))
	}
}

func TestList(t *testing.T) {
	svc, st := newTestEvents(t)
	seed(t, st, 5)

	list, err := svc.List(context.Background(), ListParams{Limit: 2, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, model.Pagination{Total: 5, Page: 2, Limit: 2, Pages: 3}, list.Pagination)
	require.Len(t, list.Data, 2)
	assert.Equal(t, "ec", list.Data[0].ID)

	list, err = svc.List(context.Background(), ListParams{Limit: 5000, Page: -3})
	require.NoError(t, err)
	assert.Equal(t, MaxPageSize, list.Pagination.Limit)
	assert.Equal(t, 1, list.Pagination.Page)

	list, err = svc.List(context.Background(), ListParams{Event: "none"})
	require.NoError(t, err)
	assert.NotNil(t, list.Data)
	assert.Empty(t, list.Data)
	assert.Equal(t, DefaultListLimit, list.Pagination.Limit)
}

func TestPaginate(t *testing.T) {
	tests := []struct {
		page, size     int
		wantPage, want int
	}{
		{0, 50, 1, 0},
		{-7, 50, 1, 0},
		{3, 50, 3, 100},
		{math.MaxInt, 50, math.MaxInt / 50, (math.MaxInt/50 - 1) * 50},
		{math.MaxInt, 1, math.MaxInt, math.MaxInt - 1},
	}
	for _, tt := range tests {
		page, offset := paginate(tt.page, tt.size)
		assert.Equal(t, tt.wantPage, page, "page for (%d, %d)", tt.page, tt.size)
		assert.Equal(t, tt.want, offset, "offset for (%d, %d)", tt.page, tt.size)
		assert.GreaterOrEqual(t, offset, 0)
	}
}

func TestHugePageReturnsNoRows(t *testing.T) {
	svc, st := newTestEvents(t)
	seed(t, st, 3)
	ctx := context.Background()

	list, err := svc.List(ctx, ListParams{Page: math.MaxInt, Limit: 50})
	require.NoError(t, err)
	assert.Empty(t, list.Data)
	assert.Equal(t, int64(3), list.Pagination.Total)
	assert.Equal(t, math.MaxInt/50, list.Pagination.Page)

	res, err := svc.Analytics(ctx, AnalyticsParams{Period: "all", Page: math.MaxInt / 10, PageSize: 1000})
	require.NoError(t, err)
	assert.Empty(t, res.Page.Data)
	assert.Equal(t, int64(3), res.Page.Metadata.TotalRecords)
	assert.Equal(t, math.MaxInt/1000, res.Page.Metadata.CurrentPage)
}

func TestSummary(t *testing.T) {
	svc, st := newTestEvents(t)
	seed(t, st, 10)

	sum, err := svc.Summary(context.Background(), "week")
	require.NoError(t, err)
	assert.Equal(t, "week", sum.Timeframe)
	assert.Equal(t, int64(8), sum.Total) // days 0..7 inclusive

	sum, err = svc.Summary(context.Background(), "decade")
	require.NoError(t, err)
	assert.Equal(t, "week", sum.Timeframe)

	sum, err = svc.Summary(context.Background(), "day")
	require.NoError(t, err)
	assert.Equal(t, int64(2), sum.Total)
}

func TestAnalytics(t *testing.T) {
	svc, st := newTestEvents(t)
	seed(t, st, 10)
	ctx := context.Background()

	res, err := svc.Analytics(ctx, AnalyticsParams{
		Period:   "all",
		Fields:   "user,admin,bogus",
		Filter:   `user eq "ann"`,
		PageSize: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"user", "admin"}, query.Names(res.Fields))
	assert.Equal(t, int64(5), res.Page.Metadata.TotalRecords)
	assert.Equal(t, 3, res.Page.Metadata.PageCount)
	assert.Equal(t, 1, res.Page.Metadata.CurrentPage)
	assert.Len(t, res.Page.Metadata.Schema, 2)
	require.Len(t, res.Page.Data, 2)
	assert.Equal(t, map[string]any{"user": "ann", "admin": true}, res.Page.Data[0])

	res, err = svc.Analytics(ctx, AnalyticsParams{Period: "unknown"})
	require.NoError(t, err)
	assert.Equal(t, int64(8), res.Page.Metadata.TotalRecords, "unknown period falls back to 7d")
	assert.Equal(t, DefaultPageSize, res.Page.Metadata.PageSize)
	assert.Len(t, res.Fields, len(query.Fields()))

	delayed := true
	res, err = svc.Analytics(ctx, AnalyticsParams{Period: "all", Delayed: &delayed})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Page.Metadata.TotalRecords)

	_, err = svc.Analytics(ctx, AnalyticsParams{Filter: `nope eq "x"`})
	assert.ErrorIs(t, err, query.ErrInvalidFilter)
}

func TestExport(t *testing.T) {
	svc, st := newTestEvents(t)
	seed(t, st, 10)

	events, err := svc.Export(context.Background(), "all", "")
	require.NoError(t, err)
	assert.Len(t, events, 10)

	events, err = svc.Export(context.Background(), "7d", model.EventRevoked)
	require.NoError(t, err)
	for _, e := range events {
		assert.Equal(t, model.EventRevoked, e.Event)
	}
	assert.Len(t, events, 4) // days 1,3,5,7

	events, err = svc.Export(context.Background(), "14d", "corp.sap.privileges.unknown")
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestGetAndDelete(t *testing.T) {
	svc, st := newTestEvents(t)
	seed(t, st, 1)
	ctx := context.Background()

	e, err := svc.Get(ctx, "ea")
	require.NoError(t, err)
	assert.Equal(t, "ann", e.User)

	require.NoError(t, svc.Delete(ctx, "ea"))
	_, err = svc.Get(ctx, "ea")
	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(svc.Delete(ctx, "ea")))
}
