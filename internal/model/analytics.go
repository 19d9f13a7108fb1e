package model

// EventCount is one bucket of the per-event breakdown.
type EventCount struct {
	Event string `json:"event" db:"event"`
	Count int64  `json:"count" db:"count"`
}

// UserCount is one entry of the top-users list.
type UserCount struct {
	User  string `json:"user" db:"username"`
	Count int64  `json:"count" db:"count"`
}

// ReasonCount is one entry of the top-reasons list.
type ReasonCount struct {
	Reason string `json:"reason" db:"reason"`
	Count  int64  `json:"count" db:"count"`
}

// Summary is the response of GET /api/v1/analytics/summary.
type Summary struct {
	Timeframe  string        `json:"timeframe"`
	Total      int64         `json:"total"`
	Events     []EventCount  `json:"events"`
	TopUsers   []UserCount   `json:"topUsers"`
	TopReasons []ReasonCount `json:"topReasons"`
}

// FieldSchema describes one column of an analytics response.
type FieldSchema struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// AnalyticsMetadata carries paging and column information for BI clients.
type AnalyticsMetadata struct {
	TotalRecords int64         `json:"totalRecords"`
	PageCount    int           `json:"pageCount"`
	CurrentPage  int           `json:"currentPage"`
	PageSize     int           `json:"pageSize"`
	Schema       []FieldSchema `json:"schema"`
}

// AnalyticsPage is the JSON response of GET /api/v1/analytics/events.
type AnalyticsPage struct {
	Metadata AnalyticsMetadata `json:"metadata"`
	Data     []map[string]any  `json:"data"`
}
