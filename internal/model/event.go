package model

import "time"

// TimeLayout is the fixed-width UTC form every stored timestamp uses, so
// that string comparison in SQL orders chronologically.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Event names accepted by webhook intake.
const (
	EventGranted = "corp.sap.privileges.granted"
	EventRevoked = "corp.sap.privileges.revoked"
)

// Event is a stored privilege-elevation notification. Timestamps are
// RFC 3339 strings in UTC.
type Event struct {
	ID               string         `json:"id"`
	User             string         `json:"user"`
	Machine          string         `json:"machine"`
	Event            string         `json:"event"`
	Reason           string         `json:"reason"`
	Admin            bool           `json:"admin"`
	Timestamp        string         `json:"timestamp"`
	Expires          *string        `json:"expires"`
	ReceivedAt       string         `json:"received_at"`
	CustomData       map[string]any `json:"custom_data"`
	ClientVersion    int            `json:"client_version"`
	Platform         string         `json:"platform"`
	CFNetworkVersion *string        `json:"cf_network_version"`
	OSVersion        *string        `json:"os_version"`
	Delayed          bool           `json:"delayed"`
	CreatedAt        string         `json:"created_at"`
}

// WebhookPayload is the body posted by endpoint agents. Optional fields are
// pointers so that absent values can be filled from the User-Agent.
type WebhookPayload struct {
	User             string         `json:"user"`
	Machine          string         `json:"machine"`
	Event            string         `json:"event"`
	Reason           string         `json:"reason"`
	Admin            bool           `json:"admin"`
	Timestamp        string         `json:"timestamp"`
	Expires          *string        `json:"expires,omitempty"`
	CustomData       map[string]any `json:"custom_data,omitempty"`
	ClientVersion    *int           `json:"client_version,omitempty"`
	Platform         *string        `json:"platform,omitempty"`
	CFNetworkVersion *string        `json:"cf_network_version,omitempty"`
	OSVersion        *string        `json:"os_version,omitempty"`
	Delayed          *bool          `json:"delayed,omitempty"`
}

// Receipt acknowledges a stored webhook.
type Receipt struct {
	ID         string `json:"id"`
	ReceivedAt string `json:"received_at"`
}
