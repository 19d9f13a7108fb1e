package handler

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/privileges-api/privileges/internal/model"
)

const validPayload = `{"user":"jappleseed","machine":"MBP-42","event":"corp.sap.privileges.granted",
	"reason":"Installing Xcode","admin":true,"timestamp":"2025-06-15T11:30:00Z"}`

func TestReceiveWebhook(t *testing.T) {
	env := newTestEnv(t)
	env.principal = nil

	req := strings.NewReader(validPayload)
	rr := env.do(t, "POST", "/api/v1/webhooks", req)
	assertStatus(t, rr, http.StatusOK)

	var receipt model.Receipt
	decodeJSON(t, rr, &receipt)
	if receipt.ID == "" {
		t.Error("expected an id in the receipt")
	}
	if receipt.ReceivedAt != "2025-06-15T12:00:00.000Z" {
		t.Errorf("received_at = %q, want fixed clock time", receipt.ReceivedAt)
	}

	env.principal = model.EnvironmentPrincipal()
	rr = env.do(t, "GET", "/api/v1/webhooks/"+receipt.ID, nil)
	assertStatus(t, rr, http.StatusOK)
	var e model.Event
	decodeJSON(t, rr, &e)
	if e.User != "jappleseed" || e.Timestamp != "2025-06-15T11:30:00.000Z" {
		t.Errorf("stored event = %+v", e)
	}
}

func TestReceiveWebhookUsesUserAgent(t *testing.T) {
	env := newTestEnv(t)

	req := newRequest("POST", "/api/v1/webhooks", validPayload)
	req.Header.Set("User-Agent", agentUA)
	rr := env.serve(req)
	assertStatus(t, rr, http.StatusOK)

	var receipt model.Receipt
	decodeJSON(t, rr, &receipt)
	e, err := env.store.GetEvent(req.Context(), receipt.ID)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if e.ClientVersion != 479 || e.Platform != "macOS" {
		t.Errorf("client_version = %d platform = %q, want 479 macOS", e.ClientVersion, e.Platform)
	}
}

func TestReceiveWebhookRejections(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		error  string
	}{
		{"malformed json", `{"user":`, http.StatusBadRequest, "Invalid JSON payload"},
		{"missing user", `{"machine":"m","event":"corp.sap.privileges.granted","reason":"r","admin":true,"timestamp":"2025-06-15T11:30:00Z"}`,
			http.StatusBadRequest, "Validation failed"},
		{"unknown event", `{"user":"u","machine":"m","event":"corp.sap.privileges.other","reason":"r","admin":true,"timestamp":"2025-06-15T11:30:00Z"}`,
			http.StatusBadRequest, "Validation failed"},
		{"too large", `{"user":"` + strings.Repeat("x", 2048) + `"}`, http.StatusRequestEntityTooLarge, "Payload too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			rr := env.do(t, "POST", "/api/v1/webhooks", strings.NewReader(tt.body))
			assertStatus(t, rr, tt.status)

			var body model.ErrorResponse
			decodeJSON(t, rr, &body)
			if body.Error != tt.error {
				t.Errorf("error = %q, want %q", body.Error, tt.error)
			}
			if body.RequestID == "" {
				t.Error("intake errors must carry the request id")
			}
			if body.RequestID != rr.Header().Get("X-Request-ID") {
				t.Errorf("requestId = %q, header = %q", body.RequestID, rr.Header().Get("X-Request-ID"))
			}
		})
	}
}

func TestReceiveWebhookStoreFailure(t *testing.T) {
	env := newTestEnv(t)
	env.store.Close()

	rr := env.do(t, "POST", "/api/v1/webhooks", strings.NewReader(validPayload))
	assertStatus(t, rr, http.StatusInternalServerError)

	var body model.ErrorResponse
	decodeJSON(t, rr, &body)
	if body.Error != "Database operation failed" {
		t.Errorf("error = %q", body.Error)
	}
}

func TestListWebhooks(t *testing.T) {
	env := newTestEnv(t)
	env.seedEvents(t, 5)

	rr := env.do(t, "GET", "/api/v1/webhooks?limit=2&page=1", nil)
	assertStatus(t, rr, http.StatusOK)

	var list model.EventList
	decodeJSON(t, rr, &list)
	want := model.Pagination{Total: 5, Page: 1, Limit: 2, Pages: 3}
	if list.Pagination != want {
		t.Errorf("pagination = %+v, want %+v", list.Pagination, want)
	}
	if len(list.Data) != 2 || list.Data[0].ID != "eva" {
		t.Errorf("data = %+v, want newest first", list.Data)
	}

	rr = env.do(t, "GET", "/api/v1/webhooks?event=corp.sap.privileges.revoked", nil)
	decodeJSON(t, rr, &list)
	if list.Pagination.Total != 2 {
		t.Errorf("revoked total = %d, want 2", list.Pagination.Total)
	}
}

func TestListWebhooksHugePage(t *testing.T) {
	env := newTestEnv(t)
	env.seedEvents(t, 3)

	rr := env.do(t, "GET", "/api/v1/webhooks?limit=50&page="+strconv.Itoa(math.MaxInt), nil)
	assertStatus(t, rr, http.StatusOK)

	var list model.EventList
	decodeJSON(t, rr, &list)
	if len(list.Data) != 0 {
		t.Errorf("data = %d rows, want none past the last page", len(list.Data))
	}
	if list.Pagination.Total != 3 || list.Pagination.Page != math.MaxInt/50 {
		t.Errorf("pagination = %+v", list.Pagination)
	}
}

func TestListWebhooksEmptyIsArray(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, "GET", "/api/v1/webhooks", nil)
	assertStatus(t, rr, http.StatusOK)
	if !strings.Contains(rr.Body.String(), `"data":[]`) {
		t.Errorf("body = %s, want empty data array", rr.Body.String())
	}
}

func TestGetWebhookNotFound(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, "GET", "/api/v1/webhooks/missing", nil)
	assertStatus(t, rr, http.StatusNotFound)

	var body model.ErrorResponse
	decodeJSON(t, rr, &body)
	if body.Error != "Webhook not found" {
		t.Errorf("error = %q", body.Error)
	}
}

func TestDeleteWebhook(t *testing.T) {
	env := newTestEnv(t)
	env.seedEvents(t, 1)

	rr := env.do(t, "DELETE", "/api/v1/webhooks/eva", nil)
	assertStatus(t, rr, http.StatusOK)
	if !strings.Contains(rr.Body.String(), "Webhook deleted successfully") {
		t.Errorf("body = %s", rr.Body.String())
	}

	rr = env.do(t, "DELETE", "/api/v1/webhooks/eva", nil)
	assertStatus(t, rr, http.StatusNotFound)
}
