package handler

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/privileges-api/privileges/internal/model"
)

func (e *testEnv) seedToken(t *testing.T, name string, perms model.Permissions) *model.CreatedToken {
	t.Helper()
	created, err := e.tokens.Create(context.Background(), nil, model.TokenCreateRequest{
		Name:        name,
		ExpiresIn:   "30d",
		Permissions: &perms,
	})
	if err != nil {
		t.Fatalf("seedToken: %v", err)
	}
	return created
}

func TestCreateToken(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "POST", "/api/v1/tokens", toJSON(t, map[string]any{
		"name":       "Analytics",
		"expires_in": "7d",
	}))
	assertStatus(t, rr, http.StatusCreated)

	var created model.CreatedToken
	decodeJSON(t, rr, &created)
	if !strings.HasPrefix(created.Token, "sk_") {
		t.Errorf("token = %q, want sk_ prefix", created.Token)
	}
	if created.Permissions != model.ReadOnlyPermissions() {
		t.Errorf("permissions = %+v, want read-only default", created.Permissions)
	}
	if created.ExpiresAt == nil || *created.ExpiresAt != testNow.Unix()+7*86400 {
		t.Errorf("expires_at = %v", created.ExpiresAt)
	}

	rr = env.do(t, "GET", "/api/v1/tokens/"+created.ID, nil)
	assertStatus(t, rr, http.StatusOK)
	if strings.Contains(rr.Body.String(), created.Token) {
		t.Error("token detail must not include the raw key")
	}
}

func TestCreateTokenRejections(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		error  string
	}{
		{"bad json", `{"name":`, http.StatusBadRequest, "Invalid token data"},
		{"missing name", `{"expires_in":"30d"}`, http.StatusBadRequest, "Invalid token data"},
		{"missing expires_in", `{"name":"x"}`, http.StatusBadRequest, "Invalid token data"},
		{"unknown expires_in", `{"name":"x","expires_in":"2d"}`, http.StatusBadRequest, "Invalid token data"},
		{"raw timestamp", `{"name":"x","expires_in":"4102444800"}`, http.StatusBadRequest, "Invalid token data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			rr := env.do(t, "POST", "/api/v1/tokens", strings.NewReader(tt.body))
			assertStatus(t, rr, tt.status)

			var body model.ErrorResponse
			decodeJSON(t, rr, &body)
			if body.Error != tt.error {
				t.Errorf("error = %q, want %q", body.Error, tt.error)
			}
		})
	}
}

func TestCreateTokenEscalation(t *testing.T) {
	env := newTestEnv(t)
	env.principal = &model.Principal{ID: "mgr", Permissions: model.Permissions{Read: true, TokenManagement: true}}

	rr := env.do(t, "POST", "/api/v1/tokens", toJSON(t, map[string]any{
		"name":        "writer",
		"expires_in":  "never",
		"permissions": map[string]bool{"read": true, "write": true},
	}))
	assertStatus(t, rr, http.StatusForbidden)
}

func TestListTokens(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/api/v1/tokens", nil)
	assertStatus(t, rr, http.StatusOK)
	if !strings.Contains(rr.Body.String(), `"tokens":[]`) {
		t.Errorf("body = %s, want empty tokens array", rr.Body.String())
	}

	a := env.seedToken(t, "a", model.ReadOnlyPermissions())
	env.seedToken(t, "b", model.ReadOnlyPermissions())

	rr = env.do(t, "GET", "/api/v1/tokens", nil)
	var list model.TokenList
	decodeJSON(t, rr, &list)
	if len(list.Tokens) != 2 {
		t.Fatalf("tokens = %d, want 2", len(list.Tokens))
	}
	if strings.Contains(rr.Body.String(), a.Token) {
		t.Error("list must not include raw keys")
	}
}

func TestGetTokenNotFound(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, "GET", "/api/v1/tokens/nope", nil)
	assertStatus(t, rr, http.StatusNotFound)

	var body model.ErrorResponse
	decodeJSON(t, rr, &body)
	if body.Error != "Token not found" {
		t.Errorf("error = %q", body.Error)
	}
}

func TestManageToken(t *testing.T) {
	env := newTestEnv(t)
	mgr := env.seedToken(t, "manager", model.Permissions{Read: true, TokenManagement: true})
	victim := env.seedToken(t, "victim", model.ReadOnlyPermissions())
	env.principal = &model.Principal{ID: mgr.ID, Permissions: mgr.Permissions}

	rr := env.do(t, "DELETE", "/api/v1/tokens/"+mgr.ID, nil)
	assertStatus(t, rr, http.StatusBadRequest)
	var errBody model.ErrorResponse
	decodeJSON(t, rr, &errBody)
	if errBody.Error != "Cannot modify your own token" {
		t.Errorf("error = %q", errBody.Error)
	}

	rr = env.do(t, "DELETE", "/api/v1/tokens/"+victim.ID, nil)
	assertStatus(t, rr, http.StatusOK)
	var res model.ActionResult
	decodeJSON(t, rr, &res)
	if !res.Success || res.Message != "Token revoked successfully" {
		t.Errorf("result = %+v", res)
	}
	stored, err := env.store.GetToken(context.Background(), victim.ID)
	if err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if stored.IsActive {
		t.Error("revoked token is still active")
	}

	rr = env.do(t, "DELETE", "/api/v1/tokens/"+victim.ID+"?action=delete", nil)
	assertStatus(t, rr, http.StatusOK)
	decodeJSON(t, rr, &res)
	if res.Message != "Token permanently deleted" {
		t.Errorf("message = %q", res.Message)
	}

	rr = env.do(t, "DELETE", "/api/v1/tokens/"+victim.ID, nil)
	assertStatus(t, rr, http.StatusNotFound)
}
