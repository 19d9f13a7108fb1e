package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestPermissionsHas(t *testing.T) {
	p := Permissions{Read: true, Delete: true}

	tests := []struct {
		perm Permission
		want bool
	}{
		{PermRead, true},
		{PermWrite, false},
		{PermDelete, true},
		{PermTokenManagement, false},
		{Permission("admin"), false},
	}
	for _, tt := range tests {
		if got := p.Has(tt.perm); got != tt.want {
			t.Errorf("Has(%q) = %v, want %v", tt.perm, got, tt.want)
		}
	}
}

func TestPermissionsCovers(t *testing.T) {
	tests := []struct {
		name   string
		holder Permissions
		req    Permissions
		want   bool
	}{
		{"full covers anything", FullPermissions(), Permissions{Write: true, TokenManagement: true}, true},
		{"read-only covers read-only", ReadOnlyPermissions(), ReadOnlyPermissions(), true},
		{"read-only lacks write", ReadOnlyPermissions(), Permissions{Read: true, Write: true}, false},
		{"empty request always covered", Permissions{}, Permissions{}, true},
		{"management not implied", Permissions{Read: true, Write: true, Delete: true}, Permissions{TokenManagement: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.holder.Covers(tt.req); got != tt.want {
				t.Errorf("Covers = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEnvironmentPrincipal(t *testing.T) {
	p := EnvironmentPrincipal()
	if p.ID != "env-default" {
		t.Errorf("ID = %q, want env-default", p.ID)
	}
	if p.Permissions != FullPermissions() {
		t.Errorf("Permissions = %+v, want full", p.Permissions)
	}
	if p.IsServiceToken {
		t.Error("environment principal must not be a service token")
	}
}

func TestTokenJSONHidesHash(t *testing.T) {
	tok := Token{ID: "abc", Name: "ci", KeyHash: "deadbeef", KeyPrefix: "sk_abcd", IsActive: true}

	b, err := json.Marshal(tok)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if _, ok := m["key_hash"]; ok {
		t.Error("key_hash must not be serialized")
	}
	if _, ok := m["KeyHash"]; ok {
		t.Error("KeyHash must not be serialized")
	}
	perms, ok := m["permissions"].(map[string]any)
	if !ok {
		t.Fatalf("permissions = %T, want object", m["permissions"])
	}
	if _, ok := perms["token_management"]; !ok {
		t.Error("permissions must carry token_management")
	}
}

func TestPageCount(t *testing.T) {
	tests := []struct {
		total int64
		size  int
		want  int
	}{
		{0, 50, 0},
		{1, 50, 1},
		{50, 50, 1},
		{51, 50, 2},
		{10, 0, 0},
	}
	for _, tt := range tests {
		if got := PageCount(tt.total, tt.size); got != tt.want {
			t.Errorf("PageCount(%d, %d) = %d, want %d", tt.total, tt.size, got, tt.want)
		}
	}
}

func TestFormatTimeIsFixedWidthUTC(t *testing.T) {
	loc := time.FixedZone("CEST", 2*3600)
	got := FormatTime(time.Date(2025, 4, 1, 10, 0, 0, 0, loc))
	if got != "2025-04-01T08:00:00.000Z" {
		t.Errorf("FormatTime = %q, want %q", got, "2025-04-01T08:00:00.000Z")
	}
}
