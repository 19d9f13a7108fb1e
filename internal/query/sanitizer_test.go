package query

import (
	"strings"
	"testing"
)

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		errMsg  string
	}{
		{"valid simple", "machine", false, ""},
		{"valid underscore", "event_timestamp", false, ""},
		{"valid with numbers", "col123", false, ""},
		{"empty", "", true, "cannot be empty"},
		{"starts with number", "1col", true, "must match"},
		{"contains space", "col name", true, "must match"},
		{"injection attempt", "id; DROP TABLE webhooks--", true, "must match"},
		{"reserved user", "user", true, "reserved word"},
		{"reserved delayed", "Delayed", true, "reserved word"},
		{"too long", strings.Repeat("a", 65), true, "too long"},
		{"max length ok", strings.Repeat("a", 64), false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIdentifier(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q, got nil", tt.input)
				} else if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("expected error containing %q, got %q", tt.errMsg, err.Error())
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error for %q: %v", tt.input, err)
			}
		})
	}
}

func TestSanitizeValue(t *testing.T) {
	got, err := SanitizeValue("jo\x00hn")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "john" {
		t.Errorf("got %q, want %q", got, "john")
	}

	if _, err := SanitizeValue(strings.Repeat("x", maxValueLen+1)); err == nil {
		t.Error("expected error for oversized value")
	}
	if _, err := SanitizeValue(strings.Repeat("x", maxValueLen)); err != nil {
		t.Errorf("unexpected error at max length: %v", err)
	}
}
