package auth

import (
	"errors"
	"testing"
)

func TestParseRoleExactMatch(t *testing.T) {
	for _, raw := range []string{"user", "editor", "admin"} {
		r, err := ParseRole(raw)
		if err != nil || string(r) != raw {
			t.Fatalf("ParseRole(%q) = %q, %v", raw, r, err)
		}
	}
	for _, raw := range []string{"", "Admin", "superadmin", " user", "viewer"} {
		if _, err := ParseRole(raw); !errors.Is(err, ErrValidation) {
			t.Fatalf("ParseRole(%q) expected ErrValidation, got %v", raw, err)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Alice@Gmail.COM "); got != "alice@gmail.com" {
		t.Fatalf("NormalizeEmail=%q", got)
	}
}
