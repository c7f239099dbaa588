package auth

import (
	"fmt"
	"strings"
)

// Role is one of the three fixed roles. There is no hierarchy between them:
// admin does not imply editor.
type Role string

const (
	RoleUser   Role = "user"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r is part of the closed role set.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleEditor, RoleAdmin:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// ParseRole accepts exactly "user", "editor" or "admin".
func ParseRole(raw string) (Role, error) {
	r := Role(raw)
	if !r.Valid() {
		return "", fmt.Errorf("%w: invalid role %q", ErrValidation, raw)
	}
	return r, nil
}

// RoleStrings converts roles for logging and JSON output.
func RoleStrings(roles []Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

// NormalizeEmail trims and lower-cases an address before any lookup or write.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
