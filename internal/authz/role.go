package authz

import (
	"errors"
	"fmt"
	"strings"
)

// Role is a principal's authorization level. The set is closed: values
// outside it are configuration faults, never a privilege default.
type Role string

const (
	RoleUser    Role = "user"
	RoleSupport Role = "support"
	RoleAdmin   Role = "admin"
)

// ErrUnknownRole indicates a role value outside the closed set.
var ErrUnknownRole = errors.New("authz: unknown role")

// Roles returns all valid roles.
func Roles() []Role {
	return []Role{RoleUser, RoleSupport, RoleAdmin}
}

// ParseRole validates a raw role string. It never falls back to a
// default: callers decide how loudly to surface ErrUnknownRole.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleUser:
		return RoleUser, nil
	case RoleSupport:
		return RoleSupport, nil
	case RoleAdmin:
		return RoleAdmin, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
}

// Valid reports whether the role belongs to the closed set.
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

func (r Role) String() string {
	return string(r)
}

// DashboardPath returns the role's landing page under the given locale.
func (r Role) DashboardPath(locale string) string {
	return "/" + locale + "/" + string(r) + "/dashboard"
}

// In reports membership in a required role set. An empty set matches
// nothing so a misconfigured guard denies rather than grants.
func (r Role) In(required ...Role) bool {
	for _, want := range required {
		if r == want {
			return true
		}
	}
	return false
}
