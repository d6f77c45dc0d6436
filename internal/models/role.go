package models

import (
	"fmt"

	"github.com/239fd/wmsProjectBackend-sub001/internal/apperrors"
)

// Role is a closed set. Keep the switches exhaustive: a role that slipped
// through as a raw string must never silently pass a permission check.
type Role string

const (
	RoleDirector   Role = "DIRECTOR"
	RoleAccountant Role = "ACCOUNTANT"
	RoleWorker     Role = "WORKER"
)

// ParseRole converts an external string (request body, JWT claim, header)
// into a known role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleDirector:
		return RoleDirector, nil
	case RoleAccountant:
		return RoleAccountant, nil
	case RoleWorker:
		return RoleWorker, nil
	default:
		return "", fmt.Errorf("%w: %q", apperrors.ErrRoleUnknown, s)
	}
}

func (r Role) String() string {
	return string(r)
}

// Valid reports whether the role is one of the known variants
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}
