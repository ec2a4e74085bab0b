// Package member defines family member models. Members own ledger balances,
// claim tasks, redeem rewards and grow trees.
package member

import (
	"fmt"
	"time"
)

// Role distinguishes the two member kinds the engine cares about.
type Role string

const (
	RoleParent Role = "parent"
	RoleChild  Role = "child"
)

// ParseRole decodes a stored role value. Unknown values are decode errors,
// never silently defaulted.
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleParent, RoleChild:
		return Role(raw), nil
	default:
		return "", fmt.Errorf("unknown member role %q", raw)
	}
}

// Member represents a person in a family.
type Member struct {
	ID        string
	FamilyID  string
	Name      string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}
