package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role is the closed set of roles an identity may hold. Authorization
// decisions compare against these values; anything else is rejected at the
// boundary by ParseRole.
type Role string

const (
	RoleAdmin      Role = "Admin"
	RoleManagement Role = "Management"
	RoleHR         Role = "HR"
	RolePrevention Role = "Prevention"
	RoleCommittee  Role = "Committee"
	RoleOperations Role = "Operations"
)

// Roles lists every defined role in declaration order.
func Roles() []Role {
	return []Role{
		RoleAdmin,
		RoleManagement,
		RoleHR,
		RolePrevention,
		RoleCommittee,
		RoleOperations,
	}
}

// Valid reports whether the role is one of the defined constants.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManagement, RoleHR, RolePrevention, RoleCommittee, RoleOperations:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// ParseRole resolves a string to a defined Role, case-insensitively.
func ParseRole(value string) (Role, error) {
	candidate := Role(strings.TrimSpace(value))
	if candidate.Valid() {
		return candidate, nil
	}
	for _, role := range Roles() {
		if strings.EqualFold(string(role), string(candidate)) {
			return role, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", value)
}

// Identity mirrors the persisted representation in the identities table.
// PasswordHash never leaves the persistence and verification layers; every
// component returning an Identity to a caller strips it first.
type Identity struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         Role
	AvatarURL    *string
	IsActive     bool
	LastLogin    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Sanitized returns a copy with the password hash stripped.
func (i Identity) Sanitized() Identity {
	i.PasswordHash = ""
	return i
}

// NormalizeEmail lowercases and trims an email for lookup and storage.
// Uniqueness in the identities table is enforced over this form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
