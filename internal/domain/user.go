package domain

import (
	"strings"
	"time"
)

// UserRole determines ticket visibility and mutation rights.
type UserRole string

const (
	RoleAdmin    UserRole = "admin"
	RoleAgent    UserRole = "agent"
	RoleCustomer UserRole = "customer"
)

// Valid reports whether the role is a known enumeration value.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleAgent, RoleCustomer:
		return true
	}
	return false
}

// User models any account: admins, agents and customers. Name fields are
// nullable because accounts exist from first authentication, before
// onboarding fills in the profile.
type User struct {
	ID        string
	Email     string
	FirstName *string
	LastName  *string
	Role      UserRole
	CompanyID string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FullName derives the display name as the trimmed concatenation of first
// and last name. Null-safe for accounts with missing name fields.
func (u User) FullName() string {
	var first, last string
	if u.FirstName != nil {
		first = *u.FirstName
	}
	if u.LastName != nil {
		last = *u.LastName
	}
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}
