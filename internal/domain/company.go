package domain

import "time"

// Company is the tenant boundary. Every other entity is scoped to exactly
// one company; cross-company references are forbidden.
type Company struct {
	ID        string
	Name      string
	Domain    *string
	CreatedAt time.Time
	UpdatedAt time.Time
}
