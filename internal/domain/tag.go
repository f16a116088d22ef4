package domain

import "time"

// Tag is a per-company label. (name, company_id) is unique; the store's
// constraint is the final arbiter under concurrent creation.
type Tag struct {
	ID        string
	Name      string
	Color     string
	CompanyID string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TicketTag joins tickets to tags.
type TicketTag struct {
	TicketID  string
	TagID     string
	CreatedAt time.Time
}
