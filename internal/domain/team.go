package domain

import "time"

// Team is a named group of users within a company.
type Team struct {
	ID        string
	Name      string
	CompanyID string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TeamMembership records when and by whom a user was added to a team.
type TeamMembership struct {
	UserID     string
	TeamID     string
	AssignedAt time.Time
	AssignedBy *string
}

// TeamMember pairs a user with their membership record.
type TeamMember struct {
	User       User
	AssignedAt time.Time
	AssignedBy *string
}

// TeamWithMembers is the closed projection used by the teams views.
type TeamWithMembers struct {
	Team    Team
	Members []TeamMember
}
