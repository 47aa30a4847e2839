package domain

import "time"

// Member records that a user joined a tenant by accepting an invitation.
type Member struct {
	TenantID     string
	UserID       string
	Email        string
	Role         Role
	InvitationID string
	JoinedAt     time.Time
}
