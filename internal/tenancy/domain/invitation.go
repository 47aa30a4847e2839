package domain

import (
	"net/mail"
	"strings"
	"time"
)

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationRevoked  InvitationStatus = "revoked"

	// InvitationExpired is never stored. It is what EffectiveStatus reports
	// for a pending invitation past its expiry.
	InvitationExpired InvitationStatus = "expired"
)

// Invitation onboards one email address into one tenant. Only the token's
// fingerprint is kept.
type Invitation struct {
	ID          string
	TenantID    string
	Email       string
	TokenHash   string
	Role        Role
	Status      InvitationStatus
	ExpiresAt   time.Time
	CreatedBy   string
	ResendCount int
	LastSentAt  time.Time
	AcceptedBy  string
	AcceptedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsExpired reports whether a pending invitation has passed its expiry.
func (i Invitation) IsExpired(now time.Time) bool {
	return i.Status == InvitationPending && now.After(i.ExpiresAt)
}

// EffectiveStatus is the status callers should see: the stored status, with
// expiry evaluated lazily.
func (i Invitation) EffectiveStatus(now time.Time) InvitationStatus {
	if i.IsExpired(now) {
		return InvitationExpired
	}
	return i.Status
}

// IsTerminal reports whether revoke and resend are no longer permitted.
// Expired invitations are not terminal: they can still be revoked or revived.
func (i Invitation) IsTerminal() bool {
	return i.Status == InvitationAccepted || i.Status == InvitationRevoked
}

// NormalizeEmail lowercases and validates a bare address.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// ValidateInvitationRole rejects roles an invitation may not grant.
func ValidateInvitationRole(r Role) error {
	if r != RoleUser && r != RoleAdmin {
		return ErrInvalidRole
	}
	return nil
}
