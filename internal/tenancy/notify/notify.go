// Package notify delivers invitation links to invitees.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/gabinete/pkg/slogx"
)

// InvitationMessage is everything a delivery channel needs to reach an
// invitee. Token is the raw invitation token and must not be logged.
type InvitationMessage struct {
	InvitationID string    `json:"invitation_id"`
	TenantID     string    `json:"tenant_id"`
	TenantName   string    `json:"tenant_name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	Token        string    `json:"token"`
	AcceptURL    string    `json:"accept_url,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	Resend       bool      `json:"resend"`
}

// Notifier sends invitation messages. Implementations must be safe for
// concurrent use.
type Notifier interface {
	SendInvitation(ctx context.Context, msg InvitationMessage) error
}

// LogNotifier writes invitations to the request logger instead of sending
// them. It is the default when no webhook is configured and is meant for
// local development.
type LogNotifier struct{}

func (LogNotifier) SendInvitation(ctx context.Context, msg InvitationMessage) error {
	slogx.FromContext(ctx).Info("invitation ready for delivery",
		slog.String("invitation_id", msg.InvitationID),
		slog.String("tenant_id", msg.TenantID),
		slog.String("email", msg.Email),
		slog.String("accept_url", msg.AcceptURL),
		slog.Time("expires_at", msg.ExpiresAt),
		slog.Bool("resend", msg.Resend),
	)
	return nil
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, msg InvitationMessage) error

func (f NotifierFunc) SendInvitation(ctx context.Context, msg InvitationMessage) error {
	return f(ctx, msg)
}
