package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/gabinete/internal/tenancy/domain"
	"github.com/aussiebroadwan/gabinete/internal/tenancy/notify"
	"github.com/aussiebroadwan/gabinete/internal/tenancy/store"
	"github.com/aussiebroadwan/gabinete/pkg/cryptox"
	"github.com/aussiebroadwan/gabinete/pkg/idx"
	"github.com/aussiebroadwan/gabinete/pkg/slogx"
	"go.opentelemetry.io/otel/attribute"
)

// Limiter throttles invitation resends. pkg/ratelimit.FixedWindow satisfies it.
type Limiter interface {
	Check(key string, limit int, window time.Duration) bool
}

// InvitationPolicy holds the tunables of the invitation flow.
type InvitationPolicy struct {
	// TTL is how long a freshly sent token stays valid.
	TTL time.Duration

	// ResendLimit resends are allowed per invitation per ResendWindow.
	ResendLimit  int
	ResendWindow time.Duration

	// AcceptURL is the page invitees land on. The token is appended as the
	// "token" query parameter. Empty means the message carries no link.
	AcceptURL string
}

var DefaultInvitationPolicy = InvitationPolicy{
	TTL:          72 * time.Hour,
	ResendLimit:  3,
	ResendWindow: time.Hour,
}

// InvitationService runs the invitation state machine:
//
//	pending --revoke--> revoked
//	pending --resend--> pending (new token and expiry)
//	pending --accept--> accepted
//	pending --time----> expired (derived, never stored)
type InvitationService struct {
	Store    store.Store
	Limiter  Limiter
	Notifier notify.Notifier
	Policy   InvitationPolicy

	// Clock defaults to time.Now.
	Clock func() time.Time
}

// CreateInviteInput names the tenant, the invitee and the role granted on
// acceptance.
type CreateInviteInput struct {
	TenantID string
	Email    string
	Role     domain.Role
}

// Now is the service clock, exported so callers render the same expiry the
// service enforces.
func (s *InvitationService) Now() time.Time {
	if s.Clock != nil {
		return s.Clock().UTC()
	}
	return time.Now().UTC()
}

func (s *InvitationService) policy() InvitationPolicy {
	p := s.Policy
	if p.TTL <= 0 {
		p.TTL = DefaultInvitationPolicy.TTL
	}
	if p.ResendLimit <= 0 {
		p.ResendLimit = DefaultInvitationPolicy.ResendLimit
	}
	if p.ResendWindow <= 0 {
		p.ResendWindow = DefaultInvitationPolicy.ResendWindow
	}
	return p
}

// CreateInvite issues a new invitation and sends it. At most one live
// pending invitation exists per tenant and email.
func (s *InvitationService) CreateInvite(ctx context.Context, caller domain.Caller, in CreateInviteInput) (_ domain.Invitation, err error) {
	ctx, span := startSpan(ctx, "InvitationService.CreateInvite", attribute.String("tenant.id", in.TenantID))
	defer func() { endSpan(span, err) }()

	log := slogx.FromContext(ctx)

	if err := RequireTenantMember(caller, in.TenantID); err != nil {
		return domain.Invitation{}, err
	}

	email, err := domain.NormalizeEmail(in.Email)
	if err != nil {
		return domain.Invitation{}, invalid(err)
	}
	if err := domain.ValidateInvitationRole(in.Role); err != nil {
		return domain.Invitation{}, invalid(err)
	}
	// Granting admin takes admin.
	if in.Role == domain.RoleAdmin && caller.Role < domain.RoleAdmin {
		return domain.Invitation{}, fmt.Errorf("%w: only admins may invite admins", ErrUnauthorized)
	}

	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.Invitation{}, internal(ctx, "failed to generate invitation token", err)
	}

	pol := s.policy()
	now := s.Now()
	inv := domain.Invitation{
		ID:         idx.NewAt(now).String(),
		TenantID:   in.TenantID,
		Email:      email,
		TokenHash:  cryptox.FingerprintToken(token),
		Role:       in.Role,
		Status:     domain.InvitationPending,
		ExpiresAt:  now.Add(pol.TTL),
		CreatedBy:  caller.UserID,
		LastSentAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	span.SetAttributes(attribute.String("invitation.id", inv.ID))

	var tenant domain.Tenant
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		t, err := tx.Tenants().GetTenantByID(ctx, in.TenantID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrNotFound
			}
			return internal(ctx, "failed to fetch tenant", err, slog.String("tenant_id", in.TenantID))
		}
		if !t.Active {
			return conflictf("tenant is inactive")
		}
		tenant = t

		_, err = tx.Invitations().FindPendingInvitation(ctx, in.TenantID, email, now)
		switch {
		case err == nil:
			return conflictf("a pending invitation already exists for this email")
		case !errors.Is(err, store.ErrNotFound):
			return internal(ctx, "failed to look up pending invitations", err)
		}

		if err := tx.Invitations().CreateInvitation(ctx, inv); err != nil {
			return internal(ctx, "failed to create invitation", err, slog.String("invitation_id", inv.ID))
		}
		return nil
	})
	if err != nil {
		return domain.Invitation{}, err
	}

	log.Info("invitation created",
		slog.String("invitation_id", inv.ID),
		slog.String("tenant_id", inv.TenantID),
		slog.String("role", inv.Role.String()),
		slog.String("created_by", caller.UserID),
		slog.Time("expires_at", inv.ExpiresAt),
	)

	if err := s.deliver(ctx, tenant, inv, token, false); err != nil {
		return domain.Invitation{}, err
	}
	return inv, nil
}

// ListInvites returns a tenant's invitations, newest first.
func (s *InvitationService) ListInvites(ctx context.Context, caller domain.Caller, tenantID string) ([]domain.Invitation, error) {
	if err := RequireTenantMember(caller, tenantID); err != nil {
		return nil, err
	}

	invs, err := s.Store.Invitations().ListInvitationsByTenant(ctx, tenantID)
	if err != nil {
		return nil, internal(ctx, "failed to list invitations", err, slog.String("tenant_id", tenantID))
	}
	return invs, nil
}

// ListMembers returns the users who joined a tenant through an invitation.
func (s *InvitationService) ListMembers(ctx context.Context, caller domain.Caller, tenantID string) ([]domain.Member, error) {
	if err := RequireTenantMember(caller, tenantID); err != nil {
		return nil, err
	}

	members, err := s.Store.Members().ListMembers(ctx, tenantID)
	if err != nil {
		return nil, internal(ctx, "failed to list members", err, slog.String("tenant_id", tenantID))
	}
	return members, nil
}

// RevokeInvite moves a pending invitation, expired or not, to revoked.
// Revoking an accepted or already revoked invitation is a conflict.
func (s *InvitationService) RevokeInvite(ctx context.Context, caller domain.Caller, inviteID string) (_ domain.Invitation, err error) {
	ctx, span := startSpan(ctx, "InvitationService.RevokeInvite", attribute.String("invitation.id", inviteID))
	defer func() { endSpan(span, err) }()

	log := slogx.FromContext(ctx)

	inv, err := s.authorize(ctx, caller, inviteID)
	if err != nil {
		return domain.Invitation{}, err
	}
	if inv.IsTerminal() {
		return domain.Invitation{}, conflictf("invitation is already %s", inv.Status)
	}

	// Keyed on the token read above so a concurrent resend and revoke cannot
	// both apply.
	revoked, err := s.Store.Invitations().RevokeInvitation(ctx, store.InvitationTransition{
		ID:        inv.ID,
		TokenHash: inv.TokenHash,
		Now:       s.Now(),
	})
	switch {
	case err == nil:
	case errors.Is(err, store.ErrStale):
		return domain.Invitation{}, conflictf("invitation changed concurrently")
	case errors.Is(err, store.ErrNotFound):
		return domain.Invitation{}, ErrNotFound
	default:
		return domain.Invitation{}, internal(ctx, "failed to revoke invitation", err, slog.String("invitation_id", inv.ID))
	}

	log.Info("invitation revoked",
		slog.String("invitation_id", inv.ID),
		slog.String("tenant_id", inv.TenantID),
		slog.Bool("was_expired", inv.IsExpired(revoked.UpdatedAt)),
		slog.String("revoked_by", caller.UserID),
	)
	return revoked, nil
}

// ResendInvite issues a fresh token and expiry for a pending invitation,
// reviving it if it had expired, and sends it again. Resends are throttled
// per invitation before the invitation's state is even considered.
func (s *InvitationService) ResendInvite(ctx context.Context, caller domain.Caller, inviteID string) (_ domain.Invitation, err error) {
	ctx, span := startSpan(ctx, "InvitationService.ResendInvite", attribute.String("invitation.id", inviteID))
	defer func() { endSpan(span, err) }()

	log := slogx.FromContext(ctx)

	inv, err := s.authorize(ctx, caller, inviteID)
	if err != nil {
		return domain.Invitation{}, err
	}

	pol := s.policy()
	if s.Limiter != nil && !s.Limiter.Check(resendKey(inv.ID), pol.ResendLimit, pol.ResendWindow) {
		log.Warn("invitation resend throttled",
			slog.String("invitation_id", inv.ID),
			slog.String("caller", caller.UserID),
		)
		return domain.Invitation{}, fmt.Errorf("%w: too many resends, try again later", ErrRateLimited)
	}

	if inv.IsTerminal() {
		return domain.Invitation{}, conflictf("invitation is already %s", inv.Status)
	}

	tenant, err := s.load(ctx, inv.TenantID)
	if err != nil {
		return domain.Invitation{}, err
	}
	if !tenant.Active {
		return domain.Invitation{}, conflictf("tenant is inactive")
	}

	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.Invitation{}, internal(ctx, "failed to generate invitation token", err)
	}

	now := s.Now()
	rotated, err := s.Store.Invitations().RotateInvitation(ctx, store.InvitationTransition{
		ID:        inv.ID,
		TokenHash: inv.TokenHash,
		Now:       now,
	}, cryptox.FingerprintToken(token), now.Add(pol.TTL))
	switch {
	case err == nil:
	case errors.Is(err, store.ErrStale):
		return domain.Invitation{}, conflictf("invitation changed concurrently")
	case errors.Is(err, store.ErrNotFound):
		return domain.Invitation{}, ErrNotFound
	default:
		return domain.Invitation{}, internal(ctx, "failed to rotate invitation token", err, slog.String("invitation_id", inv.ID))
	}

	log.Info("invitation resent",
		slog.String("invitation_id", rotated.ID),
		slog.String("tenant_id", rotated.TenantID),
		slog.Int("resend_count", rotated.ResendCount),
		slog.Bool("revived", inv.IsExpired(now)),
		slog.String("resent_by", caller.UserID),
	)

	if err := s.deliver(ctx, tenant, rotated, token, true); err != nil {
		return domain.Invitation{}, err
	}
	return rotated, nil
}

// AcceptInvite redeems token for the calling user and records the
// membership. The caller's email must be the invited one.
func (s *InvitationService) AcceptInvite(ctx context.Context, caller domain.Caller, token string) (_ domain.Invitation, err error) {
	ctx, span := startSpan(ctx, "InvitationService.AcceptInvite")
	defer func() { endSpan(span, err) }()

	log := slogx.FromContext(ctx)

	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Invitation{}, fmt.Errorf("%w: token is required", ErrValidation)
	}
	if caller.UserID == "" {
		return domain.Invitation{}, fmt.Errorf("%w: missing caller", ErrUnauthenticated)
	}

	hash := cryptox.FingerprintToken(token)
	inv, err := s.Store.Invitations().GetInvitationByTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("invitation accept with unknown token", slog.String("user_id", caller.UserID))
			return domain.Invitation{}, ErrNotFound
		}
		return domain.Invitation{}, internal(ctx, "failed to fetch invitation by token", err)
	}
	span.SetAttributes(attribute.String("invitation.id", inv.ID))

	if !strings.EqualFold(caller.Email, inv.Email) {
		log.Warn("invitation accept by wrong user",
			slog.String("invitation_id", inv.ID),
			slog.String("user_id", caller.UserID),
		)
		return domain.Invitation{}, fmt.Errorf("%w: invitation was issued to a different email", ErrUnauthorized)
	}

	now := s.Now()
	if status := inv.EffectiveStatus(now); status != domain.InvitationPending {
		return domain.Invitation{}, conflictf("invitation is %s", status)
	}

	var accepted domain.Invitation
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		tenant, err := tx.Tenants().GetTenantByID(ctx, inv.TenantID)
		if err != nil {
			return internal(ctx, "failed to fetch tenant", err, slog.String("tenant_id", inv.TenantID))
		}
		if !tenant.Active {
			return conflictf("tenant is inactive")
		}

		accepted, err = tx.Invitations().AcceptInvitation(ctx, store.InvitationTransition{
			ID:        inv.ID,
			TokenHash: hash,
			Now:       now,
		}, caller.UserID)
		switch {
		case err == nil:
		case errors.Is(err, store.ErrStale), errors.Is(err, store.ErrNotFound):
			return conflictf("invitation is no longer pending")
		default:
			return internal(ctx, "failed to accept invitation", err, slog.String("invitation_id", inv.ID))
		}

		err = tx.Members().AddMember(ctx, domain.Member{
			TenantID:     inv.TenantID,
			UserID:       caller.UserID,
			Email:        inv.Email,
			Role:         inv.Role,
			InvitationID: inv.ID,
			JoinedAt:     now,
		})
		switch {
		case err == nil:
			return nil
		case errors.Is(err, store.ErrAlreadyExists):
			return conflictf("user is already a member of this tenant")
		default:
			return internal(ctx, "failed to add member", err, slog.String("tenant_id", inv.TenantID))
		}
	})
	if err != nil {
		return domain.Invitation{}, err
	}

	log.Info("invitation accepted",
		slog.String("invitation_id", accepted.ID),
		slog.String("tenant_id", accepted.TenantID),
		slog.String("user_id", caller.UserID),
		slog.String("role", accepted.Role.String()),
	)
	return accepted, nil
}

// authorize loads an invitation and checks the caller may manage its
// tenant. For anyone but a super-admin a missing invitation is reported as
// ErrUnauthorized too, so ids cannot be probed across tenants.
func (s *InvitationService) authorize(ctx context.Context, caller domain.Caller, inviteID string) (domain.Invitation, error) {
	if !caller.IsSuperAdmin() && caller.TenantID == "" {
		return domain.Invitation{}, RequireTenantMember(caller, "")
	}

	notFound := ErrNotFound
	if !caller.IsSuperAdmin() {
		notFound = fmt.Errorf("%w: not a member of this tenant", ErrUnauthorized)
	}
	if !idx.Valid(inviteID) {
		return domain.Invitation{}, notFound
	}

	inv, err := s.Store.Invitations().GetInvitationByID(ctx, inviteID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Invitation{}, notFound
		}
		return domain.Invitation{}, internal(ctx, "failed to fetch invitation", err, slog.String("invitation_id", inviteID))
	}

	if err := RequireTenantMember(caller, inv.TenantID); err != nil {
		slogx.FromContext(ctx).Warn("cross-tenant invitation access denied",
			slog.String("invitation_id", inv.ID),
			slog.String("caller_tenant_id", caller.TenantID),
		)
		return domain.Invitation{}, err
	}
	return inv, nil
}

func (s *InvitationService) load(ctx context.Context, tenantID string) (domain.Tenant, error) {
	tenant, err := s.Store.Tenants().GetTenantByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Tenant{}, ErrNotFound
		}
		return domain.Tenant{}, internal(ctx, "failed to fetch tenant", err, slog.String("tenant_id", tenantID))
	}
	return tenant, nil
}

// deliver sends the raw token to the invitee. The invitation is already
// committed, so a failed delivery surfaces as ErrInternal and the invitation
// can be resent.
func (s *InvitationService) deliver(ctx context.Context, tenant domain.Tenant, inv domain.Invitation, token string, resend bool) error {
	if s.Notifier == nil {
		return nil
	}

	msg := notify.InvitationMessage{
		InvitationID: inv.ID,
		TenantID:     inv.TenantID,
		TenantName:   tenant.Name,
		Email:        inv.Email,
		Role:         inv.Role.String(),
		Token:        token,
		AcceptURL:    acceptLink(s.Policy.AcceptURL, token),
		ExpiresAt:    inv.ExpiresAt,
		Resend:       resend,
	}
	if err := s.Notifier.SendInvitation(ctx, msg); err != nil {
		return internal(ctx, "failed to deliver invitation", err,
			slog.String("invitation_id", inv.ID),
			slog.Bool("resend", resend),
		)
	}
	return nil
}

func resendKey(inviteID string) string {
	return "invite-resend:" + inviteID
}

func acceptLink(base, token string) string {
	if base == "" {
		return ""
	}
	u, err := url.Parse(base)
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}
