package service

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/aussiebroadwan/gabinete/internal/tenancy/domain"
	"github.com/aussiebroadwan/gabinete/pkg/cryptox"
	"github.com/aussiebroadwan/gabinete/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestCreateInvite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tenant := f.tenant(t, "Acme")

	inv, err := f.invites.CreateInvite(ctx, adminOf(tenant.ID), CreateInviteInput{
		TenantID: tenant.ID,
		Email:    " Alice@Example.com ",
		Role:     domain.RoleUser,
	})
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", inv.Email)
	require.Equal(t, domain.InvitationPending, inv.Status)
	require.Equal(t, f.clock.Now().Add(72*time.Hour), inv.ExpiresAt)
	require.Equal(t, adminOf(tenant.ID).UserID, inv.CreatedBy)
	require.Zero(t, inv.ResendCount)

	msg := f.outbox.last(t)
	require.Equal(t, inv.ID, msg.InvitationID)
	require.Equal(t, "Acme", msg.TenantName)
	require.False(t, msg.Resend)
	require.True(t, cryptox.FingerprintMatches(msg.Token, inv.TokenHash))

	link, err := url.Parse(msg.AcceptURL)
	require.NoError(t, err)
	require.Equal(t, msg.Token, link.Query().Get("token"))

	t.Run("second pending invite for the same email conflicts", func(t *testing.T) {
		_, err := f.invites.CreateInvite(ctx, adminOf(tenant.ID), CreateInviteInput{
			TenantID: tenant.ID,
			Email:    "alice@example.com",
		})
		require.ErrorIs(t, err, ErrConflict)
	})

	t.Run("expired pending invite does not block a new one", func(t *testing.T) {
		other, _ := f.invite(t, tenant.ID, "bob@example.com")
		f.clock.Advance(73 * time.Hour)
		again, err := f.invites.CreateInvite(ctx, adminOf(tenant.ID), CreateInviteInput{
			TenantID: tenant.ID,
			Email:    "bob@example.com",
		})
		require.NoError(t, err)
		require.NotEqual(t, other.ID, again.ID)
	})

	t.Run("invalid email", func(t *testing.T) {
		_, err := f.invites.CreateInvite(ctx, adminOf(tenant.ID), CreateInviteInput{TenantID: tenant.ID, Email: "nope"})
		require.ErrorIs(t, err, ErrValidation)
		require.ErrorIs(t, err, domain.ErrInvalidEmail)
	})

	t.Run("super_admin cannot be granted", func(t *testing.T) {
		_, err := f.invites.CreateInvite(ctx, adminOf(tenant.ID), CreateInviteInput{
			TenantID: tenant.ID,
			Email:    "carol@example.com",
			Role:     domain.RoleSuperAdmin,
		})
		require.ErrorIs(t, err, ErrValidation)
	})

	t.Run("plain users cannot invite admins", func(t *testing.T) {
		user := domain.Caller{UserID: "u", Email: "u@acme.test", Role: domain.RoleUser, TenantID: tenant.ID}
		_, err := f.invites.CreateInvite(ctx, user, CreateInviteInput{
			TenantID: tenant.ID,
			Email:    "dave@example.com",
			Role:     domain.RoleAdmin,
		})
		require.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestCreateInviteTenantState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	t.Run("unknown tenant", func(t *testing.T) {
		_, err := f.invites.CreateInvite(ctx, superAdmin, CreateInviteInput{
			TenantID: idx.New().String(),
			Email:    "alice@example.com",
		})
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("inactive tenant", func(t *testing.T) {
		tenant := f.tenant(t, "Dormant")
		_, err := f.tenants.ToggleTenantStatus(ctx, superAdmin, tenant.ID)
		require.NoError(t, err)

		_, err = f.invites.CreateInvite(ctx, adminOf(tenant.ID), CreateInviteInput{
			TenantID: tenant.ID,
			Email:    "alice@example.com",
		})
		require.ErrorIs(t, err, ErrConflict)
		require.Zero(t, f.outbox.count())
	})
}

func TestCreateInviteDeliveryFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tenant := f.tenant(t, "Acme")
	f.outbox.err = errors.New("smtp relay down")

	_, err := f.invites.CreateInvite(ctx, adminOf(tenant.ID), CreateInviteInput{
		TenantID: tenant.ID,
		Email:    "alice@example.com",
	})
	require.ErrorIs(t, err, ErrInternal)
	require.NotContains(t, err.Error(), "smtp")

	// The invitation is committed and can be resent once delivery recovers.
	list, err := f.invites.ListInvites(ctx, adminOf(tenant.ID), tenant.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	f.outbox.err = nil
	_, err = f.invites.ResendInvite(ctx, adminOf(tenant.ID), list[0].ID)
	require.NoError(t, err)
	require.Equal(t, 1, f.outbox.count())
}

func TestRevokeInvite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tenant := f.tenant(t, "Acme")
	admin := adminOf(tenant.ID)

	t.Run("pending to revoked, second revoke conflicts", func(t *testing.T) {
		inv, _ := f.invite(t, tenant.ID, "alice@example.com")

		revoked, err := f.invites.RevokeInvite(ctx, admin, inv.ID)
		require.NoError(t, err)
		require.Equal(t, domain.InvitationRevoked, revoked.Status)

		_, err = f.invites.RevokeInvite(ctx, admin, inv.ID)
		require.ErrorIs(t, err, ErrConflict)
	})

	t.Run("expired invitation can still be revoked", func(t *testing.T) {
		inv, _ := f.invite(t, tenant.ID, "bob@example.com")
		f.clock.Advance(100 * time.Hour)
		require.Equal(t, domain.InvitationExpired, inv.EffectiveStatus(f.invites.Now()))

		revoked, err := f.invites.RevokeInvite(ctx, admin, inv.ID)
		require.NoError(t, err)
		require.Equal(t, domain.InvitationRevoked, revoked.Status)
	})

	t.Run("accepted invitation conflicts and is left unchanged", func(t *testing.T) {
		inv, token := f.invite(t, tenant.ID, "carol@example.com")
		accepted, err := f.invites.AcceptInvite(ctx, invitee("carol@example.com"), token)
		require.NoError(t, err)

		_, err = f.invites.RevokeInvite(ctx, admin, inv.ID)
		require.ErrorIs(t, err, ErrConflict)

		stored, err := f.store.Invitations().GetInvitationByID(ctx, inv.ID)
		require.NoError(t, err)
		require.Equal(t, accepted, stored)
		require.Equal(t, domain.InvitationAccepted, stored.Status)
	})

	t.Run("unknown invitation", func(t *testing.T) {
		_, err := f.invites.RevokeInvite(ctx, superAdmin, idx.New().String())
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestResendInviteRotatesToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tenant := f.tenant(t, "Acme")
	admin := adminOf(tenant.ID)

	inv, oldToken := f.invite(t, tenant.ID, "alice@example.com")
	f.clock.Advance(time.Hour)

	resent, err := f.invites.ResendInvite(ctx, admin, inv.ID)
	require.NoError(t, err)
	require.Equal(t, inv.ResendCount+1, resent.ResendCount)
	require.NotEqual(t, inv.TokenHash, resent.TokenHash)
	require.Equal(t, f.clock.Now(), resent.LastSentAt)
	require.Equal(t, f.clock.Now().Add(72*time.Hour), resent.ExpiresAt)

	msg := f.outbox.last(t)
	require.True(t, msg.Resend)
	require.NotEqual(t, oldToken, msg.Token)
	require.True(t, cryptox.FingerprintMatches(msg.Token, resent.TokenHash))

	// The old token is dead.
	_, err = f.invites.AcceptInvite(ctx, invitee("alice@example.com"), oldToken)
	require.ErrorIs(t, err, ErrNotFound)

	accepted, err := f.invites.AcceptInvite(ctx, invitee("alice@example.com"), msg.Token)
	require.NoError(t, err)
	require.Equal(t, domain.InvitationAccepted, accepted.Status)

	_, err = f.invites.ResendInvite(ctx, admin, inv.ID)
	require.ErrorIs(t, err, ErrConflict)
}

func TestResendInviteRevivesExpired(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tenant := f.tenant(t, "Acme")

	inv, _ := f.invite(t, tenant.ID, "alice@example.com")
	f.clock.Advance(96 * time.Hour)
	require.Equal(t, domain.InvitationExpired, inv.EffectiveStatus(f.invites.Now()))

	resent, err := f.invites.ResendInvite(ctx, adminOf(tenant.ID), inv.ID)
	require.NoError(t, err)
	require.Equal(t, domain.InvitationPending, resent.EffectiveStatus(f.invites.Now()))
}

func TestResendInviteIsThrottled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tenant := f.tenant(t, "Acme")
	admin := adminOf(tenant.ID)

	inv, _ := f.invite(t, tenant.ID, "alice@example.com")
	for range 3 {
		_, err := f.invites.ResendInvite(ctx, admin, inv.ID)
		require.NoError(t, err)
	}

	_, err := f.invites.ResendInvite(ctx, admin, inv.ID)
	require.ErrorIs(t, err, ErrRateLimited)

	// Throttling wins over state: a revoked invitation still reports the limit.
	_, err = f.invites.RevokeInvite(ctx, admin, inv.ID)
	require.NoError(t, err)
	_, err = f.invites.ResendInvite(ctx, admin, inv.ID)
	require.ErrorIs(t, err, ErrRateLimited)

	// Once the window passes the state check decides again.
	f.clock.Advance(time.Hour + time.Second)
	_, err = f.invites.ResendInvite(ctx, admin, inv.ID)
	require.ErrorIs(t, err, ErrConflict)

	// Other invitations have their own budget.
	other, _ := f.invite(t, tenant.ID, "bob@example.com")
	_, err = f.invites.ResendInvite(ctx, admin, other.ID)
	require.NoError(t, err)
}

func TestCrossTenantAccessIsUnauthorized(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	t1 := f.tenant(t, "One")
	t2 := f.tenant(t, "Two")

	inv, token := f.invite(t, t2.ID, "alice@example.com")
	intruder := adminOf(t1.ID)

	// Existing and missing invitations look the same from another tenant.
	for _, id := range []string{inv.ID, idx.New().String(), "garbage"} {
		_, err := f.invites.RevokeInvite(ctx, intruder, id)
		require.ErrorIs(t, err, ErrUnauthorized)

		_, err = f.invites.ResendInvite(ctx, intruder, id)
		require.ErrorIs(t, err, ErrUnauthorized)
	}

	_, err := f.invites.ListInvites(ctx, intruder, t2.ID)
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.invites.ListMembers(ctx, intruder, t2.ID)
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.invites.CreateInvite(ctx, intruder, CreateInviteInput{TenantID: t2.ID, Email: "mallory@example.com"})
	require.ErrorIs(t, err, ErrUnauthorized)

	// Nothing was touched.
	stored, err := f.store.Invitations().GetInvitationByID(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, domain.InvitationPending, stored.Status)
	require.Zero(t, stored.ResendCount)
	require.True(t, cryptox.FingerprintMatches(token, stored.TokenHash))

	// Super-admins cross tenants.
	_, err = f.invites.ResendInvite(ctx, superAdmin, inv.ID)
	require.NoError(t, err)
}

func TestAcceptInvite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tenant := f.tenant(t, "Acme")

	t.Run("wrong email", func(t *testing.T) {
		_, token := f.invite(t, tenant.ID, "alice@example.com")
		_, err := f.invites.AcceptInvite(ctx, invitee("eve@example.com"), token)
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("records membership once", func(t *testing.T) {
		_, token := f.invite(t, tenant.ID, "bob@example.com")
		bob := invitee("bob@example.com")

		accepted, err := f.invites.AcceptInvite(ctx, bob, token)
		require.NoError(t, err)
		require.Equal(t, bob.UserID, accepted.AcceptedBy)
		require.NotNil(t, accepted.AcceptedAt)

		members, err := f.invites.ListMembers(ctx, adminOf(tenant.ID), tenant.ID)
		require.NoError(t, err)
		require.Len(t, members, 1)
		require.Equal(t, bob.UserID, members[0].UserID)
		require.Equal(t, accepted.ID, members[0].InvitationID)

		_, err = f.invites.AcceptInvite(ctx, bob, token)
		require.ErrorIs(t, err, ErrConflict)
	})

	t.Run("expired token", func(t *testing.T) {
		_, token := f.invite(t, tenant.ID, "carol@example.com")
		f.clock.Advance(73 * time.Hour)
		_, err := f.invites.AcceptInvite(ctx, invitee("carol@example.com"), token)
		require.ErrorIs(t, err, ErrConflict)
	})

	t.Run("revoked token", func(t *testing.T) {
		inv, token := f.invite(t, tenant.ID, "dave@example.com")
		_, err := f.invites.RevokeInvite(ctx, adminOf(tenant.ID), inv.ID)
		require.NoError(t, err)
		_, err = f.invites.AcceptInvite(ctx, invitee("dave@example.com"), token)
		require.ErrorIs(t, err, ErrConflict)
	})

	t.Run("empty and unknown tokens", func(t *testing.T) {
		_, err := f.invites.AcceptInvite(ctx, invitee("x@example.com"), " ")
		require.ErrorIs(t, err, ErrValidation)

		_, err = f.invites.AcceptInvite(ctx, invitee("x@example.com"), "not-a-token")
		require.ErrorIs(t, err, ErrNotFound)
	})
}
