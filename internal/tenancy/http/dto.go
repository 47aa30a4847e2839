package http

import (
	"time"

	"github.com/aussiebroadwan/gabinete/internal/tenancy/domain"
	"github.com/aussiebroadwan/gabinete/pkg/gabinetesdk"
)

func toTenant(t domain.Tenant) gabinetesdk.Tenant {
	return gabinetesdk.Tenant{
		ID:          t.ID,
		Name:        t.Name,
		Slug:        t.Slug,
		Active:      t.Active,
		OwnerUserID: t.OwnerUserID,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func toTenants(ts []domain.Tenant) []gabinetesdk.Tenant {
	out := make([]gabinetesdk.Tenant, 0, len(ts))
	for _, t := range ts {
		out = append(out, toTenant(t))
	}
	return out
}

// toInvitation reports the effective status as of now, so lapsed pending
// invitations read as expired.
func toInvitation(inv domain.Invitation, now time.Time) gabinetesdk.Invitation {
	return gabinetesdk.Invitation{
		ID:          inv.ID,
		TenantID:    inv.TenantID,
		Email:       inv.Email,
		Role:        inv.Role.String(),
		Status:      string(inv.EffectiveStatus(now)),
		ExpiresAt:   inv.ExpiresAt,
		CreatedBy:   inv.CreatedBy,
		ResendCount: inv.ResendCount,
		LastSentAt:  inv.LastSentAt,
		AcceptedBy:  inv.AcceptedBy,
		AcceptedAt:  inv.AcceptedAt,
		CreatedAt:   inv.CreatedAt,
	}
}

func toInvitations(invs []domain.Invitation, now time.Time) []gabinetesdk.Invitation {
	out := make([]gabinetesdk.Invitation, 0, len(invs))
	for _, inv := range invs {
		out = append(out, toInvitation(inv, now))
	}
	return out
}

func toMembers(ms []domain.Member) []gabinetesdk.Member {
	out := make([]gabinetesdk.Member, 0, len(ms))
	for _, m := range ms {
		out = append(out, gabinetesdk.Member{
			TenantID:     m.TenantID,
			UserID:       m.UserID,
			Email:        m.Email,
			Role:         m.Role.String(),
			InvitationID: m.InvitationID,
			JoinedAt:     m.JoinedAt,
		})
	}
	return out
}
