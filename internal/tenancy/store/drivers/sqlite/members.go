package sqlite

import (
	"context"
	"fmt"

	"github.com/aussiebroadwan/gabinete/internal/tenancy/domain"
)

type membersRepo struct {
	db dbtx
}

func (r *membersRepo) AddMember(ctx context.Context, m domain.Member) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tenant_members (tenant_id, user_id, email, role, invitation_id, joined_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.TenantID, m.UserID, m.Email, m.Role.String(), mapStringNull(m.InvitationID), fmtTime(m.JoinedAt),
	)
	return mapConstraint(err)
}

func (r *membersRepo) ListMembers(ctx context.Context, tenantID string) ([]domain.Member, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT tenant_id, user_id, email, role, COALESCE(invitation_id, ''), joined_at
		 FROM tenant_members WHERE tenant_id = ? ORDER BY joined_at, user_id`,
		tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Member
	for rows.Next() {
		var (
			m          domain.Member
			role, when string
		)
		if err := rows.Scan(&m.TenantID, &m.UserID, &m.Email, &role, &m.InvitationID, &when); err != nil {
			return nil, err
		}
		var ok bool
		if m.Role, ok = domain.ParseRole(role); !ok {
			return nil, fmt.Errorf("sqlite: member %s has unknown role %q", m.UserID, role)
		}
		if m.JoinedAt, err = parseTime(when); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
