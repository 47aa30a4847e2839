package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/gabinete/internal/tenancy/domain"
	"github.com/aussiebroadwan/gabinete/internal/tenancy/store"
)

const invitationColumns = `id, tenant_id, email, token_hash, role, status, expires_at, created_by,
	resend_count, last_sent_at, accepted_by, accepted_at, created_at, updated_at`

type invitationsRepo struct {
	db dbtx
}

func (r *invitationsRepo) CreateInvitation(ctx context.Context, inv domain.Invitation) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO invitations (`+invitationColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, NULL, ?, ?)`,
		inv.ID, inv.TenantID, inv.Email, inv.TokenHash, inv.Role.String(), string(inv.Status),
		fmtTime(inv.ExpiresAt), inv.CreatedBy, inv.ResendCount, fmtTime(inv.LastSentAt),
		fmtTime(inv.CreatedAt), fmtTime(inv.UpdatedAt),
	)
	return mapConstraint(err)
}

func (r *invitationsRepo) GetInvitationByID(ctx context.Context, id string) (domain.Invitation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+invitationColumns+` FROM invitations WHERE id = ?`, id)
	return scanInvitation(row)
}

func (r *invitationsRepo) GetInvitationByTokenHash(ctx context.Context, hash string) (domain.Invitation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+invitationColumns+` FROM invitations WHERE token_hash = ?`, hash)
	return scanInvitation(row)
}

func (r *invitationsRepo) ListInvitationsByTenant(ctx context.Context, tenantID string) ([]domain.Invitation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE tenant_id = ? ORDER BY created_at DESC, id DESC`,
		tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (r *invitationsRepo) FindPendingInvitation(
	ctx context.Context,
	tenantID, email string,
	now time.Time,
) (domain.Invitation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+invitationColumns+` FROM invitations
		 WHERE tenant_id = ? AND email = ? AND status = 'pending' AND expires_at >= ?
		 ORDER BY created_at DESC LIMIT 1`,
		tenantID, email, fmtTime(now),
	)
	return scanInvitation(row)
}

func (r *invitationsRepo) RevokeInvitation(ctx context.Context, tr store.InvitationTransition) (domain.Invitation, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE invitations SET status = 'revoked', updated_at = ?
		WHERE id = ? AND status = 'pending' AND (? = '' OR token_hash = ?)
		RETURNING `+invitationColumns,
		fmtTime(tr.Now), tr.ID, tr.TokenHash, tr.TokenHash,
	)
	return r.transitioned(ctx, tr.ID, row)
}

func (r *invitationsRepo) RotateInvitation(
	ctx context.Context,
	tr store.InvitationTransition,
	newTokenHash string,
	expiresAt time.Time,
) (domain.Invitation, error) {
	now := fmtTime(tr.Now)
	row := r.db.QueryRowContext(ctx, `
		UPDATE invitations SET
			token_hash   = ?,
			expires_at   = ?,
			resend_count = resend_count + 1,
			last_sent_at = ?,
			updated_at   = ?
		WHERE id = ? AND status = 'pending' AND (? = '' OR token_hash = ?)
		RETURNING `+invitationColumns,
		newTokenHash, fmtTime(expiresAt), now, now,
		tr.ID, tr.TokenHash, tr.TokenHash,
	)
	return r.transitioned(ctx, tr.ID, row)
}

func (r *invitationsRepo) AcceptInvitation(
	ctx context.Context,
	tr store.InvitationTransition,
	userID string,
) (domain.Invitation, error) {
	if tr.TokenHash == "" {
		return domain.Invitation{}, errors.New("sqlite: accept requires a token hash")
	}

	now := fmtTime(tr.Now)
	row := r.db.QueryRowContext(ctx, `
		UPDATE invitations SET
			status      = 'accepted',
			accepted_by = ?,
			accepted_at = ?,
			updated_at  = ?
		WHERE id = ? AND token_hash = ? AND status = 'pending' AND expires_at >= ?
		RETURNING `+invitationColumns,
		userID, now, now,
		tr.ID, tr.TokenHash, now,
	)
	return r.transitioned(ctx, tr.ID, row)
}

// transitioned scans the RETURNING row of a conditional update. No row means
// either the invitation does not exist or its state did not match.
func (r *invitationsRepo) transitioned(ctx context.Context, id string, row *sql.Row) (domain.Invitation, error) {
	inv, err := scanInvitation(row)
	if !errors.Is(err, store.ErrNotFound) {
		return inv, mapConstraint(err)
	}

	var one int
	if err := r.db.QueryRowContext(ctx, `SELECT 1 FROM invitations WHERE id = ?`, id).Scan(&one); err != nil {
		return domain.Invitation{}, mapNotFound(err)
	}
	return domain.Invitation{}, store.ErrStale
}

func scanInvitation(row scanner) (domain.Invitation, error) {
	var (
		inv                                 domain.Invitation
		role, status                        string
		expires, lastSent, created, updated string
		acceptedBy, acceptedAt              sql.NullString
	)
	err := row.Scan(
		&inv.ID, &inv.TenantID, &inv.Email, &inv.TokenHash, &role, &status, &expires, &inv.CreatedBy,
		&inv.ResendCount, &lastSent, &acceptedBy, &acceptedAt, &created, &updated,
	)
	if err != nil {
		return domain.Invitation{}, mapNotFound(err)
	}

	var ok bool
	if inv.Role, ok = domain.ParseRole(role); !ok {
		return domain.Invitation{}, fmt.Errorf("sqlite: invitation %s has unknown role %q", inv.ID, role)
	}
	inv.Status = domain.InvitationStatus(status)
	inv.AcceptedBy = mapNullString(acceptedBy)

	for _, f := range []struct {
		dst *time.Time
		src string
	}{
		{&inv.ExpiresAt, expires},
		{&inv.LastSentAt, lastSent},
		{&inv.CreatedAt, created},
		{&inv.UpdatedAt, updated},
	} {
		if *f.dst, err = parseTime(f.src); err != nil {
			return domain.Invitation{}, err
		}
	}

	if acceptedAt.Valid {
		t, err := parseTime(acceptedAt.String)
		if err != nil {
			return domain.Invitation{}, err
		}
		inv.AcceptedAt = &t
	}

	return inv, nil
}
