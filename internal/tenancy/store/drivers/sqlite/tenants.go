package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/aussiebroadwan/gabinete/internal/tenancy/domain"
	"github.com/aussiebroadwan/gabinete/internal/tenancy/store"
)

const tenantColumns = `id, name, slug, active, owner_user_id, created_at, updated_at`

type tenantsRepo struct {
	db dbtx
}

func (r *tenantsRepo) CreateTenant(ctx context.Context, t domain.Tenant) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tenants (`+tenantColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, mapStringNull(t.Slug), t.Active, t.OwnerUserID,
		fmtTime(t.CreatedAt), fmtTime(t.UpdatedAt),
	)
	return mapConstraint(err)
}

func (r *tenantsRepo) GetTenantByID(ctx context.Context, id string) (domain.Tenant, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = ?`, id)
	return scanTenant(row)
}

func (r *tenantsRepo) ListTenants(ctx context.Context) ([]domain.Tenant, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+tenantColumns+` FROM tenants ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *tenantsRepo) UpdateTenant(
	ctx context.Context,
	id string,
	patch domain.TenantPatch,
	now time.Time,
) (domain.Tenant, error) {
	var slug string
	if patch.Slug != nil {
		slug = *patch.Slug
	}

	row := r.db.QueryRowContext(ctx, `
		UPDATE tenants SET
			name          = COALESCE(?, name),
			slug          = CASE WHEN ? THEN NULLIF(?, '') ELSE slug END,
			owner_user_id = COALESCE(?, owner_user_id),
			updated_at    = ?
		WHERE id = ?
		RETURNING `+tenantColumns,
		mapOptionalString(patch.Name),
		patch.Slug != nil, slug,
		mapOptionalString(patch.OwnerUserID),
		fmtTime(now),
		id,
	)

	t, err := scanTenant(row)
	if err != nil {
		return domain.Tenant{}, mapConstraint(err)
	}
	return t, nil
}

func (r *tenantsRepo) SetTenantActive(
	ctx context.Context,
	id string,
	next bool,
	now time.Time,
) (domain.Tenant, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE tenants SET active = ?, updated_at = ?
		WHERE id = ? AND active = ?
		RETURNING `+tenantColumns,
		next, fmtTime(now), id, !next,
	)

	t, err := scanTenant(row)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Tenant{}, r.classifyMiss(ctx, id)
	}
	return t, err
}

// classifyMiss tells a missing tenant apart from a failed precondition.
func (r *tenantsRepo) classifyMiss(ctx context.Context, id string) error {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM tenants WHERE id = ?`, id).Scan(&one)
	if err != nil {
		return mapNotFound(err)
	}
	return store.ErrStale
}

func scanTenant(row scanner) (domain.Tenant, error) {
	var (
		t                domain.Tenant
		slug             sql.NullString
		created, updated string
	)
	if err := row.Scan(&t.ID, &t.Name, &slug, &t.Active, &t.OwnerUserID, &created, &updated); err != nil {
		return domain.Tenant{}, mapNotFound(err)
	}
	t.Slug = mapNullString(slug)

	var err error
	if t.CreatedAt, err = parseTime(created); err != nil {
		return domain.Tenant{}, err
	}
	if t.UpdatedAt, err = parseTime(updated); err != nil {
		return domain.Tenant{}, err
	}
	return t, nil
}
