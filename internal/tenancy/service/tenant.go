package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/gabinete/internal/tenancy/domain"
	"github.com/aussiebroadwan/gabinete/internal/tenancy/store"
	"github.com/aussiebroadwan/gabinete/pkg/idx"
	"github.com/aussiebroadwan/gabinete/pkg/slogx"
	"go.opentelemetry.io/otel/attribute"
)

// maxToggleAttempts bounds how often ToggleTenantStatus re-reads and retries
// after losing a compare-and-swap to a concurrent writer.
const maxToggleAttempts = 3

// TenantService provisions tenants. Every operation is super-admin only.
type TenantService struct {
	Store store.Store

	// Clock defaults to time.Now.
	Clock func() time.Time
}

// CreateTenantInput is the provisioning request. OwnerUserID defaults to the
// calling super-admin.
type CreateTenantInput struct {
	Name        string
	Slug        string
	OwnerUserID string
}

func (s *TenantService) now() time.Time {
	if s.Clock != nil {
		return s.Clock().UTC()
	}
	return time.Now().UTC()
}

// GetTenant returns a single tenant.
func (s *TenantService) GetTenant(ctx context.Context, caller domain.Caller, id string) (domain.Tenant, error) {
	if err := RequireSuperAdmin(caller); err != nil {
		return domain.Tenant{}, err
	}
	return s.load(ctx, s.Store, id)
}

// ListTenants returns every tenant, newest first.
func (s *TenantService) ListTenants(ctx context.Context, caller domain.Caller) ([]domain.Tenant, error) {
	if err := RequireSuperAdmin(caller); err != nil {
		return nil, err
	}

	tenants, err := s.Store.Tenants().ListTenants(ctx)
	if err != nil {
		return nil, internal(ctx, "failed to list tenants", err)
	}
	return tenants, nil
}

// CreateTenant provisions an active tenant.
func (s *TenantService) CreateTenant(ctx context.Context, caller domain.Caller, in CreateTenantInput) (_ domain.Tenant, err error) {
	ctx, span := startSpan(ctx, "TenantService.CreateTenant")
	defer func() { endSpan(span, err) }()

	log := slogx.FromContext(ctx)

	if err := RequireSuperAdmin(caller); err != nil {
		return domain.Tenant{}, err
	}

	name, err := domain.NormalizeTenantName(in.Name)
	if err != nil {
		return domain.Tenant{}, invalid(err)
	}
	slug, err := domain.NormalizeSlug(in.Slug)
	if err != nil {
		return domain.Tenant{}, invalid(err)
	}
	owner := strings.TrimSpace(in.OwnerUserID)
	if owner == "" {
		owner = caller.UserID
	}
	if owner == "" {
		return domain.Tenant{}, invalid(domain.ErrMissingOwner)
	}

	now := s.now()
	tenant := domain.Tenant{
		ID:          idx.NewAt(now).String(),
		Name:        name,
		Slug:        slug,
		Active:      true,
		OwnerUserID: owner,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	span.SetAttributes(attribute.String("tenant.id", tenant.ID))

	if err := s.Store.Tenants().CreateTenant(ctx, tenant); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			log.Warn("tenant slug already taken", slog.String("slug", slug))
			return domain.Tenant{}, conflictf("slug %q is already taken", slug)
		}
		return domain.Tenant{}, internal(ctx, "failed to create tenant", err)
	}

	log.Info("tenant created",
		slog.String("tenant_id", tenant.ID),
		slog.String("slug", tenant.Slug),
		slog.String("owner_user_id", tenant.OwnerUserID),
		slog.String("created_by", caller.UserID),
	)
	return tenant, nil
}

// UpdateTenant applies a partial patch. Active cannot be changed here; use
// ToggleTenantStatus.
func (s *TenantService) UpdateTenant(ctx context.Context, caller domain.Caller, id string, patch domain.TenantPatch) (_ domain.Tenant, err error) {
	ctx, span := startSpan(ctx, "TenantService.UpdateTenant", attribute.String("tenant.id", id))
	defer func() { endSpan(span, err) }()

	log := slogx.FromContext(ctx)

	if err := RequireSuperAdmin(caller); err != nil {
		return domain.Tenant{}, err
	}

	normalized, err := patch.Normalize()
	if err != nil {
		return domain.Tenant{}, invalid(err)
	}
	if !idx.Valid(id) {
		return domain.Tenant{}, ErrNotFound
	}

	updated, err := s.Store.Tenants().UpdateTenant(ctx, id, normalized, s.now())
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		return domain.Tenant{}, ErrNotFound
	case errors.Is(err, store.ErrAlreadyExists):
		return domain.Tenant{}, conflictf("slug is already taken")
	default:
		return domain.Tenant{}, internal(ctx, "failed to update tenant", err, slog.String("tenant_id", id))
	}

	log.Info("tenant updated",
		slog.String("tenant_id", id),
		slog.String("updated_by", caller.UserID),
	)
	return updated, nil
}

// ToggleTenantStatus flips Active. The flip is a compare-and-swap on the
// value just read, so concurrent toggles each land exactly once. A writer that
// keeps losing gives up with ErrConflict.
func (s *TenantService) ToggleTenantStatus(ctx context.Context, caller domain.Caller, id string) (_ domain.Tenant, err error) {
	ctx, span := startSpan(ctx, "TenantService.ToggleTenantStatus", attribute.String("tenant.id", id))
	defer func() { endSpan(span, err) }()

	log := slogx.FromContext(ctx)

	if err := RequireSuperAdmin(caller); err != nil {
		return domain.Tenant{}, err
	}

	for attempt := 1; attempt <= maxToggleAttempts; attempt++ {
		current, err := s.load(ctx, s.Store, id)
		if err != nil {
			return domain.Tenant{}, err
		}

		updated, err := s.Store.Tenants().SetTenantActive(ctx, id, !current.Active, s.now())
		switch {
		case err == nil:
			span.SetAttributes(attribute.Bool("tenant.active", updated.Active), attribute.Int("attempts", attempt))
			log.Info("tenant status toggled",
				slog.String("tenant_id", id),
				slog.Bool("active", updated.Active),
				slog.String("toggled_by", caller.UserID),
			)
			return updated, nil
		case errors.Is(err, store.ErrStale):
			log.Debug("tenant toggle lost race, retrying",
				slog.String("tenant_id", id),
				slog.Int("attempt", attempt),
			)
		case errors.Is(err, store.ErrNotFound):
			return domain.Tenant{}, ErrNotFound
		default:
			return domain.Tenant{}, internal(ctx, "failed to toggle tenant status", err, slog.String("tenant_id", id))
		}
	}

	log.Warn("tenant toggle gave up under contention", slog.String("tenant_id", id))
	return domain.Tenant{}, conflictf("tenant status is changing concurrently, try again")
}

// load fetches a tenant through st and maps store errors. Malformed ids are
// reported as not found.
func (s *TenantService) load(ctx context.Context, st store.Store, id string) (domain.Tenant, error) {
	if !idx.Valid(id) {
		return domain.Tenant{}, ErrNotFound
	}

	tenant, err := st.Tenants().GetTenantByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Tenant{}, ErrNotFound
		}
		return domain.Tenant{}, internal(ctx, "failed to fetch tenant", err, slog.String("tenant_id", id))
	}
	return tenant, nil
}
