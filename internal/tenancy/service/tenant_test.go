package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/gabinete/internal/tenancy/domain"
	"github.com/aussiebroadwan/gabinete/pkg/idx"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestCreateTenant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tenant, err := f.tenants.CreateTenant(ctx, superAdmin, CreateTenantInput{Name: "  Acme Law  ", Slug: "Acme-Law"})
	require.NoError(t, err)
	require.True(t, idx.Valid(tenant.ID))
	require.Equal(t, "Acme Law", tenant.Name)
	require.Equal(t, "acme-law", tenant.Slug)
	require.True(t, tenant.Active)
	require.Equal(t, superAdmin.UserID, tenant.OwnerUserID)

	got, err := f.tenants.GetTenant(ctx, superAdmin, tenant.ID)
	require.NoError(t, err)
	require.Equal(t, tenant, got)

	t.Run("duplicate slug conflicts", func(t *testing.T) {
		_, err := f.tenants.CreateTenant(ctx, superAdmin, CreateTenantInput{Name: "Other", Slug: "acme-law"})
		require.ErrorIs(t, err, ErrConflict)
	})

	t.Run("empty name is invalid", func(t *testing.T) {
		_, err := f.tenants.CreateTenant(ctx, superAdmin, CreateTenantInput{Name: "  "})
		require.ErrorIs(t, err, ErrValidation)
		require.ErrorIs(t, err, domain.ErrEmptyName)
	})

	t.Run("list includes tenant", func(t *testing.T) {
		list, err := f.tenants.ListTenants(ctx, superAdmin)
		require.NoError(t, err)
		require.Len(t, list, 1)
		require.Equal(t, tenant.ID, list[0].ID)
	})
}

func TestTenantOperationsRequireSuperAdmin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tenant := f.tenant(t, "Acme")

	// The tenant's own admin is still not a super-admin, and a missing
	// tenant is no different from an existing one.
	for _, id := range []string{tenant.ID, idx.New().String()} {
		caller := adminOf(tenant.ID)

		_, err := f.tenants.GetTenant(ctx, caller, id)
		require.ErrorIs(t, err, ErrUnauthorized)

		_, err = f.tenants.UpdateTenant(ctx, caller, id, domain.TenantPatch{Name: strPtr("Hijacked")})
		require.ErrorIs(t, err, ErrUnauthorized)

		_, err = f.tenants.ToggleTenantStatus(ctx, caller, id)
		require.ErrorIs(t, err, ErrUnauthorized)
	}

	_, err := f.tenants.ListTenants(ctx, adminOf(tenant.ID))
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.tenants.CreateTenant(ctx, adminOf(tenant.ID), CreateTenantInput{Name: "Mine"})
	require.ErrorIs(t, err, ErrUnauthorized)

	got, err := f.tenants.GetTenant(ctx, superAdmin, tenant.ID)
	require.NoError(t, err)
	require.Equal(t, "Acme", got.Name)
	require.True(t, got.Active)
}

func TestGetTenantNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.tenants.GetTenant(context.Background(), superAdmin, idx.New().String())
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.tenants.GetTenant(context.Background(), superAdmin, "not-a-ulid")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateTenant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tenant, err := f.tenants.CreateTenant(ctx, superAdmin, CreateTenantInput{Name: "Acme", Slug: "taken"})
	require.NoError(t, err)

	f.clock.Advance(time.Minute)

	t.Run("renames and refreshes updated_at", func(t *testing.T) {
		got, err := f.tenants.UpdateTenant(ctx, superAdmin, tenant.ID, domain.TenantPatch{Name: strPtr(" Acme Legal ")})
		require.NoError(t, err)
		require.Equal(t, "Acme Legal", got.Name)
		require.Equal(t, "taken", got.Slug)
		require.True(t, got.Active)
		require.Equal(t, f.clock.Now(), got.UpdatedAt)
		require.Equal(t, tenant.CreatedAt, got.CreatedAt)
	})

	t.Run("empty patch", func(t *testing.T) {
		_, err := f.tenants.UpdateTenant(ctx, superAdmin, tenant.ID, domain.TenantPatch{})
		require.ErrorIs(t, err, ErrValidation)
	})

	t.Run("invalid name", func(t *testing.T) {
		_, err := f.tenants.UpdateTenant(ctx, superAdmin, tenant.ID, domain.TenantPatch{Name: strPtr(strings.Repeat("n", domain.MaxTenantNameLength+1))})
		require.ErrorIs(t, err, ErrValidation)
	})

	t.Run("unknown tenant", func(t *testing.T) {
		_, err := f.tenants.UpdateTenant(ctx, superAdmin, idx.New().String(), domain.TenantPatch{Name: strPtr("Ghost")})
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("duplicate slug", func(t *testing.T) {
		other := f.tenant(t, "Other")
		_, err := f.tenants.UpdateTenant(ctx, superAdmin, other.ID, domain.TenantPatch{Slug: strPtr("taken")})
		require.ErrorIs(t, err, ErrConflict)
	})
}

func TestToggleTenantStatusPairing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tenant := f.tenant(t, "Acme")
	require.True(t, tenant.Active)

	first, err := f.tenants.ToggleTenantStatus(ctx, superAdmin, tenant.ID)
	require.NoError(t, err)
	require.False(t, first.Active)

	stored, err := f.tenants.GetTenant(ctx, superAdmin, tenant.ID)
	require.NoError(t, err)
	require.False(t, stored.Active)

	second, err := f.tenants.ToggleTenantStatus(ctx, superAdmin, tenant.ID)
	require.NoError(t, err)
	require.True(t, second.Active)
}

func TestToggleTenantStatusConcurrent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tenant := f.tenant(t, "Acme")

	const toggles = 2

	var wg sync.WaitGroup
	results := make([]domain.Tenant, toggles)
	errs := make([]error, toggles)
	for i := range toggles {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = f.tenants.ToggleTenantStatus(ctx, superAdmin, tenant.ID)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	// Each call reports a distinct flip: one saw false, the other true.
	require.NotEqual(t, results[0].Active, results[1].Active)

	got, err := f.tenants.GetTenant(ctx, superAdmin, tenant.ID)
	require.NoError(t, err)
	require.Equal(t, tenant.Active, got.Active, "two flips must land back on the original value")
}

func TestToggleTenantStatusNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.tenants.ToggleTenantStatus(context.Background(), superAdmin, idx.New().String())
	require.ErrorIs(t, err, ErrNotFound)
}
