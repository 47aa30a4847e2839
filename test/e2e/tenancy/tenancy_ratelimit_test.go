//go:build e2e

package tenancy_test

import (
	"net/http"
	"testing"

	"github.com/aussiebroadwan/gabinete/pkg/gabinetesdk"
	"github.com/stretchr/testify/require"
)

// TestRateLimitAcceptEndpoint verifies the public limit of 5 requests a
// minute on invitation acceptance.
func TestRateLimitAcceptEndpoint(t *testing.T) {
	e := setupTenancyContainerWithDefaultRateLimits(t)
	session := e.user(t, "guesser@example.com")

	for i := range 5 {
		_, err := session.AcceptInvite(t.Context(), "guess")
		assertStatus(t, err, http.StatusNotFound)
		require.False(t, gabinetesdk.IsRateLimited(err), "request %d should not be throttled", i+1)
	}

	_, err := session.AcceptInvite(t.Context(), "guess")
	assertStatus(t, err, http.StatusTooManyRequests)
}

func TestResendIsThrottledPerInvitation(t *testing.T) {
	e := setupTenancyContainer(t)
	ctx := t.Context()
	tenant := createTenant(t, e, "Acme")
	admin := e.tenantAdmin(t, tenant.ID)

	inv, err := admin.CreateInvite(ctx, tenant.ID, gabinetesdk.CreateInviteRequest{Email: "pat@example.com"})
	require.NoError(t, err)

	for range 3 {
		_, err := admin.ResendInvite(ctx, inv.ID)
		require.NoError(t, err)
	}

	_, err = admin.ResendInvite(ctx, inv.ID)
	assertStatus(t, err, http.StatusBadRequest)
	require.True(t, gabinetesdk.IsRateLimited(err))
}
