package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/gabinete/internal/tenancy/domain"
	"github.com/aussiebroadwan/gabinete/internal/tenancy/notify"
	"github.com/aussiebroadwan/gabinete/internal/tenancy/store/drivers/sqlite"
	"github.com/aussiebroadwan/gabinete/pkg/ratelimit"
	"github.com/stretchr/testify/require"
)

var (
	superAdmin = domain.Caller{UserID: "root", Email: "admin@gabinete.local", Role: domain.RoleSuperAdmin}
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// outbox records every message handed to the notifier.
type outbox struct {
	mu   sync.Mutex
	msgs []notify.InvitationMessage
	err  error
}

func (o *outbox) SendInvitation(_ context.Context, msg notify.InvitationMessage) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.msgs = append(o.msgs, msg)
	return nil
}

func (o *outbox) last(t *testing.T) notify.InvitationMessage {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.msgs)
	return o.msgs[len(o.msgs)-1]
}

func (o *outbox) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.msgs)
}

type fixture struct {
	store   *sqlite.Store
	clock   *testClock
	outbox  *outbox
	tenants *TenantService
	invites *InvitationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := sqlite.NewStore(sqlite.DSN(filepath.Join(t.TempDir(), "service.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	clock := newTestClock()
	box := &outbox{}

	return &fixture{
		store:   st,
		clock:   clock,
		outbox:  box,
		tenants: &TenantService{Store: st, Clock: clock.Now},
		invites: &InvitationService{
			Store:    st,
			Limiter:  ratelimit.New(ratelimit.Options{Clock: clock.Now}),
			Notifier: box,
			Policy: InvitationPolicy{
				TTL:          72 * time.Hour,
				ResendLimit:  3,
				ResendWindow: time.Hour,
				AcceptURL:    "https://app.gabinete.test/invite",
			},
			Clock: clock.Now,
		},
	}
}

func (f *fixture) tenant(t *testing.T, name string) domain.Tenant {
	t.Helper()
	tenant, err := f.tenants.CreateTenant(context.Background(), superAdmin, CreateTenantInput{Name: name})
	require.NoError(t, err)
	return tenant
}

func adminOf(tenantID string) domain.Caller {
	return domain.Caller{UserID: "admin-" + tenantID, Email: "admin@" + tenantID + ".test", Role: domain.RoleAdmin, TenantID: tenantID}
}

// invite creates an invitation as the tenant's admin and returns it with the
// raw token that was delivered.
func (f *fixture) invite(t *testing.T, tenantID, email string) (domain.Invitation, string) {
	t.Helper()
	inv, err := f.invites.CreateInvite(context.Background(), adminOf(tenantID), CreateInviteInput{
		TenantID: tenantID,
		Email:    email,
		Role:     domain.RoleUser,
	})
	require.NoError(t, err)
	return inv, f.outbox.last(t).Token
}

func invitee(email string) domain.Caller {
	return domain.Caller{UserID: "user-" + email, Email: email, Role: domain.RoleUser}
}
