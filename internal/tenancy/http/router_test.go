package http_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tenancyhttp "github.com/aussiebroadwan/gabinete/internal/tenancy/http"
	"github.com/aussiebroadwan/gabinete/internal/tenancy/notify"
	"github.com/aussiebroadwan/gabinete/internal/tenancy/service"
	"github.com/aussiebroadwan/gabinete/internal/tenancy/store/drivers/sqlite"
	"github.com/aussiebroadwan/gabinete/pkg/cryptox"
	"github.com/aussiebroadwan/gabinete/pkg/gabinetesdk"
	"github.com/aussiebroadwan/gabinete/pkg/httpx"
	"github.com/aussiebroadwan/gabinete/pkg/jwtx"
	"github.com/aussiebroadwan/gabinete/pkg/ratelimit"
	"github.com/aussiebroadwan/gabinete/pkg/slogx"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "https://id.gabinete.test"
	testAudience = "gabinete"
	rootEmail    = "root@gabinete.test"
)

type harness struct {
	client *gabinetesdk.Client
	signer *jwtx.EdDSASigner

	mu     sync.Mutex
	tokens map[string]string // email -> last delivered invitation token
}

type harnessOption func(*tenancyhttp.Router)

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	st, err := sqlite.NewStore(sqlite.DSN(filepath.Join(t.TempDir(), "http.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	pemKey, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	signer, err := jwtx.NewSignerEdDSA("idp-test", pemKey)
	require.NoError(t, err)
	keys := jwtx.NewKeySet()
	require.NoError(t, keys.AddSigner(signer))

	h := &harness{signer: signer, tokens: make(map[string]string)}

	guard := service.NewGuard(jwtx.NewVerifier(keys, jwtx.VerifyOptions{
		Issuer:   testIssuer,
		Audience: []string{testAudience},
	}), []string{rootEmail})

	logger := slogx.Discard()
	router := tenancyhttp.NewRouter(keys, guard, "test", st, logger)
	router.TenantService = &service.TenantService{Store: st}
	router.InvitationService = &service.InvitationService{
		Store:   st,
		Limiter: ratelimit.New(ratelimit.Options{}),
		Notifier: notify.NotifierFunc(func(_ context.Context, msg notify.InvitationMessage) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.tokens[msg.Email] = msg.Token
			return nil
		}),
		Policy: service.DefaultInvitationPolicy,
	}
	router.SessionCookie = "gabinete_session"
	router.PublicLimit = httpx.RateLimitConfig{Requests: 100, Window: time.Minute}
	for _, opt := range opts {
		opt(router)
	}
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	h.client = gabinetesdk.NewClient(srv.URL)
	return h
}

func (h *harness) token(t *testing.T, in jwtx.IdentityInput) string {
	t.Helper()
	tok, err := h.signer.Sign(jwtx.NewIdentityClaims(in, time.Hour, testIssuer, []string{testAudience}, time.Now()))
	require.NoError(t, err)
	return tok
}

func (h *harness) root(t *testing.T) *gabinetesdk.Session {
	return h.client.NewSession(h.token(t, jwtx.IdentityInput{Subject: "root", Email: rootEmail}))
}

func (h *harness) admin(t *testing.T, tenantID string) *gabinetesdk.Session {
	return h.client.NewSession(h.token(t, jwtx.IdentityInput{
		Subject:  "admin-" + tenantID,
		Email:    "admin@" + tenantID + ".test",
		Role:     jwtx.RoleAdmin,
		TenantID: tenantID,
	}))
}

func (h *harness) user(t *testing.T, email string) *gabinetesdk.Session {
	return h.client.NewSession(h.token(t, jwtx.IdentityInput{Subject: "user-" + email, Email: email}))
}

func (h *harness) delivered(t *testing.T, email string) string {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	tok, ok := h.tokens[email]
	require.True(t, ok, "no invitation delivered to %s", email)
	return tok
}

func requireAPIError(t *testing.T, err error, status int, code string) {
	t.Helper()
	var apiErr *gabinetesdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, status, apiErr.StatusCode)
	require.Equal(t, code, apiErr.Code)
}

func TestHealthEndpoints(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	live, err := h.client.GetLiveness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", live.Status)
	require.Equal(t, "test", live.Version)

	ready, err := h.client.GetReadiness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Status)
	require.NotNil(t, ready.Checks)
	require.Equal(t, "ok", ready.Checks.Database)
	require.Equal(t, "ok", ready.Checks.Identity)
}

func TestTenantEndpoints(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	root := h.root(t)

	created, err := root.CreateTenant(ctx, gabinetesdk.CreateTenantRequest{Name: "  Acme Legal  ", Slug: "acme"})
	require.NoError(t, err)
	require.Equal(t, "Acme Legal", created.Name)
	require.Equal(t, "acme", created.Slug)
	require.True(t, created.Active)
	require.Equal(t, "root", created.OwnerUserID)

	got, err := root.GetTenant(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)

	list, err := root.ListTenants(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	t.Run("duplicate slug is a 400 conflict", func(t *testing.T) {
		_, err := root.CreateTenant(ctx, gabinetesdk.CreateTenantRequest{Name: "Other", Slug: "acme"})
		requireAPIError(t, err, http.StatusBadRequest, gabinetesdk.ErrorCodeConflict)
		require.True(t, gabinetesdk.IsConflict(err))
	})

	t.Run("patching onto a taken slug is a 400 conflict", func(t *testing.T) {
		other, err := root.CreateTenant(ctx, gabinetesdk.CreateTenantRequest{Name: "Globex", Slug: "globex"})
		require.NoError(t, err)

		taken := "acme"
		_, err = root.UpdateTenant(ctx, other.ID, gabinetesdk.UpdateTenantRequest{Slug: &taken})
		requireAPIError(t, err, http.StatusBadRequest, gabinetesdk.ErrorCodeConflict)

		got, err := root.GetTenant(ctx, other.ID)
		require.NoError(t, err)
		require.Equal(t, "globex", got.Slug)
	})

	t.Run("empty name is 400", func(t *testing.T) {
		_, err := root.CreateTenant(ctx, gabinetesdk.CreateTenantRequest{Name: "   "})
		requireAPIError(t, err, http.StatusBadRequest, gabinetesdk.ErrorCodeInvalidRequest)
	})

	t.Run("patch", func(t *testing.T) {
		name := "Acme & Partners"
		updated, err := root.UpdateTenant(ctx, created.ID, gabinetesdk.UpdateTenantRequest{Name: &name})
		require.NoError(t, err)
		require.Equal(t, name, updated.Name)
		require.Equal(t, "acme", updated.Slug)

		_, err = root.UpdateTenant(ctx, "01JZZZZZZZZZZZZZZZZZZZZZZZ", gabinetesdk.UpdateTenantRequest{Name: &name})
		requireAPIError(t, err, http.StatusNotFound, gabinetesdk.ErrorCodeNotFound)
	})

	t.Run("toggle pairs over POST and PUT", func(t *testing.T) {
		off, err := root.ToggleTenantStatus(ctx, created.ID)
		require.NoError(t, err)
		require.False(t, off.Active)

		req, err := http.NewRequest(http.MethodPut, h.client.BaseURL+"/v1/tenants/"+created.ID+"/toggle-status", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+h.token(t, jwtx.IdentityInput{Subject: "root", Email: rootEmail}))
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		back, err := root.GetTenant(ctx, created.ID)
		require.NoError(t, err)
		require.True(t, back.Active)
	})

	t.Run("tenant admin is forbidden", func(t *testing.T) {
		_, err := h.admin(t, created.ID).ListTenants(ctx)
		requireAPIError(t, err, http.StatusForbidden, gabinetesdk.ErrorCodeUnauthorized)
	})
}

func TestAuthentication(t *testing.T) {
	h := newHarness(t)

	t.Run("missing session gets a bearer challenge", func(t *testing.T) {
		resp, err := http.Get(h.client.BaseURL + "/v1/tenants")
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Contains(t, resp.Header.Get("WWW-Authenticate"), `error="invalid_token"`)
	})

	t.Run("forged token", func(t *testing.T) {
		_, err := h.client.NewSession("not-a-jwt").ListTenants(context.Background())
		requireAPIError(t, err, http.StatusUnauthorized, gabinetesdk.ErrorCodeUnauthenticated)
	})

	t.Run("session cookie", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, h.client.BaseURL+"/v1/tenants", nil)
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{
			Name:  "gabinete_session",
			Value: h.token(t, jwtx.IdentityInput{Subject: "root", Email: rootEmail}),
		})
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("request id is echoed", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, h.client.BaseURL+"/livez", nil)
		require.NoError(t, err)
		req.Header.Set(slogx.RequestIDHeader, "req-123")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, "req-123", resp.Header.Get(slogx.RequestIDHeader))
	})
}

func TestInvitationEndpoints(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	acme, err := h.root(t).CreateTenant(ctx, gabinetesdk.CreateTenantRequest{Name: "Acme"})
	require.NoError(t, err)
	globex, err := h.root(t).CreateTenant(ctx, gabinetesdk.CreateTenantRequest{Name: "Globex"})
	require.NoError(t, err)

	admin := h.admin(t, acme.ID)

	inv, err := admin.CreateInvite(ctx, acme.ID, gabinetesdk.CreateInviteRequest{Email: "Jane@Example.com"})
	require.NoError(t, err)
	require.Equal(t, "jane@example.com", inv.Email)
	require.Equal(t, "user", inv.Role)
	require.Equal(t, gabinetesdk.InvitationPending, inv.Status)

	t.Run("duplicate pending invite is 400 conflict", func(t *testing.T) {
		_, err := admin.CreateInvite(ctx, acme.ID, gabinetesdk.CreateInviteRequest{Email: "jane@example.com"})
		requireAPIError(t, err, http.StatusBadRequest, gabinetesdk.ErrorCodeConflict)
	})

	t.Run("unknown role", func(t *testing.T) {
		_, err := admin.CreateInvite(ctx, acme.ID, gabinetesdk.CreateInviteRequest{Email: "x@example.com", Role: "owner"})
		requireAPIError(t, err, http.StatusBadRequest, gabinetesdk.ErrorCodeInvalidRequest)
	})

	t.Run("other tenant's admin is forbidden", func(t *testing.T) {
		other := h.admin(t, globex.ID)

		_, err := other.ListInvites(ctx, acme.ID)
		requireAPIError(t, err, http.StatusForbidden, gabinetesdk.ErrorCodeUnauthorized)

		err = other.RevokeInvite(ctx, inv.ID)
		requireAPIError(t, err, http.StatusForbidden, gabinetesdk.ErrorCodeUnauthorized)

		_, err = other.ResendInvite(ctx, "01JZZZZZZZZZZZZZZZZZZZZZZZ")
		requireAPIError(t, err, http.StatusForbidden, gabinetesdk.ErrorCodeUnauthorized)
	})

	t.Run("accept with the wrong email is forbidden", func(t *testing.T) {
		_, err := h.user(t, "mallory@example.com").AcceptInvite(ctx, h.delivered(t, "jane@example.com"))
		requireAPIError(t, err, http.StatusForbidden, gabinetesdk.ErrorCodeUnauthorized)
	})

	t.Run("unknown token", func(t *testing.T) {
		_, err := h.user(t, "jane@example.com").AcceptInvite(ctx, "nope")
		requireAPIError(t, err, http.StatusNotFound, gabinetesdk.ErrorCodeNotFound)
	})

	accepted, err := h.user(t, "jane@example.com").AcceptInvite(ctx, h.delivered(t, "jane@example.com"))
	require.NoError(t, err)
	require.Equal(t, gabinetesdk.InvitationAccepted, accepted.Status)
	require.Equal(t, "user-jane@example.com", accepted.AcceptedBy)

	members, err := admin.ListMembers(ctx, acme.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	require.Equal(t, "jane@example.com", members[0].Email)

	t.Run("revoking an accepted invite is 400 conflict", func(t *testing.T) {
		err := admin.RevokeInvite(ctx, inv.ID)
		requireAPIError(t, err, http.StatusBadRequest, gabinetesdk.ErrorCodeConflict)

		list, err := admin.ListInvites(ctx, acme.ID)
		require.NoError(t, err)
		require.Len(t, list, 1)
		require.Equal(t, gabinetesdk.InvitationAccepted, list[0].Status)
	})

	t.Run("revoke pending", func(t *testing.T) {
		bob, err := admin.CreateInvite(ctx, acme.ID, gabinetesdk.CreateInviteRequest{Email: "bob@example.com"})
		require.NoError(t, err)
		require.NoError(t, admin.RevokeInvite(ctx, bob.ID))

		err = admin.RevokeInvite(ctx, bob.ID)
		requireAPIError(t, err, http.StatusBadRequest, gabinetesdk.ErrorCodeConflict)
	})
}

func TestResendEndpoint(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	acme, err := h.root(t).CreateTenant(ctx, gabinetesdk.CreateTenantRequest{Name: "Acme"})
	require.NoError(t, err)
	admin := h.admin(t, acme.ID)

	inv, err := admin.CreateInvite(ctx, acme.ID, gabinetesdk.CreateInviteRequest{Email: "sam@example.com"})
	require.NoError(t, err)
	original := h.delivered(t, "sam@example.com")

	for i := range service.DefaultInvitationPolicy.ResendLimit {
		resent, err := admin.ResendInvite(ctx, inv.ID)
		require.NoError(t, err, "resend %d", i+1)
		require.Equal(t, i+1, resent.ResendCount)
	}

	// The per-invitation limit is a client error; 429 belongs to the
	// request throttles.
	_, err = admin.ResendInvite(ctx, inv.ID)
	requireAPIError(t, err, http.StatusBadRequest, gabinetesdk.ErrorCodeRateLimited)
	require.True(t, gabinetesdk.IsRateLimited(err))

	rotated := h.delivered(t, "sam@example.com")
	require.NotEqual(t, original, rotated)

	sam := h.user(t, "sam@example.com")
	_, err = sam.AcceptInvite(ctx, original)
	require.True(t, gabinetesdk.IsNotFound(err))

	_, err = sam.AcceptInvite(ctx, rotated)
	require.NoError(t, err)
}

func TestAcceptIsThrottledByAddress(t *testing.T) {
	h := newHarness(t, func(r *tenancyhttp.Router) {
		r.PublicLimit = httpx.RateLimitConfig{Requests: 2, Window: time.Minute}
	})

	for range 2 {
		resp, err := http.Post(h.client.BaseURL+"/v1/invites/accept", "application/json", strings.NewReader(`{"token":"x"}`))
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	resp, err := http.Post(h.client.BaseURL+"/v1/invites/accept", "application/json", strings.NewReader(`{"token":"x"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestAdminLimitIsPerUser(t *testing.T) {
	h := newHarness(t, func(r *tenancyhttp.Router) {
		r.AdminLimit = httpx.RateLimitConfig{Requests: 2, Window: time.Minute}
	})
	token := h.token(t, jwtx.IdentityInput{Subject: "root", Email: rootEmail})

	list := func(forwardedFor string) int {
		req, err := http.NewRequest(http.MethodGet, h.client.BaseURL+"/v1/tenants", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("X-Forwarded-For", forwardedFor)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	require.Equal(t, http.StatusOK, list("203.0.113.1"))
	require.Equal(t, http.StatusOK, list("203.0.113.2"))
	for _, ip := range []string{"203.0.113.3", "198.51.100.7", "192.0.2.99"} {
		require.Equal(t, http.StatusTooManyRequests, list(ip), "fresh address %s", ip)
	}
}

func TestMalformedBody(t *testing.T) {
	h := newHarness(t)

	req, err := http.NewRequest(http.MethodPost, h.client.BaseURL+"/v1/tenants", strings.NewReader(`{"name":`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+h.token(t, jwtx.IdentityInput{Subject: "root", Email: rootEmail}))
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
