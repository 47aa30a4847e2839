package service

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/gabinete/internal/tenancy/domain"
	"github.com/aussiebroadwan/gabinete/pkg/cryptox"
	"github.com/aussiebroadwan/gabinete/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

type verifierFunc func(string) (jwtx.Claims, error)

func (f verifierFunc) Verify(token string) (jwtx.Claims, error) { return f(token) }

func claimsVerifier(c jwtx.Claims) jwtx.Verifier {
	return verifierFunc(func(string) (jwtx.Claims, error) { return c, nil })
}

func claimsFor(sub, email, role, tenantID string) jwtx.Claims {
	return jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: sub},
		Email:            email,
		Role:             role,
		TenantID:         tenantID,
	}
}

func TestResolveCallerRoleResolution(t *testing.T) {
	ctx := context.Background()
	allow := []string{" Boss@Gabinete.local ", ""}

	cases := []struct {
		name   string
		claims jwtx.Claims
		want   domain.Role
	}{
		{"explicit super_admin claim", claimsFor("u1", "someone@acme.test", jwtx.RoleSuperAdmin, ""), domain.RoleSuperAdmin},
		{"allow-listed email", claimsFor("u2", "boss@gabinete.local", jwtx.RoleUser, "t1"), domain.RoleSuperAdmin},
		{"allow-list is case insensitive", claimsFor("u3", "BOSS@gabinete.LOCAL", "", ""), domain.RoleSuperAdmin},
		{"admin claim", claimsFor("u4", "admin@acme.test", jwtx.RoleAdmin, "t1"), domain.RoleAdmin},
		{"unknown claim is a user", claimsFor("u5", "x@acme.test", "owner", "t1"), domain.RoleUser},
		{"no claim is a user", claimsFor("u6", "y@acme.test", "", "t1"), domain.RoleUser},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := NewGuard(claimsVerifier(tc.claims), allow)
			caller, err := g.ResolveCaller(ctx, "session")
			require.NoError(t, err)
			require.Equal(t, tc.want, caller.Role)
			require.Equal(t, tc.claims.Subject, caller.UserID)
			require.Equal(t, tc.claims.TenantID, caller.TenantID)
		})
	}
}

func TestResolveCallerUnauthenticated(t *testing.T) {
	ctx := context.Background()

	t.Run("empty session", func(t *testing.T) {
		g := NewGuard(claimsVerifier(claimsFor("u1", "", "", "")), nil)
		_, err := g.ResolveCaller(ctx, "")
		require.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("no verifier", func(t *testing.T) {
		_, err := NewGuard(nil, nil).ResolveCaller(ctx, "session")
		require.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("verifier rejects", func(t *testing.T) {
		g := NewGuard(verifierFunc(func(string) (jwtx.Claims, error) {
			return jwtx.Claims{}, jwtx.ErrExpired
		}), nil)
		_, err := g.ResolveCaller(ctx, "session")
		require.ErrorIs(t, err, ErrUnauthenticated)
		require.Contains(t, err.Error(), "session expired")
	})
}

func TestResolveCallerWithSignedToken(t *testing.T) {
	pemKey, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	signer, err := jwtx.NewSignerEdDSA("idp-1", pemKey)
	require.NoError(t, err)

	keys := jwtx.NewKeySet()
	require.NoError(t, keys.AddSigner(signer))

	now := time.Now().UTC()
	token, err := signer.Sign(jwtx.NewIdentityClaims(jwtx.IdentityInput{
		Subject:  "user-42",
		Email:    "Owner@Acme.test",
		Role:     jwtx.RoleAdmin,
		TenantID: "tenant-1",
	}, time.Minute, "https://id.test", []string{"gabinete"}, now))
	require.NoError(t, err)

	g := NewGuard(jwtx.NewVerifier(keys, jwtx.VerifyOptions{
		Issuer:   "https://id.test",
		Audience: []string{"gabinete"},
	}), nil)

	caller, err := g.ResolveCaller(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, domain.Caller{
		UserID:   "user-42",
		Email:    "owner@acme.test",
		Role:     domain.RoleAdmin,
		TenantID: "tenant-1",
	}, caller)

	_, err = g.ResolveCaller(context.Background(), token+"x")
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestRequireSuperAdmin(t *testing.T) {
	require.NoError(t, RequireSuperAdmin(domain.Caller{Role: domain.RoleSuperAdmin}))
	require.ErrorIs(t, RequireSuperAdmin(domain.Caller{Role: domain.RoleAdmin, TenantID: "t1"}), ErrUnauthorized)
	require.ErrorIs(t, RequireSuperAdmin(domain.Caller{}), ErrUnauthorized)
}

func TestRequireTenantMember(t *testing.T) {
	super := domain.Caller{UserID: "s", Role: domain.RoleSuperAdmin}
	admin := domain.Caller{UserID: "a", Role: domain.RoleAdmin, TenantID: "t1"}
	orphan := domain.Caller{UserID: "o", Role: domain.RoleAdmin}

	require.NoError(t, RequireTenantMember(super, "t1"))
	require.NoError(t, RequireTenantMember(super, "t2"))
	require.NoError(t, RequireTenantMember(admin, "t1"))
	require.ErrorIs(t, RequireTenantMember(admin, "t2"), ErrUnauthorized)
	require.ErrorIs(t, RequireTenantMember(orphan, ""), ErrUnauthorized)
	require.ErrorIs(t, RequireTenantMember(orphan, "t1"), ErrUnauthorized)
}
