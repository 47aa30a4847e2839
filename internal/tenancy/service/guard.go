package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aussiebroadwan/gabinete/internal/tenancy/domain"
	"github.com/aussiebroadwan/gabinete/pkg/jwtx"
	"github.com/aussiebroadwan/gabinete/pkg/slogx"
)

// Guard turns a session token into a Caller and decides who may do what.
//
// Sessions are identity tokens issued by the external identity provider and
// checked by Verifier. The super-admin allow-list is fixed at construction.
type Guard struct {
	Verifier jwtx.Verifier

	superAdmins map[string]struct{}
}

func NewGuard(verifier jwtx.Verifier, superAdminEmails []string) *Guard {
	g := &Guard{
		Verifier:    verifier,
		superAdmins: make(map[string]struct{}, len(superAdminEmails)),
	}
	for _, email := range superAdminEmails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email != "" {
			g.superAdmins[email] = struct{}{}
		}
	}
	return g
}

// ResolveCaller verifies session and derives the caller's identity. Any
// failure is ErrUnauthenticated.
func (g *Guard) ResolveCaller(ctx context.Context, session string) (domain.Caller, error) {
	log := slogx.FromContext(ctx)

	if session == "" {
		return domain.Caller{}, fmt.Errorf("%w: missing session", ErrUnauthenticated)
	}
	if g.Verifier == nil {
		log.Error("guard has no verifier configured")
		return domain.Caller{}, fmt.Errorf("%w: identity provider unavailable", ErrUnauthenticated)
	}

	claims, err := g.Verifier.Verify(session)
	if err != nil {
		log.Debug("session rejected", slog.Any("error", err))
		return domain.Caller{}, fmt.Errorf("%w: %s", ErrUnauthenticated, sessionReason(err))
	}

	email := strings.ToLower(strings.TrimSpace(claims.Email))
	return domain.Caller{
		UserID:   claims.Subject,
		Email:    email,
		Role:     g.resolveRole(claims.Role, email),
		TenantID: strings.TrimSpace(claims.TenantID),
	}, nil
}

// resolveRole is the only place a role is derived. An explicit super_admin
// claim wins, then the allow-list, then whatever the claim says.
func (g *Guard) resolveRole(claim, email string) domain.Role {
	role, _ := domain.ParseRole(claim)
	if role == domain.RoleSuperAdmin {
		return role
	}
	if g.IsSuperAdminEmail(email) {
		return domain.RoleSuperAdmin
	}
	return role
}

// IsSuperAdminEmail reports whether email is on the allow-list.
func (g *Guard) IsSuperAdminEmail(email string) bool {
	if email == "" {
		return false
	}
	_, ok := g.superAdmins[strings.ToLower(strings.TrimSpace(email))]
	return ok
}

// RequireSuperAdmin admits super-admins only.
func RequireSuperAdmin(caller domain.Caller) error {
	if caller.IsSuperAdmin() {
		return nil
	}
	return fmt.Errorf("%w: super-admin required", ErrUnauthorized)
}

// RequireTenantMember admits super-admins for any tenant and everyone else
// only for the tenant named in their own identity.
func RequireTenantMember(caller domain.Caller, tenantID string) error {
	if caller.IsSuperAdmin() {
		return nil
	}
	if caller.TenantID == "" || caller.TenantID != tenantID {
		return fmt.Errorf("%w: not a member of this tenant", ErrUnauthorized)
	}
	return nil
}

func sessionReason(err error) string {
	switch {
	case errors.Is(err, jwtx.ErrExpired):
		return "session expired"
	case errors.Is(err, jwtx.ErrNotYetValid):
		return "session not yet valid"
	default:
		return "invalid session"
	}
}
