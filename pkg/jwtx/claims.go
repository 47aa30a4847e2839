package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role claim values understood by the tenancy service. Anything else is
// treated as a plain user.
const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

// Claims are the identity-token claims issued by the identity provider.
// Fields are additive; unknown claims are ignored.
type Claims struct {
	jwt.RegisteredClaims

	// Email of the authenticated user. Used for the super-admin allow-list
	// and for matching invitations on acceptance.
	Email string `json:"email,omitempty"`

	// Name is the display name for the user
	Name string `json:"name,omitempty"`

	// Role is one of RoleUser, RoleAdmin, RoleSuperAdmin.
	Role string `json:"role,omitempty"`

	// TenantID the user belongs to. Empty for platform operators.
	TenantID string `json:"tenant_id,omitempty"`
}

// IdentityInput describes the user an identity token is minted for.
type IdentityInput struct {
	Subject  string
	Email    string
	Name     string
	Role     string
	TenantID string
}

// NewIdentityClaims builds minimally-correct claims.
func NewIdentityClaims(in IdentityInput, ttl time.Duration, issuer string, audience []string, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   in.Subject,
			Audience:  jwt.ClaimStrings(audience),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Email:    in.Email,
		Name:     in.Name,
		Role:     in.Role,
		TenantID: in.TenantID,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}

	if c.Issuer != expected {
		return ErrIssuer
	}

	return nil
}

// ValidateAudience checks if at least one expected audience is present.
func (c *Claims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil // nothing to enforce
	}

	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}

	return ErrAudience
}

// ValidateExpiryWithLeeway checks exp and nbf against now, allowing leeway
// for clock skew in both directions.
func (c *Claims) ValidateExpiryWithLeeway(now time.Time, leeway time.Duration) error {
	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Add(leeway)) {
		return ErrExpired
	}

	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-leeway)) {
		return ErrNotYetValid
	}

	return nil
}

// ValidateSubject rejects tokens that do not name a user.
func (c *Claims) ValidateSubject() error {
	if c.Subject == "" {
		return ErrInvalidClaim
	}
	return nil
}
