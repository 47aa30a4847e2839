package domain

import "strings"

// Role is the caller's privilege level. The zero value is RoleUser so an
// unresolved role never grants more than the least privilege.
type Role int

const (
	RoleUser Role = iota
	RoleAdmin
	RoleSuperAdmin
)

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleSuperAdmin:
		return "super_admin"
	default:
		return "user"
	}
}

// ParseRole maps the wire/storage form back to a Role.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user":
		return RoleUser, true
	case "admin":
		return RoleAdmin, true
	case "super_admin":
		return RoleSuperAdmin, true
	default:
		return RoleUser, false
	}
}

// Caller is the identity behind a request, derived from the session on every
// request and never persisted.
type Caller struct {
	UserID string
	Email  string
	Role   Role

	// TenantID is empty for super-admins and for users not yet bound to a
	// tenant.
	TenantID string
}

func (c Caller) IsSuperAdmin() bool { return c.Role == RoleSuperAdmin }
