package gabinetesdk

import "time"

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	// Error is a machine readable code, e.g. "not_found" or "conflict".
	Error string `json:"error"`

	// ErrorDescription is a human readable explanation.
	ErrorDescription string `json:"error_description"`
}

// ============================================================================
// Health
// ============================================================================

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports the state of each dependency on /readyz.
type HealthChecks struct {
	Database string `json:"database"`
	Identity string `json:"identity"`
}

// ============================================================================
// Tenants
// ============================================================================

// Tenant is a customer organization ("gabinete").
type Tenant struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug,omitempty"`
	Active      bool      `json:"active"`
	OwnerUserID string    `json:"owner_user_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TenantResponse wraps a single tenant.
type TenantResponse struct {
	Tenant Tenant `json:"tenant"`
}

// TenantListResponse wraps a list of tenants, newest first.
type TenantListResponse struct {
	Tenants []Tenant `json:"tenants"`
}

// CreateTenantRequest provisions a tenant. OwnerUserID defaults to the caller.
type CreateTenantRequest struct {
	Name        string `json:"name"`
	Slug        string `json:"slug,omitempty"`
	OwnerUserID string `json:"owner_user_id,omitempty"`
}

// UpdateTenantRequest is a partial update; nil fields are left alone. An
// empty slug clears it. Active is not patchable, use the toggle endpoint.
type UpdateTenantRequest struct {
	Name        *string `json:"name,omitempty"`
	Slug        *string `json:"slug,omitempty"`
	OwnerUserID *string `json:"owner_user_id,omitempty"`
}

// ============================================================================
// Invitations
// ============================================================================

// Invitation status values. "expired" is computed when the invitation is
// read; it is never stored.
const (
	InvitationPending  = "pending"
	InvitationAccepted = "accepted"
	InvitationRevoked  = "revoked"
	InvitationExpired  = "expired"
)

// Invitation onboards one email address into one tenant. The token itself
// is only ever sent to the invitee.
type Invitation struct {
	ID          string     `json:"id"`
	TenantID    string     `json:"tenant_id"`
	Email       string     `json:"email"`
	Role        string     `json:"role"`
	Status      string     `json:"status"`
	ExpiresAt   time.Time  `json:"expires_at"`
	CreatedBy   string     `json:"created_by"`
	ResendCount int        `json:"resend_count"`
	LastSentAt  time.Time  `json:"last_sent_at"`
	AcceptedBy  string     `json:"accepted_by,omitempty"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// InvitationResponse wraps a single invitation.
type InvitationResponse struct {
	Invitation Invitation `json:"invitation"`
}

// InvitationListResponse wraps a tenant's invitations, newest first.
type InvitationListResponse struct {
	Invitations []Invitation `json:"invitations"`
}

// CreateInviteRequest invites an email into a tenant. Role is "user"
// (default) or "admin".
type CreateInviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

// AcceptInviteRequest redeems the token delivered to the invitee.
type AcceptInviteRequest struct {
	Token string `json:"token"`
}

// SuccessResponse acknowledges an operation with no other payload.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// ============================================================================
// Members
// ============================================================================

// Member is a user who joined a tenant by accepting an invitation.
type Member struct {
	TenantID     string    `json:"tenant_id"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	InvitationID string    `json:"invitation_id,omitempty"`
	JoinedAt     time.Time `json:"joined_at"`
}

// MemberListResponse wraps a tenant's members in join order.
type MemberListResponse struct {
	Members []Member `json:"members"`
}
