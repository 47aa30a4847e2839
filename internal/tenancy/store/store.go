package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/gabinete/internal/tenancy/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrStale means a conditional write found the row in a different state
	// than the caller expected. Nothing was written.
	ErrStale = errors.New("store: stale precondition")
)

// Store is the root data access interface. Concrete drivers implement this.
// Sub-repositories are methods so a Tx can hand out tx-bound repos and nested
// transactions are impossible to start by accident.
type Store interface {
	Tenants() Tenants
	Invitations() Invitations
	Members() Members

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction: rolled back if fn errors, committed
	// otherwise. Inside fn use the tx argument, never the outer Store.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Tenants interface {
	// CreateTenant inserts a tenant. Duplicate slug yields ErrAlreadyExists.
	CreateTenant(ctx context.Context, t domain.Tenant) error

	GetTenantByID(ctx context.Context, id string) (domain.Tenant, error)

	// ListTenants returns every tenant, newest first.
	ListTenants(ctx context.Context) ([]domain.Tenant, error)

	// UpdateTenant applies a normalized patch in a single statement and bumps
	// updated_at. The active column is never touched. Duplicate slug yields
	// ErrAlreadyExists.
	UpdateTenant(ctx context.Context, id string, patch domain.TenantPatch, now time.Time) (domain.Tenant, error)

	// SetTenantActive flips active to next only if it currently equals !next.
	// ErrStale if another writer got there first, ErrNotFound if the tenant
	// does not exist.
	SetTenantActive(ctx context.Context, id string, next bool, now time.Time) (domain.Tenant, error)
}

// InvitationTransition is the guard and payload of a conditional update.
type InvitationTransition struct {
	ID string

	// TokenHash, when set, must match the stored hash for the update to apply.
	TokenHash string

	Now time.Time
}

type Invitations interface {
	CreateInvitation(ctx context.Context, inv domain.Invitation) error

	GetInvitationByID(ctx context.Context, id string) (domain.Invitation, error)

	GetInvitationByTokenHash(ctx context.Context, hash string) (domain.Invitation, error)

	// ListInvitationsByTenant returns a tenant's invitations, newest first.
	ListInvitationsByTenant(ctx context.Context, tenantID string) ([]domain.Invitation, error)

	// FindPendingInvitation returns the pending invitation for tenant+email
	// that has not expired at now.
	FindPendingInvitation(ctx context.Context, tenantID, email string, now time.Time) (domain.Invitation, error)

	// RevokeInvitation moves a pending invitation to revoked. ErrStale when
	// the invitation is not pending or its token no longer matches tr.TokenHash.
	RevokeInvitation(ctx context.Context, tr InvitationTransition) (domain.Invitation, error)

	// RotateInvitation replaces the token of a pending invitation, pushes its
	// expiry, bumps resend_count and last_sent_at. ErrStale when not pending
	// or when its token no longer matches tr.TokenHash.
	RotateInvitation(ctx context.Context, tr InvitationTransition, newTokenHash string, expiresAt time.Time) (domain.Invitation, error)

	// AcceptInvitation moves a pending, unexpired invitation whose token
	// matches tr.TokenHash to accepted. ErrStale otherwise.
	AcceptInvitation(ctx context.Context, tr InvitationTransition, userID string) (domain.Invitation, error)
}

type Members interface {
	// AddMember records a tenant membership. ErrAlreadyExists if the user is
	// already a member of the tenant.
	AddMember(ctx context.Context, m domain.Member) error

	ListMembers(ctx context.Context, tenantID string) ([]domain.Member, error)
}
