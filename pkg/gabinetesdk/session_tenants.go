package gabinetesdk

import (
	"context"
	"net/http"
	"net/url"
)

// ListTenants returns every tenant. Super-admin only.
func (s *Session) ListTenants(ctx context.Context) ([]Tenant, error) {
	var out TenantListResponse
	if err := s.doJSON(ctx, http.MethodGet, "/v1/tenants", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Tenants, nil
}

// CreateTenant provisions an active tenant. Super-admin only.
func (s *Session) CreateTenant(ctx context.Context, req CreateTenantRequest) (*Tenant, error) {
	var out TenantResponse
	if err := s.doJSON(ctx, http.MethodPost, "/v1/tenants", req, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out.Tenant, nil
}

// GetTenant fetches a tenant. Super-admin only.
func (s *Session) GetTenant(ctx context.Context, id string) (*Tenant, error) {
	var out TenantResponse
	if err := s.doJSON(ctx, http.MethodGet, "/v1/tenants/"+url.PathEscape(id), nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out.Tenant, nil
}

// UpdateTenant applies a partial update. Super-admin only.
func (s *Session) UpdateTenant(ctx context.Context, id string, req UpdateTenantRequest) (*Tenant, error) {
	var out TenantResponse
	if err := s.doJSON(ctx, http.MethodPatch, "/v1/tenants/"+url.PathEscape(id), req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out.Tenant, nil
}

// ToggleTenantStatus flips the tenant's active flag. Super-admin only.
func (s *Session) ToggleTenantStatus(ctx context.Context, id string) (*Tenant, error) {
	var out TenantResponse
	path := "/v1/tenants/" + url.PathEscape(id) + "/toggle-status"
	if err := s.doJSON(ctx, http.MethodPost, path, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out.Tenant, nil
}

// ListMembers returns the users who joined the tenant.
func (s *Session) ListMembers(ctx context.Context, tenantID string) ([]Member, error) {
	var out MemberListResponse
	path := "/v1/tenants/" + url.PathEscape(tenantID) + "/members"
	if err := s.doJSON(ctx, http.MethodGet, path, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Members, nil
}
