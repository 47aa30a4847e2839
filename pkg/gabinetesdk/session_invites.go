package gabinetesdk

import (
	"context"
	"net/http"
	"net/url"
)

// ListInvites returns a tenant's invitations.
func (s *Session) ListInvites(ctx context.Context, tenantID string) ([]Invitation, error) {
	var out InvitationListResponse
	path := "/v1/tenants/" + url.PathEscape(tenantID) + "/invites"
	if err := s.doJSON(ctx, http.MethodGet, path, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Invitations, nil
}

// CreateInvite invites an email into a tenant. The token is delivered to
// the invitee, never returned here.
func (s *Session) CreateInvite(ctx context.Context, tenantID string, req CreateInviteRequest) (*Invitation, error) {
	var out InvitationResponse
	path := "/v1/tenants/" + url.PathEscape(tenantID) + "/invites"
	if err := s.doJSON(ctx, http.MethodPost, path, req, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out.Invitation, nil
}

// RevokeInvite revokes a pending invitation.
func (s *Session) RevokeInvite(ctx context.Context, id string) error {
	var out SuccessResponse
	return s.doJSON(ctx, http.MethodDelete, "/v1/invites/"+url.PathEscape(id), nil, &out, http.StatusOK)
}

// ResendInvite rotates the invitation token and sends it again.
func (s *Session) ResendInvite(ctx context.Context, id string) (*Invitation, error) {
	var out InvitationResponse
	if err := s.doJSON(ctx, http.MethodPatch, "/v1/invites/"+url.PathEscape(id), nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out.Invitation, nil
}

// AcceptInvite redeems an invitation token for the session's user.
func (s *Session) AcceptInvite(ctx context.Context, token string) (*Invitation, error) {
	var out InvitationResponse
	req := AcceptInviteRequest{Token: token}
	if err := s.doJSON(ctx, http.MethodPost, "/v1/invites/accept", req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out.Invitation, nil
}
