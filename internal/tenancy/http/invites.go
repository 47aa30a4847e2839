package http

import (
	"net/http"

	"github.com/aussiebroadwan/gabinete/internal/tenancy/domain"
	"github.com/aussiebroadwan/gabinete/internal/tenancy/service"
	"github.com/aussiebroadwan/gabinete/pkg/gabinetesdk"
	"github.com/aussiebroadwan/gabinete/pkg/httpx"
)

type InvitesHandler struct {
	InvitationService *service.InvitationService
}

// HandleList godoc
//
//	@Summary		List Invitations
//	@Description	List a tenant's invitations, newest first. Pending invitations past their expiry are reported as expired.
//	@Tags			Invitations
//	@Produce		json
//	@Param			id	path		string								true	"Tenant ID"
//	@Success		200	{object}	gabinetesdk.InvitationListResponse	"invitations"
//	@Failure		401	{object}	gabinetesdk.ErrorResponse			"error, error_description"
//	@Failure		403	{object}	gabinetesdk.ErrorResponse			"error, error_description"
//	@Security		BearerAuth
//	@Router			/v1/tenants/{id}/invites [get].
func (h *InvitesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, _ := callerFrom(ctx)

	invs, err := h.InvitationService.ListInvites(ctx, caller, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	now := h.InvitationService.Now()
	httpx.WriteJSON(w, http.StatusOK, gabinetesdk.InvitationListResponse{Invitations: toInvitations(invs, now)})
}

// HandleCreate godoc
//
//	@Summary		Create Invitation
//	@Description	Invite an email address into the tenant. The invitation token is delivered to the invitee and never returned.
//	@Description	Tenant admins may invite users and admins; plain members may invite users only.
//	@Tags			Invitations
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string							true	"Tenant ID"
//	@Param			request	body		gabinetesdk.CreateInviteRequest	true	"Invitation"
//	@Success		201		{object}	gabinetesdk.InvitationResponse	"invitation"
//	@Failure		400		{object}	gabinetesdk.ErrorResponse		"invalid email/role, pending invite exists, tenant inactive"
//	@Failure		401		{object}	gabinetesdk.ErrorResponse		"error, error_description"
//	@Failure		403		{object}	gabinetesdk.ErrorResponse		"error, error_description"
//	@Failure		404		{object}	gabinetesdk.ErrorResponse		"tenant not found"
//	@Security		BearerAuth
//	@Router			/v1/tenants/{id}/invites [post].
func (h *InvitesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, _ := callerFrom(ctx)

	var req gabinetesdk.CreateInviteRequest
	if !decodeBody(w, r, &req) {
		return
	}

	role := domain.RoleUser
	if req.Role != "" {
		parsed, ok := domain.ParseRole(req.Role)
		if !ok {
			writeBadRequest(w, "Role must be user or admin")
			return
		}
		role = parsed
	}

	inv, err := h.InvitationService.CreateInvite(ctx, caller, service.CreateInviteInput{
		TenantID: r.PathValue("id"),
		Email:    req.Email,
		Role:     role,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, gabinetesdk.InvitationResponse{
		Invitation: toInvitation(inv, h.InvitationService.Now()),
	})
}

// HandleRevoke godoc
//
//	@Summary		Revoke Invitation
//	@Description	Revoke a pending invitation, expired or not. Accepted and revoked invitations cannot be revoked.
//	@Tags			Invitations
//	@Produce		json
//	@Param			id	path		string						true	"Invitation ID"
//	@Success		200	{object}	gabinetesdk.SuccessResponse	"success"
//	@Failure		400	{object}	gabinetesdk.ErrorResponse	"invitation already accepted or revoked"
//	@Failure		401	{object}	gabinetesdk.ErrorResponse	"error, error_description"
//	@Failure		403	{object}	gabinetesdk.ErrorResponse	"error, error_description"
//	@Failure		404	{object}	gabinetesdk.ErrorResponse	"error, error_description"
//	@Security		BearerAuth
//	@Router			/v1/invites/{id} [delete].
func (h *InvitesHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, _ := callerFrom(ctx)

	if _, err := h.InvitationService.RevokeInvite(ctx, caller, r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, gabinetesdk.SuccessResponse{Success: true})
}

// HandleResend godoc
//
//	@Summary		Resend Invitation
//	@Description	Rotate the invitation token, extend the expiry and deliver it again. The previous token stops working.
//	@Description	Each invitation may be resent a limited number of times per window.
//	@Tags			Invitations
//	@Produce		json
//	@Param			id	path		string							true	"Invitation ID"
//	@Success		200	{object}	gabinetesdk.InvitationResponse	"invitation"
//	@Failure		400	{object}	gabinetesdk.ErrorResponse		"invitation already accepted or revoked, resend limit reached"
//	@Failure		401	{object}	gabinetesdk.ErrorResponse		"error, error_description"
//	@Failure		403	{object}	gabinetesdk.ErrorResponse		"error, error_description"
//	@Failure		404	{object}	gabinetesdk.ErrorResponse		"error, error_description"
//	@Failure		429	{object}	gabinetesdk.ErrorResponse		"per-user request limit"
//	@Security		BearerAuth
//	@Router			/v1/invites/{id} [patch].
func (h *InvitesHandler) HandleResend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, _ := callerFrom(ctx)

	inv, err := h.InvitationService.ResendInvite(ctx, caller, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, gabinetesdk.InvitationResponse{
		Invitation: toInvitation(inv, h.InvitationService.Now()),
	})
}

// HandleAccept godoc
//
//	@Summary		Accept Invitation
//	@Description	Redeem an invitation token. The caller's email must match the invited address. The caller joins the tenant with the invited role.
//	@Tags			Invitations
//	@Accept			json
//	@Produce		json
//	@Param			request	body		gabinetesdk.AcceptInviteRequest	true	"Token"
//	@Success		200		{object}	gabinetesdk.InvitationResponse	"invitation"
//	@Failure		400		{object}	gabinetesdk.ErrorResponse		"missing token, invitation not pending"
//	@Failure		401		{object}	gabinetesdk.ErrorResponse		"error, error_description"
//	@Failure		403		{object}	gabinetesdk.ErrorResponse		"invitation is for another email"
//	@Failure		404		{object}	gabinetesdk.ErrorResponse		"unknown token"
//	@Failure		429		{object}	gabinetesdk.ErrorResponse		"error, error_description"
//	@Security		BearerAuth
//	@Router			/v1/invites/accept [post].
func (h *InvitesHandler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, _ := callerFrom(ctx)

	var req gabinetesdk.AcceptInviteRequest
	if !decodeBody(w, r, &req) {
		return
	}

	inv, err := h.InvitationService.AcceptInvite(ctx, caller, req.Token)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, gabinetesdk.InvitationResponse{
		Invitation: toInvitation(inv, h.InvitationService.Now()),
	})
}
