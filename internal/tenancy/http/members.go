package http

import (
	"net/http"

	"github.com/aussiebroadwan/gabinete/internal/tenancy/service"
	"github.com/aussiebroadwan/gabinete/pkg/gabinetesdk"
	"github.com/aussiebroadwan/gabinete/pkg/httpx"
)

type MembersHandler struct {
	InvitationService *service.InvitationService
}

// ServeHTTP godoc
//
//	@Summary		List Members
//	@Description	List the users who joined the tenant by accepting an invitation, in join order.
//	@Tags			Members
//	@Produce		json
//	@Param			id	path		string							true	"Tenant ID"
//	@Success		200	{object}	gabinetesdk.MemberListResponse	"members"
//	@Failure		401	{object}	gabinetesdk.ErrorResponse		"error, error_description"
//	@Failure		403	{object}	gabinetesdk.ErrorResponse		"error, error_description"
//	@Security		BearerAuth
//	@Router			/v1/tenants/{id}/members [get].
func (h *MembersHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, _ := callerFrom(ctx)

	members, err := h.InvitationService.ListMembers(ctx, caller, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, gabinetesdk.MemberListResponse{Members: toMembers(members)})
}
