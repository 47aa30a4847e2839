package http

import (
	"encoding/json"
	"net/http"

	"github.com/aussiebroadwan/gabinete/internal/tenancy/domain"
	"github.com/aussiebroadwan/gabinete/internal/tenancy/service"
	"github.com/aussiebroadwan/gabinete/pkg/gabinetesdk"
	"github.com/aussiebroadwan/gabinete/pkg/httpx"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 64 << 10

type TenantsHandler struct {
	TenantService *service.TenantService
}

// HandleList godoc
//
//	@Summary		List Tenants
//	@Description	List every tenant, newest first. Super-admin only.
//	@Tags			Tenants
//	@Produce		json
//	@Success		200	{object}	gabinetesdk.TenantListResponse	"tenants"
//	@Failure		401	{object}	gabinetesdk.ErrorResponse		"error, error_description"
//	@Failure		403	{object}	gabinetesdk.ErrorResponse		"error, error_description"
//	@Security		BearerAuth
//	@Router			/v1/tenants [get].
func (h *TenantsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, _ := callerFrom(ctx)

	tenants, err := h.TenantService.ListTenants(ctx, caller)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, gabinetesdk.TenantListResponse{Tenants: toTenants(tenants)})
}

// HandleCreate godoc
//
//	@Summary		Create Tenant
//	@Description	Provision a new, active tenant. The owner defaults to the caller. Super-admin only.
//	@Tags			Tenants
//	@Accept			json
//	@Produce		json
//	@Param			request	body		gabinetesdk.CreateTenantRequest	true	"Tenant"
//	@Success		201		{object}	gabinetesdk.TenantResponse		"tenant"
//	@Failure		400		{object}	gabinetesdk.ErrorResponse		"invalid fields, slug already taken"
//	@Failure		401		{object}	gabinetesdk.ErrorResponse		"error, error_description"
//	@Failure		403		{object}	gabinetesdk.ErrorResponse		"error, error_description"
//	@Security		BearerAuth
//	@Router			/v1/tenants [post].
func (h *TenantsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, _ := callerFrom(ctx)

	var req gabinetesdk.CreateTenantRequest
	if !decodeBody(w, r, &req) {
		return
	}

	tenant, err := h.TenantService.CreateTenant(ctx, caller, service.CreateTenantInput{
		Name:        req.Name,
		Slug:        req.Slug,
		OwnerUserID: req.OwnerUserID,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, gabinetesdk.TenantResponse{Tenant: toTenant(tenant)})
}

// HandleGet godoc
//
//	@Summary		Get Tenant
//	@Description	Fetch a single tenant. Super-admin only.
//	@Tags			Tenants
//	@Produce		json
//	@Param			id	path		string						true	"Tenant ID"
//	@Success		200	{object}	gabinetesdk.TenantResponse	"tenant"
//	@Failure		401	{object}	gabinetesdk.ErrorResponse	"error, error_description"
//	@Failure		403	{object}	gabinetesdk.ErrorResponse	"error, error_description"
//	@Failure		404	{object}	gabinetesdk.ErrorResponse	"error, error_description"
//	@Security		BearerAuth
//	@Router			/v1/tenants/{id} [get].
func (h *TenantsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, _ := callerFrom(ctx)

	tenant, err := h.TenantService.GetTenant(ctx, caller, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, gabinetesdk.TenantResponse{Tenant: toTenant(tenant)})
}

// HandleUpdate godoc
//
//	@Summary		Update Tenant
//	@Description	Partially update a tenant's name, slug or owner. Omitted fields are left alone. Super-admin only.
//	@Tags			Tenants
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string							true	"Tenant ID"
//	@Param			request	body		gabinetesdk.UpdateTenantRequest	true	"Patch"
//	@Success		200		{object}	gabinetesdk.TenantResponse		"tenant"
//	@Failure		400		{object}	gabinetesdk.ErrorResponse		"invalid fields, slug already taken"
//	@Failure		401		{object}	gabinetesdk.ErrorResponse		"error, error_description"
//	@Failure		403		{object}	gabinetesdk.ErrorResponse		"error, error_description"
//	@Failure		404		{object}	gabinetesdk.ErrorResponse		"error, error_description"
//	@Security		BearerAuth
//	@Router			/v1/tenants/{id} [patch].
func (h *TenantsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, _ := callerFrom(ctx)

	var req gabinetesdk.UpdateTenantRequest
	if !decodeBody(w, r, &req) {
		return
	}

	tenant, err := h.TenantService.UpdateTenant(ctx, caller, r.PathValue("id"), domain.TenantPatch{
		Name:        req.Name,
		Slug:        req.Slug,
		OwnerUserID: req.OwnerUserID,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, gabinetesdk.TenantResponse{Tenant: toTenant(tenant)})
}

// HandleToggle godoc
//
//	@Summary		Toggle Tenant Status
//	@Description	Flip a tenant between active and inactive. Two toggles restore the original state. Super-admin only.
//	@Tags			Tenants
//	@Produce		json
//	@Param			id	path		string						true	"Tenant ID"
//	@Success		200	{object}	gabinetesdk.TenantResponse	"tenant"
//	@Failure		400	{object}	gabinetesdk.ErrorResponse	"concurrent update, retry"
//	@Failure		401	{object}	gabinetesdk.ErrorResponse	"error, error_description"
//	@Failure		403	{object}	gabinetesdk.ErrorResponse	"error, error_description"
//	@Failure		404	{object}	gabinetesdk.ErrorResponse	"error, error_description"
//	@Security		BearerAuth
//	@Router			/v1/tenants/{id}/toggle-status [post]
//	@Router			/v1/tenants/{id}/toggle-status [put].
func (h *TenantsHandler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, _ := callerFrom(ctx)

	tenant, err := h.TenantService.ToggleTenantStatus(ctx, caller, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, gabinetesdk.TenantResponse{Tenant: toTenant(tenant)})
}

// decodeBody reads a JSON body into v, writing a 400 and returning false when
// it does not parse.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeBadRequest(w, "Invalid JSON body")
		return false
	}
	return true
}
