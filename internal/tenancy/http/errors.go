package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/gabinete/internal/tenancy/service"
	"github.com/aussiebroadwan/gabinete/pkg/gabinetesdk"
	"github.com/aussiebroadwan/gabinete/pkg/httpx"
)

// writeServiceError maps a service error onto a status and error body.
// Conflicts and the per-invitation resend limit are client errors (400) that
// keep their own error code; 429 is left to the throttling middleware.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		httpx.WriteBearerError(w, describe(err))
	case errors.Is(err, service.ErrUnauthorized):
		writeError(w, http.StatusForbidden, gabinetesdk.ErrorCodeUnauthorized, describe(err))
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, gabinetesdk.ErrorCodeNotFound, describe(err))
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusBadRequest, gabinetesdk.ErrorCodeInvalidRequest, describe(err))
	case errors.Is(err, service.ErrConflict):
		writeError(w, http.StatusBadRequest, gabinetesdk.ErrorCodeConflict, describe(err))
	case errors.Is(err, service.ErrRateLimited):
		writeError(w, http.StatusBadRequest, gabinetesdk.ErrorCodeRateLimited, describe(err))
	default:
		// Detail was logged where the error was produced.
		writeError(w, http.StatusInternalServerError, gabinetesdk.ErrorCodeServerError, "Internal server error")
	}
}

func writeError(w http.ResponseWriter, status int, code, desc string) {
	httpx.WriteJSON(w, status, gabinetesdk.ErrorResponse{
		Error:            code,
		ErrorDescription: desc,
	})
}

func writeBadRequest(w http.ResponseWriter, desc string) {
	writeError(w, http.StatusBadRequest, gabinetesdk.ErrorCodeInvalidRequest, desc)
}

// describe turns "conflict: invitation is already revoked" into
// "Invitation is already revoked". Bare sentinels keep their own text.
func describe(err error) string {
	msg := err.Error()
	if _, rest, ok := strings.Cut(msg, ": "); ok && rest != "" {
		msg = rest
	}
	if msg == "" {
		return msg
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}
