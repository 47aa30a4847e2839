package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/gabinete/internal/tenancy/store"
	"github.com/aussiebroadwan/gabinete/pkg/gabinetesdk"
	"github.com/aussiebroadwan/gabinete/pkg/httpx"
	"github.com/aussiebroadwan/gabinete/pkg/jwtx"
)

// ReadyzHandler godoc
//
//	@Summary		Readiness Check Endpoint
//	@Description	Readiness probe checking the database and that identity provider keys are loaded
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	gabinetesdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	gabinetesdk.HealthResponse	"status, uptime, version, checks - service not ready"
//	@Router			/readyz [get].
func ReadyzHandler(
	startTime time.Time,
	version string,
	st store.Store,
	keys *jwtx.KeySet,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &gabinetesdk.HealthChecks{
			Database: "ok",
			Identity: "ok",
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks.Database = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		// Without keys no session can verify.
		if keys == nil || !keys.IsReady() {
			checks.Identity = "error: no keys loaded"
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, statusCode, gabinetesdk.HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
