package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/gabinete/internal/tenancy/service"
	"github.com/aussiebroadwan/gabinete/internal/tenancy/store"
	"github.com/aussiebroadwan/gabinete/pkg/httpx"
	"github.com/aussiebroadwan/gabinete/pkg/jwtx"
	"github.com/aussiebroadwan/gabinete/pkg/ratelimit"
	"github.com/aussiebroadwan/gabinete/pkg/slogx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	_ "github.com/aussiebroadwan/gabinete/api/tenancy" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware
	handler     http.Handler

	keys         *jwtx.KeySet
	guard        *service.Guard
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	TenantService     *service.TenantService
	InvitationService *service.InvitationService

	// SessionCookie is read when no Authorization header is sent. Empty
	// disables cookie sessions.
	SessionCookie string

	// PublicLimiter keys on client address and guards unauthenticated or
	// cheap endpoints. AdminLimiter keys on the caller.
	PublicLimiter httpx.Limiter
	PublicLimit   httpx.RateLimitConfig
	AdminLimiter  httpx.Limiter
	AdminLimit    httpx.RateLimitConfig
}

func NewRouter(
	keys *jwtx.KeySet,
	guard *service.Guard,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		guard:        guard,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,

		PublicLimiter: ratelimit.New(ratelimit.Options{Logger: logger}),
		PublicLimit:   httpx.PublicLimit,
		AdminLimiter:  httpx.NewTokenBucket(),
		AdminLimit:    httpx.AdminLimit,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerTenants()
	r.registerInvites()
	r.registerMembers()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())

	// otelhttp sits outside the request logger so log lines carry the trace id.
	r.handler = otelhttp.NewHandler(
		httpx.Chain(r.Mux, r.middlewares...),
		"gabinete",
		// The route is not known yet at this point; paths carry ids.
		otelhttp.WithSpanNameFormatter(func(_ string, req *http.Request) string {
			return "HTTP " + req.Method
		}),
	)
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Gabinete Tenancy Service API
//	@version		0.1.0
//	@description	Multi-tenant administration: tenant provisioning for platform super-admins and invitation management for tenant members.
//	@description
//	@description				Sessions are identity tokens issued by the identity provider and verified against its JWKS.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/gabinete
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Identity token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if r.handler == nil {
		httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
		return
	}
	r.handler.ServeHTTP(w, req)
}

// secured authenticates the caller and then applies the per-user limit.
func (r *Router) secured(h http.Handler) http.Handler {
	return httpx.Chain(h,
		Authenticate(r.guard, r.SessionCookie),
		httpx.RateLimitByUser(r.AdminLimiter, r.AdminLimit),
	)
}

func (r *Router) registerTenants() {
	h := &TenantsHandler{TenantService: r.TenantService}

	r.Mux.Handle("GET /v1/tenants", r.secured(http.HandlerFunc(h.HandleList)))
	r.Mux.Handle("POST /v1/tenants", r.secured(http.HandlerFunc(h.HandleCreate)))
	r.Mux.Handle("GET /v1/tenants/{id}", r.secured(http.HandlerFunc(h.HandleGet)))
	r.Mux.Handle("PATCH /v1/tenants/{id}", r.secured(http.HandlerFunc(h.HandleUpdate)))

	toggle := r.secured(http.HandlerFunc(h.HandleToggle))
	r.Mux.Handle("POST /v1/tenants/{id}/toggle-status", toggle)
	r.Mux.Handle("PUT /v1/tenants/{id}/toggle-status", toggle)
}

func (r *Router) registerInvites() {
	h := &InvitesHandler{InvitationService: r.InvitationService}

	r.Mux.Handle("GET /v1/tenants/{id}/invites", r.secured(http.HandlerFunc(h.HandleList)))
	r.Mux.Handle("POST /v1/tenants/{id}/invites", r.secured(http.HandlerFunc(h.HandleCreate)))
	r.Mux.Handle("DELETE /v1/invites/{id}", r.secured(http.HandlerFunc(h.HandleRevoke)))
	r.Mux.Handle("PATCH /v1/invites/{id}", r.secured(http.HandlerFunc(h.HandleResend)))

	// POST /invites/accept - public limit by IP, checked before the session so
	// token guessing is throttled even without a valid session.
	r.Mux.Handle("POST /v1/invites/accept",
		httpx.Chain(http.HandlerFunc(h.HandleAccept),
			httpx.RateLimitByIP(r.PublicLimiter, r.PublicLimit),
			Authenticate(r.guard, r.SessionCookie),
		),
	)
}

func (r *Router) registerMembers() {
	h := &MembersHandler{InvitationService: r.InvitationService}
	r.Mux.Handle("GET /v1/tenants/{id}/members", r.secured(h))
}

func (r *Router) registerSystem() {
	// Probes share the public limiter under their own key space.
	probeLimit := httpx.RateLimitConfig{Requests: r.PublicLimit.Requests * 12, Window: r.PublicLimit.Window}

	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitMiddleware(r.PublicLimiter, probeLimit, probeKey),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys),
			httpx.RateLimitMiddleware(r.PublicLimiter, probeLimit, probeKey),
		),
	)
}

func probeKey(req *http.Request) string {
	return "probe:" + httpx.IPKeyExtractor(req)
}
