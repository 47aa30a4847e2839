package http

import (
	"context"
	"net/http"

	"github.com/aussiebroadwan/gabinete/internal/tenancy/domain"
	"github.com/aussiebroadwan/gabinete/internal/tenancy/service"
	"github.com/aussiebroadwan/gabinete/pkg/httpx"
	"github.com/aussiebroadwan/gabinete/pkg/slogx"
)

type callerKey struct{}

func withCaller(ctx context.Context, c domain.Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// callerFrom returns the caller resolved by Authenticate. Handlers behind
// Authenticate can rely on ok being true.
func callerFrom(ctx context.Context) (domain.Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(domain.Caller)
	return c, ok
}

// Authenticate resolves the session on every request and rejects the request
// with a bearer challenge when it does not verify. The session is read from
// the Authorization header, then from cookieName.
func Authenticate(guard *service.Guard, cookieName string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			caller, err := guard.ResolveCaller(ctx, httpx.SessionToken(r, cookieName))
			if err != nil {
				httpx.WriteBearerError(w, describe(err))
				return
			}

			ctx = withCaller(ctx, caller)
			ctx = httpx.WithUserID(ctx, caller.UserID)
			ctx = slogx.With(ctx, "user_id", caller.UserID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
