package httpx

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/gabinete/pkg/slogx"
	"golang.org/x/time/rate"
)

// UnknownClientKey is the bucket shared by every request that carries neither
// X-Forwarded-For nor X-Real-IP. Those clients throttle each other; callers
// behind a proxy that sets the headers are unaffected.
const UnknownClientKey = "unknown"

// RateLimitConfig defines the rate limiting parameters.
type RateLimitConfig struct {
	// Requests is the number of requests allowed per Window.
	Requests int
	// Window is the time window for rate limiting.
	Window time.Duration
}

// Default profiles. The app overrides both from configuration.
var (
	// PublicLimit guards unauthenticated endpoints.
	PublicLimit = RateLimitConfig{Requests: 5, Window: time.Minute}
	// AdminLimit guards authenticated endpoints, keyed per user.
	AdminLimit = RateLimitConfig{Requests: 60, Window: time.Minute}
)

// Limiter decides whether a request identified by key is admitted.
// Implementations must be safe for concurrent use.
type Limiter interface {
	Check(key string, limit int, window time.Duration) bool
}

// retryAfterer is implemented by limiters that can say when a key frees up.
type retryAfterer interface {
	RetryAfter(key string) time.Duration
}

// KeyExtractor is a function that extracts a unique key from the request
// for rate limiting purposes (e.g., IP address, user ID).
type KeyExtractor func(*http.Request) string

// IPKeyExtractor returns the first X-Forwarded-For entry, then X-Real-IP,
// then UnknownClientKey. RemoteAddr is ignored on purpose: behind the load
// balancer it is always the balancer.
func IPKeyExtractor(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	return UnknownClientKey
}

// UserOrIPKeyExtractor keys authenticated requests on the user ID alone and
// anonymous ones on the client address. The prefixes keep the two spaces
// apart.
func UserOrIPKeyExtractor(r *http.Request) string {
	if userID := UserIDFromContext(r.Context()); userID != "" {
		return "user:" + userID
	}
	return "ip:" + IPKeyExtractor(r)
}

// TokenBucket is a Limiter backed by one golang.org/x/time/rate limiter per
// key. It smooths traffic instead of resetting at window edges, which suits
// authenticated admin traffic better than the public fixed window.
type TokenBucket struct {
	limiters sync.Map // map[string]*rate.Limiter
	mu       sync.Mutex
	// Cleanup old limiters periodically
	lastCleanup time.Time
}

// NewTokenBucket returns an empty TokenBucket.
func NewTokenBucket() *TokenBucket {
	return &TokenBucket{lastCleanup: time.Now()}
}

// Check admits the request if the key's bucket has a token. The first call
// for a key fixes its rate at limit/window with a burst of limit.
func (tb *TokenBucket) Check(key string, limit int, window time.Duration) bool {
	return tb.getLimiter(key, limit, window).Allow()
}

// RetryAfter reports when the next token for key becomes available.
func (tb *TokenBucket) RetryAfter(key string) time.Duration {
	v, ok := tb.limiters.Load(key)
	if !ok {
		return 0
	}
	limiter := v.(*rate.Limiter)

	reservation := limiter.Reserve()
	delay := reservation.Delay()
	reservation.Cancel() // Don't actually consume the reservation
	return delay
}

func (tb *TokenBucket) getLimiter(key string, limit int, window time.Duration) *rate.Limiter {
	// Fast path: limiter already exists
	if limiter, ok := tb.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}

	if limit < 1 {
		limit = 1
	}
	if window <= 0 {
		window = time.Second
	}
	perSecond := float64(limit) / window.Seconds()

	limiter := rate.NewLimiter(rate.Limit(perSecond), limit)
	actual, _ := tb.limiters.LoadOrStore(key, limiter)

	tb.maybeCleanup()

	return actual.(*rate.Limiter)
}

// maybeCleanup drops limiters whose bucket has refilled, at most once every
// five minutes.
func (tb *TokenBucket) maybeCleanup() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if time.Since(tb.lastCleanup) < 5*time.Minute {
		return
	}
	tb.lastCleanup = time.Now()

	tb.limiters.Range(func(key, value any) bool {
		limiter := value.(*rate.Limiter)
		if limiter.Tokens() >= float64(limiter.Burst()) {
			tb.limiters.Delete(key)
		}
		return true
	})
}

// RateLimitMiddleware rejects requests over config with 429. Requests whose
// key cannot be extracted pass through.
func RateLimitMiddleware(limiter Limiter, config RateLimitConfig, keyExtractor KeyExtractor) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := slogx.FromContext(r.Context())

			key := keyExtractor(r)
			if key == "" {
				log.Warn("rate limit: unable to extract key, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			if limiter.Check(key, config.Requests, config.Window) {
				next.ServeHTTP(w, r)
				return
			}

			retryAfter := 1
			if ra, ok := limiter.(retryAfterer); ok {
				retryAfter = max(int(ra.RetryAfter(key).Seconds()), 1)
			}

			w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", config.Requests))
			w.Header().Set("X-RateLimit-Window", config.Window.String())

			log.Warn("rate limit exceeded",
				"key", key,
				"endpoint", r.URL.Path,
				"retry_after", retryAfter,
			)

			WriteError(w, http.StatusTooManyRequests,
				"rate_limited", "Too many requests. Please try again later.")
		})
	}
}

// RateLimitByIP limits by client address.
func RateLimitByIP(limiter Limiter, config RateLimitConfig) Middleware {
	return RateLimitMiddleware(limiter, config, IPKeyExtractor)
}

// RateLimitByUser limits by authenticated user ID alone. The client address,
// which callers control through forwarding headers, is only used for
// anonymous requests.
func RateLimitByUser(limiter Limiter, config RateLimitConfig) Middleware {
	return RateLimitMiddleware(limiter, config, UserOrIPKeyExtractor)
}
