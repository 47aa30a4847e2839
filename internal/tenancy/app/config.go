package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Env                 string        `env:"ENV"                   envDefault:"dev"`  // dev, staging, prod
	LogLevel            string        `env:"LOG_LEVEL"             envDefault:"info"` // debug, info, warn, error
	LogFormat           string        `env:"LOG_FORMAT"            envDefault:"json"` // json, text
	Port                int           `env:"PORT"                  envDefault:"8080"`
	ShutdownGracePeriod time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`

	DatabaseFile string `env:"GABINETE_DATABASE_FILE" envDefault:"gabinete.db"`

	// SuperAdminEmails may manage every tenant.
	SuperAdminEmails []string `env:"GABINETE_SUPER_ADMIN_EMAILS" envDefault:"admin@gabinete.local" envSeparator:","`

	// Identity provider. Exactly one of JWKSURL and JWKSFile is required.
	IDPIssuer     string        `env:"GABINETE_IDP_ISSUER"`
	IDPAudience   []string      `env:"GABINETE_IDP_AUDIENCE"     envSeparator:","`
	JWKSURL       string        `env:"GABINETE_IDP_JWKS_URL"`
	JWKSFile      string        `env:"GABINETE_IDP_JWKS_FILE"`
	JWKSRefresh   time.Duration `env:"GABINETE_IDP_JWKS_REFRESH" envDefault:"15m"`
	SessionLeeway time.Duration `env:"GABINETE_SESSION_LEEWAY"   envDefault:"30s"`
	SessionCookie string        `env:"GABINETE_SESSION_COOKIE_NAME"`

	PublicRateLimitRequests int           `env:"GABINETE_RATELIMIT_PUBLIC_REQUESTS" envDefault:"5"`
	PublicRateLimitWindow   time.Duration `env:"GABINETE_RATELIMIT_PUBLIC_WINDOW"   envDefault:"60s"`
	AdminRateLimitRequests  int           `env:"GABINETE_RATELIMIT_ADMIN_REQUESTS"  envDefault:"60"`
	AdminRateLimitWindow    time.Duration `env:"GABINETE_RATELIMIT_ADMIN_WINDOW"    envDefault:"1m"`
	RateLimitSweepInterval  time.Duration `env:"GABINETE_RATELIMIT_SWEEP_INTERVAL"  envDefault:"5m"`

	InviteTTL          time.Duration `env:"GABINETE_INVITE_TTL"           envDefault:"72h"`
	InviteResendLimit  int           `env:"GABINETE_INVITE_RESEND_LIMIT"  envDefault:"3"`
	InviteResendWindow time.Duration `env:"GABINETE_INVITE_RESEND_WINDOW" envDefault:"1h"`
	InviteAcceptURL    string        `env:"GABINETE_INVITE_ACCEPT_URL"`

	// NotifyWebhookURL receives invitation messages. Empty logs them instead.
	NotifyWebhookURL     string        `env:"GABINETE_NOTIFY_WEBHOOK_URL"`
	NotifyWebhookTimeout time.Duration `env:"GABINETE_NOTIFY_WEBHOOK_TIMEOUT" envDefault:"5s"`
	NotifyWebhookRetries uint64        `env:"GABINETE_NOTIFY_WEBHOOK_RETRIES" envDefault:"2"`

	OTelEnabled  bool   `env:"GABINETE_OTEL_ENABLED"`
	OTelEndpoint string `env:"GABINETE_OTEL_ENDPOINT"`
}

// LoadConfig reads Config from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error

	switch {
	case c.JWKSURL == "" && c.JWKSFile == "":
		errs = append(errs, errors.New("one of GABINETE_IDP_JWKS_URL or GABINETE_IDP_JWKS_FILE is required"))
	case c.JWKSURL != "" && c.JWKSFile != "":
		errs = append(errs, errors.New("GABINETE_IDP_JWKS_URL and GABINETE_IDP_JWKS_FILE are mutually exclusive"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	if c.PublicRateLimitRequests < 1 || c.AdminRateLimitRequests < 1 || c.InviteResendLimit < 1 {
		errs = append(errs, errors.New("rate limits must allow at least one request"))
	}
	if c.PublicRateLimitWindow <= 0 || c.AdminRateLimitWindow <= 0 || c.InviteResendWindow <= 0 {
		errs = append(errs, errors.New("rate limit windows must be positive"))
	}
	if c.InviteTTL <= 0 {
		errs = append(errs, errors.New("GABINETE_INVITE_TTL must be positive"))
	}
	if c.OTelEnabled && c.OTelEndpoint == "" {
		errs = append(errs, errors.New("GABINETE_OTEL_ENDPOINT is required when tracing is enabled"))
	}

	return errors.Join(errs...)
}
