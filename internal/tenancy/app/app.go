package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/gabinete/internal/tenancy/http"
	"github.com/aussiebroadwan/gabinete/internal/tenancy/notify"
	"github.com/aussiebroadwan/gabinete/internal/tenancy/service"
	"github.com/aussiebroadwan/gabinete/internal/tenancy/store"
	"github.com/aussiebroadwan/gabinete/internal/tenancy/store/drivers/sqlite"
	"github.com/aussiebroadwan/gabinete/pkg/httpx"
	"github.com/aussiebroadwan/gabinete/pkg/jwtx"
	"github.com/aussiebroadwan/gabinete/pkg/otelx"
	"github.com/aussiebroadwan/gabinete/pkg/ratelimit"
	"github.com/aussiebroadwan/gabinete/pkg/slogx"
)

// BuildVersion is overridden at build time via -ldflags.
var BuildVersion = "v0.1.0"

// Application encapsulates the tenancy service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db        store.Store
	keys      *jwtx.KeySet
	refresher *jwtx.Refresher // nil when keys come from a file
	guard     *service.Guard
	notifier  notify.Notifier

	// Background sweepers. publicLimiter throttles anonymous endpoints,
	// resendLimiter throttles invitation resends.
	publicLimiter *ratelimit.FixedWindow
	resendLimiter *ratelimit.FixedWindow

	shutdownTracing func(context.Context) error

	// Services
	tenantService     *service.TenantService
	invitationService *service.InvitationService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "gabinete",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	ctx := context.Background()

	shutdownTracing, err := otelx.Setup(ctx, otelx.Config{
		Enabled:     cfg.OTelEnabled,
		Endpoint:    cfg.OTelEndpoint,
		ServiceName: "gabinete",
		Version:     BuildVersion,
		Env:         cfg.Env,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	app.shutdownTracing = shutdownTracing

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	keys, refresher, err := InitIdentityKeys(ctx, cfg, app.logger)
	if err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to initialize identity keys: %w", err)
	}
	app.keys = keys
	app.refresher = refresher

	if err := app.initNotifier(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Handler exposes the routed handler, mainly for in-process tests.
func (app *Application) Handler() http.Handler {
	return app.router
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.startWorkers()

	app.logger.Info("tenancy service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.stopWorkers()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown drains in-flight requests, stops the background workers and
// closes the database.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down tenancy service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.stopWorkers()

	if err := app.shutdownTracing(ctx); err != nil {
		app.logger.Warn("error flushing traces", "error", err)
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("tenancy service stopped")
	return nil
}

func (app *Application) startWorkers() {
	app.publicLimiter.Start()
	app.resendLimiter.Start()
	if app.refresher != nil {
		app.refresher.Start()
	}
}

func (app *Application) stopWorkers() {
	if app.refresher != nil {
		app.refresher.Stop()
	}
	app.resendLimiter.Stop()
	app.publicLimiter.Stop()
}

// initDatabase opens the store and applies migrations.
func (app *Application) initDatabase() error {
	db, err := sqlite.NewStore(sqlite.DSN(app.cfg.DatabaseFile))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "file", app.cfg.DatabaseFile)
	return nil
}

func (app *Application) initNotifier() error {
	if app.cfg.NotifyWebhookURL == "" {
		app.logger.Warn("no notification webhook configured, invitations are only logged")
		app.notifier = notify.LogNotifier{}
		return nil
	}

	n, err := notify.NewWebhookNotifier(app.cfg.NotifyWebhookURL,
		notify.WithTimeout(app.cfg.NotifyWebhookTimeout),
		notify.WithRetry(app.cfg.NotifyWebhookRetries, 250*time.Millisecond),
		notify.WithLogger(app.logger),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize notifier: %w", err)
	}
	app.notifier = n
	return nil
}

// initServices initializes all business logic services.
func (app *Application) initServices() {
	app.guard = service.NewGuard(
		jwtx.NewVerifier(app.keys, jwtx.VerifyOptions{
			Issuer:   app.cfg.IDPIssuer,
			Audience: app.cfg.IDPAudience,
			Leeway:   app.cfg.SessionLeeway,
		}),
		app.cfg.SuperAdminEmails,
	)

	app.publicLimiter = ratelimit.New(ratelimit.Options{
		SweepInterval: app.cfg.RateLimitSweepInterval,
		Logger:        app.logger,
	})
	app.resendLimiter = ratelimit.New(ratelimit.Options{
		SweepInterval: app.cfg.RateLimitSweepInterval,
		Logger:        app.logger,
	})

	app.tenantService = &service.TenantService{Store: app.db}
	app.invitationService = &service.InvitationService{
		Store:    app.db,
		Limiter:  app.resendLimiter,
		Notifier: app.notifier,
		Policy: service.InvitationPolicy{
			TTL:          app.cfg.InviteTTL,
			ResendLimit:  app.cfg.InviteResendLimit,
			ResendWindow: app.cfg.InviteResendWindow,
			AcceptURL:    app.cfg.InviteAcceptURL,
		},
	}
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(app.keys, app.guard, BuildVersion, app.db, app.logger)

	router.TenantService = app.tenantService
	router.InvitationService = app.invitationService
	router.SessionCookie = app.cfg.SessionCookie
	router.PublicLimiter = app.publicLimiter
	router.PublicLimit = httpx.RateLimitConfig{
		Requests: app.cfg.PublicRateLimitRequests,
		Window:   app.cfg.PublicRateLimitWindow,
	}
	router.AdminLimit = httpx.RateLimitConfig{
		Requests: app.cfg.AdminRateLimitRequests,
		Window:   app.cfg.AdminRateLimitWindow,
	}
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
