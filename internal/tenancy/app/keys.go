package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/gabinete/pkg/jwtx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// InitIdentityKeys loads the identity provider's public keys. With a JWKS URL
// the keys are fetched once up front and a Refresher is returned to keep them
// current; with a file the keys are static and the Refresher is nil.
func InitIdentityKeys(ctx context.Context, cfg Config, logger *slog.Logger) (*jwtx.KeySet, *jwtx.Refresher, error) {
	keys := jwtx.NewKeySet()

	if cfg.JWKSFile != "" {
		jwks, err := jwtx.LoadJWKSFile(cfg.JWKSFile)
		if err != nil {
			return nil, nil, fmt.Errorf("load jwks file: %w", err)
		}
		if err := keys.ResetFromJWKS(jwks); err != nil {
			return nil, nil, fmt.Errorf("load jwks file: %w", err)
		}
		logger.Info("identity keys loaded from file", "path", cfg.JWKSFile, "keys", len(jwks.Keys))
		return keys, nil, nil
	}

	client := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	refresher := jwtx.NewRefresher(keys, cfg.JWKSURL, client, logger, cfg.JWKSRefresh)

	// Start anyway when the provider is down; /readyz reports it until the
	// next refresh succeeds.
	if err := refresher.Refresh(ctx); err != nil {
		logger.Warn("initial jwks fetch failed", "url", cfg.JWKSURL, "error", err)
	}

	return keys, refresher, nil
}
