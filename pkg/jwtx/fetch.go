package jwtx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"
)

// maxJWKSBytes caps how much of a JWKS response is read.
const maxJWKSBytes = 1 << 20

// ErrEmptyJWKS is returned when a key source yields no keys.
var ErrEmptyJWKS = errors.New("jwtx: empty JWKS")

// FetchJWKS downloads and decodes a JWKS document.
func FetchJWKS(ctx context.Context, client *http.Client, url string) (JWKS, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return JWKS{}, fmt.Errorf("jwtx: build JWKS request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return JWKS{}, fmt.Errorf("jwtx: fetch JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return JWKS{}, fmt.Errorf("jwtx: fetch JWKS: unexpected status %d", resp.StatusCode)
	}

	return decodeJWKS(io.LimitReader(resp.Body, maxJWKSBytes))
}

// LoadJWKSFile reads a JWKS document from disk.
func LoadJWKSFile(path string) (JWKS, error) {
	f, err := os.Open(path)
	if err != nil {
		return JWKS{}, fmt.Errorf("jwtx: open JWKS file: %w", err)
	}
	defer f.Close()

	return decodeJWKS(io.LimitReader(f, maxJWKSBytes))
}

func decodeJWKS(r io.Reader) (JWKS, error) {
	var jwks JWKS
	if err := json.NewDecoder(r).Decode(&jwks); err != nil {
		return JWKS{}, fmt.Errorf("jwtx: decode JWKS: %w", err)
	}
	if len(jwks.Keys) == 0 {
		return JWKS{}, ErrEmptyJWKS
	}
	return jwks, nil
}

// Refresher keeps a KeySet in sync with the identity provider's JWKS
// endpoint so key rotations upstream are picked up without a restart.
type Refresher struct {
	Keys     *KeySet
	URL      string
	Client   *http.Client
	Logger   *slog.Logger
	Interval time.Duration

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewRefresher creates a refresher. If interval is 0 or negative, defaults
// to 15 minutes.
func NewRefresher(keys *KeySet, url string, client *http.Client, logger *slog.Logger, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Refresher{
		Keys:     keys,
		URL:      url,
		Client:   client,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Refresh fetches the JWKS once and swaps it into the KeySet. A failed fetch
// leaves the current keys in place.
func (r *Refresher) Refresh(ctx context.Context) error {
	jwks, err := FetchJWKS(ctx, r.Client, r.URL)
	if err != nil {
		return err
	}
	if err := r.Keys.ResetFromJWKS(jwks); err != nil {
		return err
	}
	r.Logger.Debug("jwks refreshed", "keys", len(jwks.Keys))
	return nil
}

// Start begins the background refresh loop. Non-blocking.
func (r *Refresher) Start() {
	go r.run()
	r.Logger.Info("jwks refresher started", "url", r.URL, "interval", r.Interval)
}

// Stop halts the loop and waits for it to exit.
func (r *Refresher) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
		<-r.doneCh
		r.Logger.Info("jwks refresher stopped")
	})
}

func (r *Refresher) run() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := r.Refresh(ctx); err != nil {
				r.Logger.Warn("jwks refresh failed, keeping previous keys", "error", err)
			}
			cancel()
		case <-r.stopCh:
			return
		}
	}
}
