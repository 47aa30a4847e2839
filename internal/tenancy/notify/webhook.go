package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Option configures a WebhookNotifier.
type Option func(*options)

type options struct {
	timeout      time.Duration
	retryMax     uint64
	retryBackoff time.Duration
	httpClient   *http.Client
	logger       *slog.Logger
}

func defaultOptions() *options {
	return &options{
		timeout:      5 * time.Second,
		retryMax:     2,
		retryBackoff: 250 * time.Millisecond,
	}
}

// WithTimeout sets the per-attempt HTTP timeout. Default: 5s.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithRetry sets how many times a failed delivery is retried and the initial
// backoff between attempts. Default: 2 retries, 250ms.
func WithRetry(retries uint64, initial time.Duration) Option {
	return func(o *options) {
		o.retryMax = retries
		if initial > 0 {
			o.retryBackoff = initial
		}
	}
}

// WithHTTPClient replaces the default traced client. The timeout option is
// ignored when set.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WebhookNotifier POSTs each InvitationMessage as JSON to a fixed URL, where
// a mail relay takes over. 5xx, 408, 429 and transport errors are retried
// with exponential backoff; any other non-2xx status fails at once.
type WebhookNotifier struct {
	url    string
	client *http.Client
	opts   *options
}

// StatusError is returned when the webhook answers with a non-2xx status.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("notify: webhook returned status %d", e.StatusCode)
}

func NewWebhookNotifier(url string, opts ...Option) (*WebhookNotifier, error) {
	if url == "" {
		return nil, fmt.Errorf("notify: webhook url is required")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	client := o.httpClient
	if client == nil {
		client = &http.Client{
			Timeout:   o.timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	return &WebhookNotifier{url: url, client: client, opts: o}, nil
}

func (n *WebhookNotifier) SendInvitation(ctx context.Context, msg InvitationMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("notify: encode message: %w", err)
	}

	attempt := 0
	op := func() error {
		attempt++
		err := n.post(ctx, body)
		if err == nil {
			return nil
		}
		if se, ok := err.(*StatusError); ok && !isRetryableStatus(se.StatusCode) {
			return backoff.Permanent(err)
		}
		n.opts.logger.Warn("invitation webhook attempt failed",
			slog.String("invitation_id", msg.InvitationID),
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)
		return err
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = n.opts.retryBackoff
	eb.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(eb, n.opts.retryMax), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return fmt.Errorf("notify: deliver invitation %s: %w", msg.InvitationID, err)
	}
	return nil
}

func (n *WebhookNotifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
