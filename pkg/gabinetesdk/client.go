package gabinetesdk

import (
	"net/http"
	"strings"
	"sync"
	"time"
)

// Client talks to the tenancy service.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a client with a 10s timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Session makes authenticated calls with an identity token.
type Session struct {
	client *Client

	mu    sync.RWMutex
	token string
}

// NewSession binds an identity token to the client.
func (c *Client) NewSession(token string) *Session {
	return &Session{client: c, token: token}
}

// SetToken replaces the identity token, e.g. after the provider rotated it.
func (s *Session) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

func (s *Session) currentToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}
