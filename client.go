package clientele

import (
	"net/http"
	"strings"
)

// Client ties a base URL to a Backend and client-level defaults. One
// Client is long-lived and shared by all operations declared against it;
// its Backend pools connections across arbitrarily many sequential or
// concurrent calls.
type Client struct {
	baseURL       string
	backend       Backend
	headers       http.Header
	authorization string
	errorf        func(format string, args ...interface{})
}

// NewClient creates a client for the given base URL. Operation path
// templates are appended to it.
func NewClient(baseURL string, opts ...Option) *Client {
	config := NewDefaultConfig()
	for _, opt := range opts {
		opt(config)
	}

	backend := config.backend
	if backend == nil {
		backend = NewHTTPBackend(config.client, config.maxBody, config.errorf)
	}

	return &Client{
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		backend:       backend,
		headers:       config.headers,
		authorization: config.authorization,
		errorf:        config.errorf,
	}
}

// Backend returns the client's transport backend.
func (c *Client) Backend() Backend {
	return c.backend
}

// Close releases the backend's pooled connections.
func (c *Client) Close() error {
	return c.backend.Close()
}
