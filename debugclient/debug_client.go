// Package debugclient wraps an HTTP client so that every request is
// logged as a runnable curl command and every response as a full dump.
// Install it on a clientele client with the CustomClient option.
package debugclient

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"sync/atomic"

	"moul.io/http2curl"
)

// HttpClient is the client interface being wrapped.
type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
	CloseIdleConnections()
}

// Client numbers requests and writes both sides of each exchange to the
// log writer.
type Client struct {
	impl HttpClient
	log  io.Writer
	n    uint64
}

func New(impl HttpClient, log io.Writer) *Client {
	return &Client{
		impl: impl,
		log:  log,
	}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	n := atomic.AddUint64(&c.n, 1)

	curl, err := http2curl.GetCurlCommand(req)
	if err != nil {
		return nil, fmt.Errorf("http2curl.GetCurlCommand failed for %d: %w", n, err)
	}
	if _, err = fmt.Fprintf(c.log, "=== request %d ===\n$ %s\n=== end of request %d ===\n", n, curl, n); err != nil {
		return nil, fmt.Errorf("fmt.Fprintf(request) failed for %d: %w", n, err)
	}

	res, err := c.impl.Do(req)
	if err != nil {
		return nil, err
	}

	resDump, err := httputil.DumpResponse(res, true)
	if err != nil {
		return nil, fmt.Errorf("httputil.DumpResponse failed for %d: %w", n, err)
	}
	if _, err = fmt.Fprintf(c.log, "=== response %d ===\n%s\n=== end of response %d ===\n", n, string(resDump), n); err != nil {
		return nil, fmt.Errorf("fmt.Fprintf(response) failed for %d: %w", n, err)
	}

	return res, nil
}

func (c *Client) CloseIdleConnections() {
	c.impl.CloseIdleConnections()
}
