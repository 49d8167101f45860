// Package closingclient wraps an HTTP client so that Close cancels and
// waits out every in-flight request. The clientele engine holds
// connections open for the whole of a streaming iteration, so a plain
// CloseIdleConnections is not enough for a clean shutdown; this wrapper
// guarantees that no request outlives Close.
package closingclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
)

// ErrClosed is returned by Do once Close has started.
var ErrClosed = errors.New("closingclient: client is closed")

// HttpClient is the client interface being wrapped. *http.Client and
// clientele's HttpClient both satisfy it.
type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
	CloseIdleConnections()
}

// Client refuses new requests while closing and cancels the running
// ones, then waits for them to finish.
type Client struct {
	impl HttpClient

	mu         sync.Mutex
	closing    bool
	cancels    map[uint64]context.CancelFunc
	nextCancel uint64

	wg sync.WaitGroup
}

func New(impl HttpClient) *Client {
	return &Client{
		impl:    impl,
		cancels: make(map[uint64]context.CancelFunc),
	}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx, cancel := context.WithCancel(req.Context())

	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		cancel()
		return nil, ErrClosed
	}

	// Add(1) must not race with Wait(); both are ordered by c.closing
	// under the mutex.
	c.wg.Add(1)
	defer c.wg.Done()

	key := c.nextCancel
	c.nextCancel++
	c.cancels[key] = cancel
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.cancels, key)
		c.mu.Unlock()
	}()

	return c.impl.Do(req.Clone(ctx))
}

func (c *Client) CloseIdleConnections() {
	c.impl.CloseIdleConnections()
}

// Close cancels in-flight requests, waits for them to return and closes
// the wrapped client if it supports closing. Calling Close more than
// once is safe.
func (c *Client) Close() error {
	c.mu.Lock()
	if !c.closing {
		c.closing = true
		for _, cancel := range c.cancels {
			cancel()
		}
		c.cancels = nil
	}
	c.mu.Unlock()

	c.impl.CloseIdleConnections()

	// c.closing is set, so any Do between the unlock above and this
	// line returns ErrClosed without touching the wait group.
	c.wg.Wait()

	if closer, ok := c.impl.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
