package clientele

import (
	"bufio"
	"context"
	"io"
	"net/http"

	cerrors "github.com/phalt/clientele/errors"
)

// HttpClient is the subset of *http.Client the engine needs. Wrappers
// such as closingclient and debugclient implement it too.
type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
	CloseIdleConnections()
}

// Backend performs the actual network I/O for a client. It is long-lived
// and shared by all calls of one client; implementations must be safe for
// concurrent use and pool their connections. The engine never wraps or
// suppresses errors a Backend returns.
type Backend interface {
	// Send performs the request and normalizes the response, reading
	// the whole body.
	Send(ctx context.Context, req *PreparedRequest) (*Response, error)

	// Stream performs the request and hands off the open body as a
	// lazy sequence of newline-delimited records. It fails without
	// yielding anything when the response status is not a success.
	Stream(ctx context.Context, req *PreparedRequest) (*LineSource, error)

	// Close releases pooled connections.
	Close() error
}

// DefaultMaxBody limits how much of a response body is read.
const DefaultMaxBody = 10 * 1024 * 1024

// HTTPBackend is the default Backend, built on net/http. The zero value
// is not usable; construct it with NewHTTPBackend.
type HTTPBackend struct {
	client  HttpClient
	maxBody int64
	errorf  func(format string, args ...interface{})
}

// NewHTTPBackend wraps an HttpClient into a Backend. A nil client gets a
// pooled http.Client that does not follow redirects.
func NewHTTPBackend(client HttpClient, maxBody int64, errorf func(format string, args ...interface{})) *HTTPBackend {
	if client == nil {
		client = &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	if maxBody <= 0 {
		maxBody = DefaultMaxBody
	}
	if errorf == nil {
		errorf = func(format string, args ...interface{}) {}
	}
	return &HTTPBackend{client: client, maxBody: maxBody, errorf: errorf}
}

func (b *HTTPBackend) Send(ctx context.Context, req *PreparedRequest) (*Response, error) {
	httpReq, err := req.httpRequest(ctx)
	if err != nil {
		return nil, err
	}
	httpRes, err := b.client.Do(httpReq)
	if err != nil {
		// Transport errors propagate verbatim.
		return nil, err
	}
	return b.Normalize(httpRes)
}

// Normalize reads the native response into the transport-agnostic form.
// The body is capped at the backend's body limit and always closed.
func (b *HTTPBackend) Normalize(httpRes *http.Response) (*Response, error) {
	defer func() {
		if err := httpRes.Body.Close(); err != nil {
			b.errorf("failed to close response body: %v", err)
		}
	}()
	body, err := io.ReadAll(http.MaxBytesReader(nil, httpRes.Body, b.maxBody))
	if err != nil {
		return nil, err
	}
	return &Response{
		StatusCode: httpRes.StatusCode,
		Header:     httpRes.Header,
		Body:       body,
	}, nil
}

func (b *HTTPBackend) Stream(ctx context.Context, req *PreparedRequest) (*LineSource, error) {
	httpReq, err := req.httpRequest(ctx)
	if err != nil {
		return nil, err
	}
	httpRes, err := b.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if httpRes.StatusCode >= 400 {
		res, err := b.Normalize(httpRes)
		if err != nil {
			return nil, err
		}
		return nil, &cerrors.ProtocolError{Status: res.StatusCode, Body: bodyPrefix(res.Body)}
	}
	return newLineSource(httpRes, b.maxBody, b.errorf), nil
}

func (b *HTTPBackend) Close() error {
	b.client.CloseIdleConnections()
	if closer, ok := b.client.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func bodyPrefix(body []byte) string {
	const limit = 512
	if len(body) > limit {
		body = body[:limit]
	}
	return string(body)
}

// LineSource delivers newline-delimited records from an open response
// body. The connection stays held until Close, which is safe to call on
// every exit path and is idempotent.
type LineSource struct {
	StatusCode int
	Header     http.Header

	body    io.ReadCloser
	scanner *bufio.Scanner
	errorf  func(format string, args ...interface{})
	err     error
	closed  bool
}

func newLineSource(httpRes *http.Response, maxLine int64, errorf func(format string, args ...interface{})) *LineSource {
	scanner := bufio.NewScanner(httpRes.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), int(maxLine))
	return &LineSource{
		StatusCode: httpRes.StatusCode,
		Header:     httpRes.Header,
		body:       httpRes.Body,
		scanner:    scanner,
		errorf:     errorf,
	}
}

// Next returns the next record. ok is false when the source is exhausted
// or closed; check Err afterwards.
func (s *LineSource) Next() (line string, ok bool) {
	if s.closed {
		return "", false
	}
	if !s.scanner.Scan() {
		s.err = s.scanner.Err()
		return "", false
	}
	return s.scanner.Text(), true
}

// Err returns the first error hit while reading, if any.
func (s *LineSource) Err() error {
	return s.err
}

// Close releases the underlying connection.
func (s *LineSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.body.Close(); err != nil {
		s.errorf("failed to close stream body: %v", err)
		return err
	}
	return nil
}
