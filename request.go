package clientele

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
)

// PreparedRequest is the fully bound form of one call: resolved path,
// query values, header overrides and an optional body. It is created
// fresh by the binder for every call and discarded afterwards.
type PreparedRequest struct {
	Method string

	// URL is the absolute request URL without the query string.
	URL string

	// Query holds the outgoing query values. Optional parameters that
	// resolved to nil are not present here. When the call carried a
	// wholesale query override, Query is that override verbatim.
	Query url.Values

	// Header holds client defaults, declared header parameters and
	// call-time header overrides, merged in that order.
	Header http.Header

	// Body is the encoded payload, nil for bodyless requests.
	// BodyStream, when set, takes precedence and is sent as is.
	Body        []byte
	BodyStream  io.Reader
	ContentType string
}

// httpRequest builds a *http.Request for the backend. Byte bodies get a
// rewindable GetBody so redirect-following clients can replay them.
func (p *PreparedRequest) httpRequest(ctx context.Context) (*http.Request, error) {
	request, err := http.NewRequestWithContext(ctx, p.Method, p.URL, nil)
	if err != nil {
		return nil, err
	}
	request.URL.RawQuery = p.Query.Encode()
	for key, values := range p.Header {
		request.Header[key] = append([]string(nil), values...)
	}

	if p.BodyStream != nil {
		if rc, ok := p.BodyStream.(io.ReadCloser); ok {
			request.Body = rc
		} else {
			request.Body = io.NopCloser(p.BodyStream)
		}
	} else if p.Body != nil {
		body := bytes.NewReader(p.Body)
		snapshot := *body
		request.ContentLength = int64(len(p.Body))
		request.Body = io.NopCloser(body)
		request.GetBody = func() (io.ReadCloser, error) {
			r := snapshot
			return io.NopCloser(&r), nil
		}
	}

	if p.ContentType != "" {
		request.Header.Set("Content-Type", p.ContentType)
	}
	return request, nil
}
