package clientele

import (
	"context"
	"errors"
	"net/http"
)

// recordingBackend is a Backend stub for binder and hydrator tests: it
// counts dispatches and plays back a canned response.
type recordingBackend struct {
	sends   int
	lastReq *PreparedRequest
	resp    *Response
	err     error
}

func (b *recordingBackend) Send(ctx context.Context, req *PreparedRequest) (*Response, error) {
	b.sends++
	b.lastReq = req
	if b.err != nil {
		return nil, b.err
	}
	if b.resp == nil {
		return &Response{StatusCode: http.StatusOK, Header: http.Header{}}, nil
	}
	return b.resp, nil
}

func (b *recordingBackend) Stream(ctx context.Context, req *PreparedRequest) (*LineSource, error) {
	return nil, errors.New("recordingBackend does not stream")
}

func (b *recordingBackend) Close() error { return nil }
