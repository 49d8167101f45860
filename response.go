package clientele

import (
	"mime"
	"net/http"
	"strings"
	"sync"
)

// Response is the transport-agnostic form of an HTTP response: status
// code, headers and the fully read body. It is produced by the Backend's
// normalization step and owned by the hydrator for the call's duration.
// Custom parsers declared with Parser receive it as their only input.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	textOnce sync.Once
	text     string
}

// Text returns the body decoded as text. The conversion happens on first
// use and is cached.
func (r *Response) Text() string {
	r.textOnce.Do(func() {
		r.text = string(r.Body)
	})
	return r.text
}

// ContentType returns the media type of the response without parameters,
// e.g. "application/json". Empty if the header is absent or malformed.
func (r *Response) ContentType() string {
	value := r.Header.Get("Content-Type")
	if value == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil {
		return ""
	}
	return mediaType
}

func (r *Response) isJSON() bool {
	ct := r.ContentType()
	return ct == "" || ct == "application/json" || strings.HasSuffix(ct, "+json")
}

func (r *Response) isYAML() bool {
	ct := r.ContentType()
	return ct == "application/yaml" || ct == "application/x-yaml" ||
		ct == "text/yaml" || strings.HasSuffix(ct, "+yaml")
}

func (r *Response) isProtobuf() bool {
	ct := r.ContentType()
	return ct == "application/x-protobuf" || ct == "application/protobuf"
}
