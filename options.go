package clientele

import (
	"log"
	"net/http"
	"net/url"
)

// Config collects client-level settings. Use NewDefaultConfig and the
// Option functions rather than filling it directly.
type Config struct {
	errorf        func(format string, args ...interface{})
	client        HttpClient
	backend       Backend
	maxBody       int64
	authorization string
	headers       http.Header
}

func NewDefaultConfig() *Config {
	return &Config{
		errorf:  log.Printf,
		maxBody: DefaultMaxBody,
	}
}

// Option configures a Client at construction time.
type Option func(*Config)

// ErrorLogger replaces the logger used for ignorable failures, such as
// errors from closing a response body. Defaults to log.Printf.
func ErrorLogger(logger func(format string, args ...interface{})) Option {
	return func(config *Config) {
		config.errorf = logger
	}
}

// CustomClient installs the HttpClient used by the default backend.
// Wrap it with closingclient or debugclient for graceful shutdown or
// request logging.
func CustomClient(client HttpClient) Option {
	return func(config *Config) {
		config.client = client
	}
}

// CustomBackend replaces the transport backend entirely. CustomClient
// and MaxBody have no effect when a custom backend is installed.
func CustomBackend(backend Backend) Option {
	return func(config *Config) {
		config.backend = backend
	}
}

// MaxBody limits how many bytes of a response body are read. For
// streaming operations the limit applies per record.
func MaxBody(maxBody int64) Option {
	return func(config *Config) {
		config.maxBody = maxBody
	}
}

// AuthorizationHeader sets the Authorization header on every request.
func AuthorizationHeader(authorization string) Option {
	return func(config *Config) {
		config.authorization = authorization
	}
}

// DefaultHeaders sets headers sent with every request. Per-call header
// overrides and declared header parameters are merged over them.
func DefaultHeaders(headers http.Header) Option {
	return func(config *Config) {
		config.headers = headers
	}
}

// callConfig collects per-call overrides.
type callConfig struct {
	query  url.Values
	header http.Header
}

// CallOption configures one invocation.
type CallOption func(*callConfig)

func newCallConfig(opts []CallOption) *callConfig {
	cc := &callConfig{}
	for _, opt := range opts {
		opt(cc)
	}
	return cc
}

// Query replaces the computed query map wholesale. The override is sent
// verbatim; no value filtering is applied to it.
func Query(values url.Values) CallOption {
	return func(cc *callConfig) {
		cc.query = values
	}
}

// Header adds one header override, merged over client-level defaults.
func Header(key, value string) CallOption {
	return func(cc *callConfig) {
		if cc.header == nil {
			cc.header = http.Header{}
		}
		cc.header.Set(key, value)
	}
}

// HeaderMap merges a set of header overrides over client-level defaults.
func HeaderMap(headers http.Header) CallOption {
	return func(cc *callConfig) {
		if cc.header == nil {
			cc.header = http.Header{}
		}
		for key, values := range headers {
			cc.header[key] = append([]string(nil), values...)
		}
	}
}
