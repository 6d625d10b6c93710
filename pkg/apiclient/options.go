package apiclient

import (
	"net/http"
	"strings"

	"github.com/samvad-hq/tvapi/pkg/httpclient"
)

// RequestOptions carries the per-call settings merged with the client defaults.
type RequestOptions struct {
	// Method defaults to GET.
	Method string
	// Headers override the client's default headers on key collision.
	Headers map[string]string
	// Body is sent verbatim when non-empty. GET and HEAD requests with a body are rejected.
	Body string
	// Cookies are passed through to the transport unchanged.
	Cookies []*http.Cookie
}

func (o RequestOptions) method() string {
	if m := strings.ToUpper(strings.TrimSpace(o.Method)); m != "" {
		return m
	}
	return http.MethodGet
}

// Option configures a Service at construction time.
type Option func(*Service)

// WithHTTPClient replaces the resty-backed transport.
func WithHTTPClient(client httpclient.Client) Option {
	return func(s *Service) {
		if client != nil {
			s.client = client
		}
	}
}

// WithLogger sets the sink failures are reported to.
func WithLogger(log Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithMetrics enables request metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithDefaultHeader adds or replaces a default header.
func WithDefaultHeader(key, value string) Option {
	return func(s *Service) {
		key = http.CanonicalHeaderKey(strings.TrimSpace(key))
		if key == "" {
			return
		}
		s.defaultHeaders[key] = value
	}
}

// mergeHeaders overlays overrides on defaults using canonical header keys.
func mergeHeaders(defaults, overrides map[string]string) map[string]string {
	out := make(map[string]string, len(defaults)+len(overrides))
	for k, v := range defaults {
		out[http.CanonicalHeaderKey(k)] = v
	}
	for k, v := range overrides {
		out[http.CanonicalHeaderKey(k)] = v
	}
	return out
}
