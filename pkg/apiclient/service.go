package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/samvad-hq/tvapi/pkg/httpclient"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const jsonContentType = "application/json"

// Service issues requests against a base URL and normalizes the responses.
// It holds no mutable state and is safe for concurrent use.
type Service struct {
	baseURL        string
	defaultHeaders map[string]string
	client         httpclient.Client
	log            Logger
	metrics        *Metrics
}

// New builds a Service. Default headers start with Content-Type: application/json.
func New(baseURL string, opts ...Option) *Service {
	s := &Service{
		baseURL: baseURL,
		defaultHeaders: map[string]string{
			"Content-Type": jsonContentType,
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.client == nil {
		s.client = httpclient.NewRestyClient(0)
	}
	s.log = ensureLogger(s.log)
	return s
}

// BaseURL returns the prefix joined with every endpoint.
func (s *Service) BaseURL() string { return s.baseURL }

// DefaultHeaders returns a copy of the headers sent with every Request.
func (s *Service) DefaultHeaders() map[string]string {
	out := make(map[string]string, len(s.defaultHeaders))
	for k, v := range s.defaultHeaders {
		out[k] = v
	}
	return out
}

// Request performs one call to baseURL+endpoint. Any failure is logged and
// returned as a *RequestError.
func (s *Service) Request(ctx context.Context, endpoint string, opts RequestOptions) (*Response, error) {
	start := time.Now()
	req := &httpclient.Request{
		Method:  opts.method(),
		URL:     s.baseURL + endpoint,
		Headers: mergeHeaders(s.defaultHeaders, opts.Headers),
		Cookies: opts.Cookies,
	}
	if opts.Body != "" {
		req.Body = []byte(opts.Body)
	}

	var (
		resp    *Response
		outcome string
		err     error
	)
	if req.Body != nil && !allowsBody(req.Method) {
		outcome, err = outcomeInvalidRequest, fmt.Errorf("request with %s method cannot have body", req.Method)
	} else {
		resp, outcome, err = s.execute(ctx, req)
	}
	s.metrics.observe(opRequest, req.Method, outcome, start)
	if err != nil {
		s.logFailure("API request failed", req, err)
		return nil, &RequestError{Err: err}
	}

	s.log.DebugObj("API request completed", "api_request", map[string]any{
		"method": req.Method,
		"url":    req.URL,
		"status": resp.StatusCode,
		"kind":   resp.Kind,
	})
	return resp, nil
}

// Get issues a GET request.
func (s *Service) Get(ctx context.Context, endpoint string, opts RequestOptions) (*Response, error) {
	opts.Method = http.MethodGet
	return s.Request(ctx, endpoint, opts)
}

// Post issues a POST request with data encoded as JSON.
func (s *Service) Post(ctx context.Context, endpoint string, data any, opts RequestOptions) (*Response, error) {
	return s.send(ctx, http.MethodPost, endpoint, data, opts)
}

// Put issues a PUT request with data encoded as JSON.
func (s *Service) Put(ctx context.Context, endpoint string, data any, opts RequestOptions) (*Response, error) {
	return s.send(ctx, http.MethodPut, endpoint, data, opts)
}

// Delete issues a DELETE request.
func (s *Service) Delete(ctx context.Context, endpoint string, opts RequestOptions) (*Response, error) {
	opts.Method = http.MethodDelete
	return s.Request(ctx, endpoint, opts)
}

// send forces method and, when data is non-nil, replaces the body with its JSON encoding.
func (s *Service) send(ctx context.Context, method, endpoint string, data any, opts RequestOptions) (*Response, error) {
	opts.Method = method
	if data != nil {
		body, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		opts.Body = string(body)
	}
	return s.Request(ctx, endpoint, opts)
}

// FetchJSON GETs an absolute URL and parses the body as JSON regardless of
// content type. Unlike Request, failures are returned unwrapped.
func (s *Service) FetchJSON(ctx context.Context, url string) (any, error) {
	start := time.Now()
	req := &httpclient.Request{Method: http.MethodGet, URL: url}

	raw, outcome, err := s.roundTrip(ctx, req)
	var out any
	if err == nil {
		if err = json.Unmarshal(raw.Body(), &out); err != nil {
			outcome = outcomeParseError
		}
	}
	s.metrics.observe(opFetchJSON, req.Method, outcome, start)
	if err != nil {
		s.logFailure("Failed to fetch JSON", req, err)
		return nil, err
	}
	return out, nil
}

// FetchText GETs an absolute URL and returns the body as text. Failures are
// returned unwrapped.
func (s *Service) FetchText(ctx context.Context, url string) (string, error) {
	start := time.Now()
	req := &httpclient.Request{Method: http.MethodGet, URL: url}

	raw, outcome, err := s.roundTrip(ctx, req)
	s.metrics.observe(opFetchText, req.Method, outcome, start)
	if err != nil {
		s.logFailure("Failed to fetch text", req, err)
		return "", err
	}
	return string(raw.Body()), nil
}

// execute performs the round trip and interprets the body by content type.
func (s *Service) execute(ctx context.Context, req *httpclient.Request) (*Response, string, error) {
	raw, outcome, err := s.roundTrip(ctx, req)
	if err != nil {
		return nil, outcome, err
	}

	body := raw.Body()
	resp := &Response{
		StatusCode: raw.StatusCode(),
		Header:     raw.Header(),
		Body:       body,
	}
	if isJSON(raw.Header().Get("Content-Type")) {
		var v any
		if err := json.Unmarshal(body, &v); err != nil {
			return nil, outcomeParseError, err
		}
		resp.Kind = KindJSON
		resp.JSON = v
		return resp, outcomeOK, nil
	}

	resp.Kind = KindText
	resp.Text = string(body)
	return resp, outcomeOK, nil
}

// roundTrip issues exactly one transport call and rejects non-2xx statuses.
func (s *Service) roundTrip(ctx context.Context, req *httpclient.Request) (httpclient.Response, string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	raw, err := s.client.Do(ctx, req)
	if err != nil {
		return nil, outcomeTransportError, err
	}
	if code := raw.StatusCode(); code < 200 || code > 299 {
		return nil, outcomeStatusError, &StatusError{StatusCode: code, Body: raw.Body()}
	}
	return raw, outcomeOK, nil
}

func (s *Service) logFailure(msg string, req *httpclient.Request, err error) {
	fields := map[string]any{
		"method": req.Method,
		"url":    req.URL,
		"error":  err.Error(),
	}
	if statusErr, ok := err.(*StatusError); ok {
		fields["status"] = statusErr.StatusCode
		fields["body"] = bodySnippet(statusErr.Body)
	}
	s.log.ErrorObj(msg, "api_error", fields)
}

// allowsBody mirrors fetch, which refuses a body on GET and HEAD.
func allowsBody(method string) bool {
	return method != http.MethodGet && method != http.MethodHead
}

// isJSON is a loose substring match; parameters such as charset are ignored.
func isJSON(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), jsonContentType)
}
