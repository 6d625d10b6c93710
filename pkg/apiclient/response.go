package apiclient

import (
	"fmt"
	"net/http"
)

// Kind tells how a response body was interpreted.
type Kind string

const (
	KindJSON Kind = "json"
	KindText Kind = "text"
)

// Response is the normalized result of a successful request.
// JSON is set when Kind is KindJSON, Text otherwise.
type Response struct {
	Kind       Kind
	JSON       any
	Text       string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Value returns the parsed JSON or the raw text, depending on Kind.
func (r *Response) Value() any {
	if r == nil {
		return nil
	}
	if r.Kind == KindJSON {
		return r.JSON
	}
	return r.Text
}

// Decode unmarshals the raw body into v.
func (r *Response) Decode(v any) error {
	if r == nil {
		return fmt.Errorf("nil response")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}
