package apiclient

import (
	"errors"
	"fmt"
	"strings"
)

// requestFailedPrefix is part of the error message contract of the Request family.
const requestFailedPrefix = "API request failed: "

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error! status: %d", e.StatusCode)
}

// RequestError wraps any failure of Request, Get, Post, Put or Delete.
// Only the message of the cause is part of the contract; Unwrap exposes it for errors.As.
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string {
	if e.Err == nil {
		return strings.TrimSuffix(requestFailedPrefix, " ")
	}
	return requestFailedPrefix + e.Err.Error()
}

func (e *RequestError) Unwrap() error { return e.Err }

// IsStatusError reports whether err carries a non-2xx HTTP status.
func IsStatusError(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr)
}

// StatusCode extracts the HTTP status from err if it carries one.
func StatusCode(err error) (int, bool) {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode, true
	}
	return 0, false
}

func bodySnippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}
