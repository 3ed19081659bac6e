package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the REST API.
type APIError struct {
	// StatusCode is the HTTP status.
	StatusCode int

	// Code is the remote error code, e.g. "MALFORMED_QUERY".
	Code string

	// Message is the remote error message.
	Message string

	// Method and Path identify the failed request.
	Method string
	Path   string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("remote %s %s: %d %s: %s", e.Method, e.Path, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("remote %s %s: %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// IsNotFound returns true if err is an APIError with status 404.
func IsNotFound(err error) bool {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.StatusCode == http.StatusNotFound
	}
	return false
}

// IsMalformedQuery returns true if the remote system rejected the query text.
func IsMalformedQuery(err error) bool {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Code == "MALFORMED_QUERY" || ae.Code == "INVALID_FIELD"
	}
	return false
}
