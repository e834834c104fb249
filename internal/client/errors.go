package client

import (
	"fmt"

	"github.com/webmondiag/webmondiag/pkg/types"
)

// APIError represents an error returned by the control API.
type APIError struct {
	StatusCode int
	Message    string

	// State is the endpoint state after a refused change, when reported.
	State *types.Status
}

func (e *APIError) Error() string {
	return fmt.Sprintf("webmondiag: API error (status %d): %s", e.StatusCode, e.Message)
}

// IsNotFound returns true if the error is a 404 Not Found error.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == 404
}

// IsBadRequest returns true if the error is a 400 Bad Request error.
func (e *APIError) IsBadRequest() bool {
	return e.StatusCode == 400
}

// IsConflict returns true when the endpoint could not bind its address.
func (e *APIError) IsConflict() bool {
	return e.StatusCode == 409
}

// ConnectionError represents a connection error.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("webmondiag: connection error: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
