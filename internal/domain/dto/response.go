// Package dto defines the request/response envelopes for the debug HTTP
// surface.
package dto

import "time"

const (
	// ErrCodeInvalidRequest indicates an invalid request.
	ErrCodeInvalidRequest = "invalid_request"
	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal = "internal_error"
	// ErrCodeNotFound indicates a resource was not found.
	ErrCodeNotFound = "not_found"
	// ErrCodeUpstream indicates the dashboard backend failed.
	ErrCodeUpstream = "upstream_error"
)

// SuccessResponse wraps successful responses with metadata.
type SuccessResponse struct {
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewError creates a new ErrorResponse with the given code and message.
func NewError(code, message string) ErrorResponse {
	return ErrorResponse{
		Error:     code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewSuccess creates a new SuccessResponse wrapping data.
func NewSuccess(data interface{}, requestID string) SuccessResponse {
	return SuccessResponse{
		Data:      data,
		RequestID: requestID,
		Timestamp: time.Now(),
	}
}
