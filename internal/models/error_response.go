package models

import (
	"net/http"
	"sort"
	"strings"
)

// ErrorResponse carries an HTTP status together with a user-facing message.
type ErrorResponse struct {
	StatusCode int    `json:"-"`
	Message    string `json:"reason"`
}

// NewErrorResponse creates a new error with a status code and message.
func NewErrorResponse(statusCode int, message string) *ErrorResponse {
	return &ErrorResponse{
		StatusCode: statusCode,
		Message:    message}
}

// Error implements the error interface.
func (e *ErrorResponse) Error() string {
	return e.Message
}

// ValidationErrors maps a field name to a user-facing message. It is
// reported in full before any write so the caller can show every problem
// at once.
type ValidationErrors map[string]string

// Error joins the field messages in field order.
func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(v))
	for _, f := range fields {
		parts = append(parts, f+": "+v[f])
	}
	return strings.Join(parts, "; ")
}

// StatusCode lets handlers treat validation errors uniformly with
// *ErrorResponse.
func (v ValidationErrors) StatusCode() int {
	return http.StatusBadRequest
}
