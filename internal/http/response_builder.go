// Package http serves the transaction proxy: one JSON endpoint on "/" plus
// health probes.
//
// This file implements the Builder Pattern for JSON responses so every
// handler writes the same body shapes and headers.

package http

import (
	"encoding/json"
	"net/http"

	"expenseflow/internal/sheets"
)

// Error messages returned to callers. They are part of the HTTP contract.
const (
	MsgInvalidPayload   = "Invalid payload"
	MsgNotConfigured    = "Google Sheets is not configured"
	MsgReadFailed       = "Failed to read from sheet"
	MsgReadIDsFailed    = "Failed to read transaction ids"
	MsgAppendFailed     = "Failed to append to sheet"
	MsgMethodNotAllowed = "Method not allowed"
	MsgNotFound         = "Not found"
	MsgRateLimited      = "Rate limit exceeded"
	MsgUnexpected       = "Unexpected error"
)

// ErrorBody is the JSON shape of every error response. Status and Details
// are only set for upstream failures and validation failures.
type ErrorBody struct {
	Error   string `json:"error"`
	Status  int    `json:"status,omitempty"`
	Details any    `json:"details,omitempty"`
}

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body. A nil body sends
// headers only.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to w.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	data, err := json.Marshal(b.body)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"` + MsgUnexpected + `"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(data)
}

// ErrorResponse creates a response carrying {"error": message}.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(ErrorBody{Error: message})
}

// InvalidPayload creates the 400 response listing every problem found.
func InvalidPayload(problems []string) *JSONResponseBuilder {
	if problems == nil {
		problems = []string{}
	}
	return NewJSONResponse().
		Status(http.StatusBadRequest).
		Body(ErrorBody{Error: MsgInvalidPayload, Details: problems})
}

// UpstreamFailure creates the 500 response for a failed spreadsheet call.
func UpstreamFailure(ue *sheets.UpstreamError) *JSONResponseBuilder {
	msg := MsgAppendFailed
	switch ue.Op {
	case sheets.OpRead:
		msg = MsgReadFailed
	case sheets.OpReadIDs:
		msg = MsgReadIDsFailed
	}
	return NewJSONResponse().
		Status(http.StatusInternalServerError).
		Body(upstreamBody{Error: msg, Status: ue.Status, Details: sheets.Truncate(ue.Details)})
}

// upstreamBody always carries status and details, even when empty.
type upstreamBody struct {
	Error   string `json:"error"`
	Status  int    `json:"status"`
	Details string `json:"details"`
}

// NotConfiguredError creates the 500 response for a missing backend.
func NotConfiguredError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, MsgNotConfigured)
}

// InternalServerError creates the generic 500 response.
func InternalServerError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, MsgUnexpected)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, MsgNotFound)
}

// MethodNotAllowedError creates a 405 response advertising allowedMethods.
func MethodNotAllowedError(allowedMethods string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusMethodNotAllowed, MsgMethodNotAllowed).
		Header("Allow", allowedMethods)
}

// TooManyRequestsError creates the 429 response sent by the rate limiter.
func TooManyRequestsError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, MsgRateLimited).
		Header("Retry-After", "60")
}
