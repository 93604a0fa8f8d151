// Package http exposes the ledger as a JSON API.
//
// This file implements the builder used by every handler to write JSON
// responses and to translate domain errors into status codes.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"finan/internal/auth"
	"finan/internal/core"
	"finan/internal/ledger"
	"finan/internal/log"
	"finan/internal/middleware/trace"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

// Error codes returned in ErrorBody.Code.
const (
	CodeValidation   = "validation_error"
	CodeBadRequest   = "bad_request"
	CodeNotFound     = "not_found"
	CodeConflict     = "conflict"
	CodeUnauthorized = "unauthorized"
	CodeNotReady     = "not_ready"
	CodeUnavailable  = "storage_unavailable"
	CodeRateLimited  = "rate_limited"
	CodeInternal     = "internal_error"
)

// JSONResponseBuilder provides a fluent API for JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a builder with a 200 status.
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

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// RequestID stamps id on an error body; other bodies are left alone.
func (b *JSONResponseBuilder) RequestID(id string) *JSONResponseBuilder {
	if body, ok := b.body.(ErrorBody); ok && id != "" {
		body.RequestID = id
		b.body = body
	}
	return b
}

// Write sends the built response.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

// ErrorResponse builds an error response with the given status and code.
func ErrorResponse(statusCode int, code, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(ErrorBody{Error: message, Code: code})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, CodeBadRequest, message)
}

func UnauthorizedError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, CodeUnauthorized, message).
		Header("WWW-Authenticate", `Bearer realm="finan"`)
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, CodeNotFound, message)
}

// statusFor maps a service error to its HTTP status, code and client message.
// Storage details never reach the client.
func statusFor(err error) (int, string, string) {
	switch {
	case errors.Is(err, core.ErrValidation), errors.Is(err, ledger.ErrInvalidPeriod):
		return http.StatusUnprocessableEntity, CodeValidation, err.Error()
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, CodeNotFound, "not found"
	case errors.Is(err, core.ErrEmailTaken):
		return http.StatusConflict, CodeConflict, core.ErrEmailTaken.Error()
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, CodeUnauthorized, auth.ErrInvalidCredentials.Error()
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized, CodeUnauthorized, err.Error()
	case errors.Is(err, core.ErrNotReady):
		return http.StatusServiceUnavailable, CodeNotReady, "ledger is starting, retry shortly"
	case errors.Is(err, core.ErrStorage):
		return http.StatusServiceUnavailable, CodeUnavailable, "storage temporarily unavailable"
	default:
		return http.StatusInternalServerError, CodeInternal, "internal error"
	}
}

// FromError builds the error response for err.
func FromError(err error) *JSONResponseBuilder {
	status, code, msg := statusFor(err)
	b := ErrorResponse(status, code, msg)
	if status == http.StatusServiceUnavailable {
		b.Header("Retry-After", "5")
	}
	if status == http.StatusUnauthorized {
		b.Header("WWW-Authenticate", `Bearer realm="finan"`)
	}
	return b
}

// writeError logs server-side failures and writes the error response for err.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	b := FromError(err).RequestID(trace.GetRequestID(ctx))
	if b.statusCode >= http.StatusInternalServerError && !errors.Is(err, core.ErrNotReady) {
		log.LogError(ctx, log.FromContext(ctx), "Request failed", err, r.Pattern, nil)
	}
	b.Write(w)
}
