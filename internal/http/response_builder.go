package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"simplemoney/internal/core"
	"simplemoney/internal/log"
)

// HeaderReconcilePending marks a committed mutation whose derived state
// (balance cache, challenges, rewards) is repaired later by reconciliation.
const HeaderReconcilePending = "X-Reconcile-Pending"

// backendRetryAfter is advertised when the store or broker is unavailable.
const backendRetryAfter = 5

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
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

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response. A nil body writes no content.
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
		log.ForComponent(log.ComponentHTTP).Error("Failed to encode response", log.FieldError, err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":"internal","message":"encoding failed"}}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(data)
	_, _ = w.Write([]byte("\n"))
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// ErrorResponse creates a standard error response.
func ErrorResponse(statusCode int, code, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(errorBody{Error: errorDetail{Code: code, Message: message}})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, "bad_request", message)
}

// TooManyRequestsError creates a 429 response.
func TooManyRequestsError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "rate_limited", "rate limit exceeded, please try again later")
}

// StatusFor maps an engine error code to its HTTP status.
func StatusFor(code core.Code) int {
	switch code {
	case core.CodeValidation:
		return http.StatusUnprocessableEntity
	case core.CodeNotFound:
		return http.StatusNotFound
	case core.CodeConflict:
		return http.StatusConflict
	case core.CodePartial:
		return http.StatusAccepted
	default:
		return http.StatusServiceUnavailable
	}
}

// FromError builds the response for a failed engine call. Backend failures
// hide their cause from the client and ask it to retry.
func FromError(err error) *JSONResponseBuilder {
	code := core.CodeOf(err)
	status := StatusFor(code)

	detail := errorDetail{Code: string(code), Message: err.Error()}
	var e *core.Error
	if errors.As(err, &e) {
		detail.Field = e.Field
		if e.Message != "" {
			detail.Message = e.Message
		}
	}

	b := NewJSONResponse().Status(status)
	if code == core.CodeBackend {
		detail.Message = "storage temporarily unavailable"
		b.Header("Retry-After", strconv.Itoa(backendRetryAfter))
	}
	return b.Body(errorBody{Error: detail})
}

// Result writes body for a mutation. A nil err uses status; a Partial err
// means the mutation committed, so body is still returned with 202 and the
// reconcile header.
func Result(status int, body any, err error) *JSONResponseBuilder {
	if err == nil {
		return NewJSONResponse().Status(status).Body(body)
	}
	if core.CodeOf(err) == core.CodePartial {
		return NewJSONResponse().
			Status(http.StatusAccepted).
			Header(HeaderReconcilePending, "true").
			Body(body)
	}
	return FromError(err)
}
