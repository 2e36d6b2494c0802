package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"vault/internal/core"
	"vault/internal/ledger"
	vlog "vault/internal/log"
	"vault/internal/services"
	"vault/internal/suggest"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
	raw        []byte
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets a value to be encoded as JSON.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Raw sets an already encoded JSON body.
func (b *JSONResponseBuilder) Raw(data []byte) *JSONResponseBuilder {
	b.raw = data
	return b
}

// Write sends the response.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil && b.raw == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	data := b.raw
	if data == nil {
		var err error
		data, err = json.Marshal(b.body)
		if err != nil {
			slog.Error("Failed to encode response", "error", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":{"type":"internal_error","message":"failed to encode response"}}`))
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	w.Write(data)
}

// APIError is the body of every failed request.
type APIError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type errorBody struct {
	Error APIError `json:"error"`
}

// ErrorResponse creates a JSON error response.
func ErrorResponse(statusCode int, errorType, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(errorBody{Error: APIError{Type: errorType, Message: message}})
}

// BadRequestError creates a 400 Bad Request response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, vlog.ErrorTypeParse, message)
}

// NotFoundError creates a 404 Not Found response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, vlog.ErrorTypeNotFound, message)
}

// classify maps a service error to its status code and error type.
func classify(err error) (int, string) {
	var (
		ve  *core.ValidationError
		rpe *core.RestoreParseError
		te  *core.TransportError
		spe *core.SuggestionProviderError
		mbe *http.MaxBytesError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity, vlog.ErrorTypeValidation
	case errors.Is(err, core.ErrNotFound),
		errors.Is(err, services.ErrStagingExpired),
		errors.Is(err, suggest.ErrNoSuggestion):
		return http.StatusNotFound, vlog.ErrorTypeNotFound
	case errors.As(err, &rpe):
		return http.StatusBadRequest, vlog.ErrorTypeParse
	case errors.As(err, &mbe):
		return http.StatusRequestEntityTooLarge, vlog.ErrorTypeParse
	case errors.Is(err, core.ErrSyncConflict):
		return http.StatusConflict, vlog.ErrorTypeConflict
	case errors.Is(err, services.ErrSyncDisabled), errors.Is(err, errFeatureDisabled):
		return http.StatusServiceUnavailable, vlog.ErrorTypeConfiguration
	case errors.As(err, &te), errors.As(err, &spe):
		return http.StatusBadGateway, vlog.ErrorTypeTransport
	}
	return http.StatusInternalServerError, vlog.ErrorTypeInternal
}

// writeError logs err and sends its mapped response. Internal errors are
// not echoed to the client.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, errorType := classify(err)

	body := APIError{Type: errorType, Message: err.Error()}
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		body.Field = ve.Field
		body.Message = ve.Error()
	}
	if status == http.StatusInternalServerError {
		body.Message = "internal error"
	}

	vlog.NewStructuredLogger(vlog.FromContext(r.Context())).
		LogError(r.Context(), "Request failed", err, errorType, op,
			vlog.NewFields().WithHTTPRequest(r.Method, r.URL.Path, "", "").WithHTTPResponse(status, 0))

	NewJSONResponse().Status(status).Body(errorBody{Error: body}).Write(w)
}

// CommandResponse is the JSON form of a ledger.Result.
type CommandResponse struct {
	Command   string   `json:"command"`
	Revision  int64    `json:"revision"`
	Committed bool     `json:"committed"`
	IDs       []string `json:"ids,omitempty"`
	Affected  int      `json:"affected"`
	Skipped   int      `json:"skipped"`
	Warnings  []string `json:"warnings,omitempty"`
	Errors    []string `json:"errors,omitempty"`
}

func commandResponse(res ledger.Result) CommandResponse {
	out := CommandResponse{
		Command:   res.Command,
		Revision:  res.Revision,
		Committed: res.Committed,
		IDs:       res.IDs,
		Affected:  res.Affected,
		Skipped:   res.Skipped,
	}
	if len(res.Warnings) > 0 {
		out.Warnings = res.WarningMessages()
	}
	if len(res.Errors) > 0 {
		out.Errors = res.ErrorMessages()
	}
	return out
}
