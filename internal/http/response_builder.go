package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"moneylens/internal/auth"
	"moneylens/internal/core"
	applog "moneylens/internal/log"
	"moneylens/internal/query"
	"moneylens/internal/storage"
)

// JSONResponse provides a fluent API for building JSON responses.
type JSONResponse struct {
	statusCode int
	payload    any
	headers    map[string]string
}

func NewJSONResponse() *JSONResponse {
	return &JSONResponse{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponse) Status(code int) *JSONResponse {
	b.statusCode = code
	return b
}

func (b *JSONResponse) Header(name, value string) *JSONResponse {
	b.headers[name] = value
	return b
}

// Payload sets the value encoded as the body. A nil payload sends no body.
func (b *JSONResponse) Payload(v any) *JSONResponse {
	b.payload = v
	return b
}

func (b *JSONResponse) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.payload == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	body, err := json.Marshal(b.payload)
	if err != nil {
		slog.Error("Failed to encode response", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"internal server error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(body)
}

// ErrorBody is the shape of every error response.
type ErrorBody struct {
	Message string            `json:"message"`
	Errors  []core.FieldError `json:"errors,omitempty"`
}

func ErrorResponse(statusCode int, message string) *JSONResponse {
	return NewJSONResponse().Status(statusCode).Payload(ErrorBody{Message: message})
}

func ValidationResponse(errs core.ValidationErrors) *JSONResponse {
	return NewJSONResponse().
		Status(http.StatusBadRequest).
		Payload(ErrorBody{Message: "validation failed", Errors: errs})
}

// writeError maps err onto the status taxonomy. Anything unrecognised is a
// 500 whose details stay in the log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if verrs, ok := core.AsValidation(err); ok {
		ValidationResponse(verrs).Write(w)
		return
	}

	switch {
	case errors.Is(err, auth.ErrMissingToken), errors.Is(err, auth.ErrInvalidToken):
		ErrorResponse(http.StatusUnauthorized, err.Error()).
			Header("WWW-Authenticate", `Bearer realm="moneylens"`).
			Write(w)
	case errors.Is(err, auth.ErrBadCredentials):
		ErrorResponse(http.StatusUnauthorized, err.Error()).Write(w)
	case errors.Is(err, query.ErrNoOwner):
		ErrorResponse(http.StatusUnauthorized, auth.ErrMissingToken.Error()).Write(w)
	case errors.Is(err, storage.ErrNotFound):
		ErrorResponse(http.StatusNotFound, "expense not found").Write(w)
	case errors.Is(err, storage.ErrDuplicateEmail):
		ErrorResponse(http.StatusConflict, err.Error()).Write(w)
	default:
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldError, err)
		ErrorResponse(http.StatusInternalServerError, "internal server error").Write(w)
	}
}
