package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"moneylens/internal/core"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads one JSON document from the request body into dst. Syntax,
// type and size problems come back as validation errors naming the field
// where the decoder can tell.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || mt != "application/json" {
			return core.NewValidationError("body", "Content-Type must be application/json")
		}
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return bodyError(err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return core.NewValidationError("body", "body must contain a single JSON object")
	}
	return nil
}

func bodyError(err error) error {
	var (
		syntaxErr  *json.SyntaxError
		typeErr    *json.UnmarshalTypeError
		maxErr     *http.MaxBytesError
		invalidErr *json.InvalidUnmarshalError
	)
	switch {
	case errors.Is(err, io.EOF):
		return core.NewValidationError("body", "request body is required")
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return core.NewValidationError("body", "malformed JSON")
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return core.NewValidationError(field, fmt.Sprintf("%s has the wrong type", field))
	case errors.As(err, &maxErr):
		return core.NewValidationError("body", fmt.Sprintf("body must not exceed %d bytes", maxErr.Limit))
	case errors.As(err, &invalidErr):
		return fmt.Errorf("decode body: %w", err)
	case errors.Is(err, core.ErrInvalidAmount):
		return core.NewValidationError("amount", "amount must be a number zero or greater")
	default:
		// time.Time and other UnmarshalJSON failures surface as plain errors.
		if strings.Contains(err.Error(), "parsing time") {
			return core.NewValidationError("date", "date must be YYYY-MM-DD or RFC3339")
		}
		return core.NewValidationError("body", "invalid request body")
	}
}
