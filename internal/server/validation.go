package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pivotdata/syncgate/internal/validate"
)

// maxPayloadBytes bounds how much request body the validator decodes.
const maxPayloadBytes = 4 << 20

// RequireValid returns middleware that validates the JSON request body
// against one resource kind's rules. It runs after admission on purpose:
// a malformed payload has already consumed quota by the time it is
// rejected, which discourages retry storms of broken requests.
//
// All violations are collected; the response surfaces the first so the
// message stays focused on one actionable problem. The body is restored
// for the business handler.
func RequireValid(kind string, validator *validate.Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil {
				writeError(w, http.StatusBadRequest, "invalid_request", "request body is required")
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
			r.Body.Close()
			r.Body = io.NopCloser(bytes.NewReader(body))
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_request", "failed to read request body")
				return
			}

			var payload map[string]any
			if err := json.Unmarshal(body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_request", "request body must be a JSON object")
				return
			}

			outcome := validator.Validate(kind, payload)
			if violation := outcome.First(); violation != nil {
				AddLogField(r.Context(), "validation_failed", violation.Field)
				writeError(w, http.StatusBadRequest, "validation_failed", violation.String())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
