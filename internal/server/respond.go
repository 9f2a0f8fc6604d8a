package server

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the wire shape of every rejection body.
type ErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// writeError emits a structured JSON error body. Rate limit headers set
// before the rejection stay on the response, so a 429 still reports the
// limit, remaining, and reset.
func writeError(w http.ResponseWriter, status int, code, message string) {
	var resp ErrorResponse
	resp.Error.Code = code
	resp.Error.Message = message

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
