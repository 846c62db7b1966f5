// Package httpx provides HTTP response utilities following RFC7807 problem
// details, extended with the gate's stable machine codes.
package httpx

import (
	"encoding/json"
	"net/http"
)

// ProblemDetail represents RFC7807 problem details. Code carries the
// stable machine-readable rejection code; RetryAfter and Missing are
// populated only for the rejections they apply to.
type ProblemDetail struct {
	Type       string   `json:"type,omitempty"`
	Title      string   `json:"title"`
	Status     int      `json:"status"`
	Detail     string   `json:"detail,omitempty"`
	Code       string   `json:"code,omitempty"`
	RetryAfter int      `json:"retry_after,omitempty"`
	Missing    []string `json:"missing_permissions,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Problem sends an RFC7807 problem details response.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	JSON(w, status, ProblemDetail{
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// ProblemDetailed sends a fully populated problem response.
func ProblemDetailed(w http.ResponseWriter, detail ProblemDetail) {
	JSON(w, detail.Status, detail)
}

// DecodeJSON decodes JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}
