package httpapi

import (
	"encoding/json"
	"net/http"
)

// Error codes returned in the "code" field of error bodies.
const (
	CodeMissingRequired  = "MISSING_REQUIRED_FIELDS"
	CodeInvalidIATA      = "INVALID_IATA_CODE"
	CodeInvalidParams    = "INVALID_PARAMS"
	CodeSearchFailed     = "SEARCH_FAILED"
	CodeFlightMissing    = "FLIGHT_CONTEXT_MISSING"
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
	CodeRateLimited      = "RATE_LIMITED"
	CodeInternal         = "INTERNAL_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
)

// ErrorBody is the JSON shape of every non-2xx response.
type ErrorBody struct {
	Code       string       `json:"code"`
	Message    string       `json:"message"`
	Errors     []FieldError `json:"errors,omitempty"`
	RetryAfter int          `json:"retryAfter,omitempty"`
	RequestID  string       `json:"requestId"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, ErrorBody{Code: code, Message: message, RequestID: RequestIDFrom(r.Context())})
}

func writeValidation(w http.ResponseWriter, r *http.Request, errs []FieldError) {
	writeJSON(w, http.StatusBadRequest, ErrorBody{
		Code:      validationCode(errs),
		Message:   "invalid request parameters",
		Errors:    errs,
		RequestID: RequestIDFrom(r.Context()),
	})
}
