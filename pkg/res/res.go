package res

import (
	"encoding/json"
	"net/http"
)

// Machine-readable error codes returned to clients.
const (
	CodeMissingFields      = "missing_fields"
	CodeInvalidPlan        = "invalid_plan"
	CodeMalformedReference = "malformed_reference"
	CodeGatewayError       = "gateway_error"
	CodeFetchFailed        = "fetch_failed"
	CodeUnauthorized       = "unauthorized"
	CodeNotFound           = "not_found"
	CodeInternalError      = "internal_error"
)

// ErrorResponse is the JSON body for failed requests. Every response from
// this service, success or failure, carries the Success flag.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	ErrorCode string `json:"error_code,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// SuccessResponse is the JSON envelope for successful requests.
type SuccessResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

// Success writes data wrapped in the success envelope.
func Success(w http.ResponseWriter, data any, status int) {
	JsonResponse(w, SuccessResponse{Success: true, Data: data}, status)
}

// JsonResponse writes data as JSON with the given status.
func JsonResponse(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error writes a standard error body.
func Error(w http.ResponseWriter, message, code string, status int) {
	JsonResponse(w, ErrorResponse{Error: message, ErrorCode: code}, status)
}
