package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"mercator-hq/cadence/pkg/customer"
	"mercator-hq/cadence/pkg/experiment"
	"mercator-hq/cadence/pkg/ledger"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one API error.
type ErrorDetail struct {
	Message string   `json:"message"`
	Type    string   `json:"type"`
	Code    string   `json:"code,omitempty"`
	Details []string `json:"details,omitempty"`
}

// Error types.
const (
	ErrorTypeInvalidRequest = "invalid_request_error"
	ErrorTypeNotFound       = "not_found"
	ErrorTypeConflict       = "conflict"
	ErrorTypeInvariant      = "invariant_violation"
	ErrorTypeTimeout        = "timeout"
	ErrorTypeServerError    = "server_error"
)

// Error codes.
const (
	CodeInvalidJSON        = "invalid_json"
	CodeSchemaViolation    = "schema_violation"
	CodeBodyTooLarge       = "body_too_large"
	CodeInvalidValue       = "invalid_value"
	CodeCustomerNotFound   = "customer_not_found"
	CodeExperimentNotFound = "experiment_not_found"
	CodeDecisionNotFound   = "decision_not_found"
	CodeInvalidState       = "invalid_state"
	CodeInvalidOverride    = "invalid_override"
	CodeInvariant          = "invariant_violated"
	CodeDeadlineExceeded   = "deadline_exceeded"
	CodeInternal           = "internal_error"
)

// requestError is a client error detected before reaching the domain
// packages.
type requestError struct {
	status  int
	code    string
	message string
	details []string
}

func (e *requestError) Error() string {
	return e.message
}

func badRequest(code, message string, details ...string) *requestError {
	return &requestError{status: http.StatusBadRequest, code: code, message: message, details: details}
}

// errorStatus maps an error to its HTTP status, type and code.
func errorStatus(err error) (int, string, string) {
	var reqErr *requestError
	var invErr *experiment.InvariantError
	switch {
	case errors.As(err, &reqErr):
		return reqErr.status, ErrorTypeInvalidRequest, reqErr.code
	case errors.Is(err, customer.ErrNotFound):
		return http.StatusNotFound, ErrorTypeNotFound, CodeCustomerNotFound
	case errors.Is(err, experiment.ErrNotFound):
		return http.StatusNotFound, ErrorTypeNotFound, CodeExperimentNotFound
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound, ErrorTypeNotFound, CodeDecisionNotFound
	case errors.Is(err, ledger.ErrInvalidOverride):
		return http.StatusBadRequest, ErrorTypeInvalidRequest, CodeInvalidOverride
	case errors.Is(err, experiment.ErrInvalidState):
		return http.StatusConflict, ErrorTypeConflict, CodeInvalidState
	case errors.As(err, &invErr):
		return http.StatusUnprocessableEntity, ErrorTypeInvariant, CodeInvariant
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrorTypeTimeout, CodeDeadlineExceeded
	default:
		return http.StatusInternalServerError, ErrorTypeServerError, CodeInternal
	}
}

// handleError writes err as an ErrorResponse. Internal errors are logged
// and replaced by a generic message.
func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status, typ, code := errorStatus(err)
	msg := err.Error()
	var details []string
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		details = reqErr.details
	}
	if status >= http.StatusInternalServerError && status != http.StatusGatewayTimeout {
		s.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		msg = "internal server error"
	}
	writeError(w, status, typ, code, msg, details...)
}

func writeError(w http.ResponseWriter, status int, typ, code, message string, details ...string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{
		Message: message,
		Type:    typ,
		Code:    code,
		Details: details,
	}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
