// Package api provides HTTP API utilities including standardized error handling.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/cappuconnect/cappuconnect/internal/middleware"
)

// Error codes carried in the response body and the access log.
const (
	ErrCodeValidation = "validation_error"
	ErrCodeAuthFailed = "auth_failed"
	ErrCodeNotFound   = "not_found"
	ErrCodeInternal   = "internal_error"
	ErrCodeForbidden   = "forbidden"
	ErrCodeConflict    = "conflict"
	ErrCodeBadRequest  = "bad_request"

	// ErrCodeSelfTarget marks a relationship action where viewer and
	// target are the same user.
	ErrCodeSelfTarget = "self_target"

	// ErrCodePrecondition marks a profile missing data the operation
	// needs, such as an empty skill list for ranking.
	ErrCodePrecondition = "precondition_failed"

	// ErrCodeInvalidAction marks an unrecognized attendance action.
	ErrCodeInvalidAction = "invalid_action"
)

// ErrCodeRateLimited is the limiter's code; it lives in middleware so
// the blocked branch and the HTTP surface agree on one string.
const ErrCodeRateLimited = middleware.ErrCodeRateLimited

// ErrorResponse is the body of every API error:
// {"error": {"code": "...", "message": "..."}}
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError sends a JSON error body with the given status. Pass a
// context that went through middleware.SetErrorCode so the access log
// line carries the same code as the body:
//
//	ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
//	WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "User not found")
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	middleware.UpdateResponseContext(w, ctx)

	body, err := json.Marshal(ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal error response", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}

// StatusCodeMapping maps an error code to the HTTP status it is served
// with. Unknown codes map to 500.
func StatusCodeMapping(code string) int {
	switch code {
	case ErrCodeValidation, ErrCodeBadRequest, ErrCodeInvalidAction:
		return http.StatusBadRequest
	case ErrCodeAuthFailed:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeConflict, ErrCodeSelfTarget:
		return http.StatusConflict
	case ErrCodePrecondition:
		return http.StatusUnprocessableEntity
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
