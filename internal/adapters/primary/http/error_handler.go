package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	mw "github.com/lorrc/emergency-triage-backend/internal/adapters/primary/http/middleware"
	apperrors "github.com/lorrc/emergency-triage-backend/internal/core/errors"
)

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	return mw.GetRequestID(ctx)
}

// ErrorResponse is the standard JSON error response format
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ValidationErrorResponse includes field-level validation errors
type ValidationErrorResponse struct {
	Error  string              `json:"error"`
	Code   string              `json:"code"`
	Fields map[string][]string `json:"fields,omitempty"`
}

// ErrorHandler provides centralized error handling with logging
type ErrorHandler struct {
	logger *slog.Logger
}

// NewErrorHandler creates a new error handler with the given logger
func NewErrorHandler(logger *slog.Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle processes an error and writes the appropriate HTTP response
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	requestID := GetRequestID(r.Context())

	// Check for AppError first (our custom error type)
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		h.logError(r, appErr.StatusCode, appErr.Err, requestID)
		h.writeErrorResponse(w, appErr.StatusCode, ErrorResponse{
			Error:   appErr.Message,
			Code:    appErr.Code,
			Details: appErr.Details,
		})
		return
	}

	// Check for ValidationErrors
	var validationErrs *apperrors.ValidationErrors
	if errors.As(err, &validationErrs) {
		h.logError(r, http.StatusUnprocessableEntity, err, requestID)
		h.writeValidationErrorResponse(w, validationErrs)
		return
	}

	// Map known domain errors to HTTP responses
	statusCode, response := h.mapDomainError(err)
	h.logError(r, statusCode, err, requestID)
	h.writeErrorResponse(w, statusCode, response)
}

// mapDomainError converts domain errors to HTTP status codes and responses
func (h *ErrorHandler) mapDomainError(err error) (int, ErrorResponse) {
	switch {
	// Authentication & Authorization
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		return http.StatusUnauthorized, ErrorResponse{
			Error: "Invalid credentials",
			Code:  "INVALID_CREDENTIALS",
		}
	case errors.Is(err, apperrors.ErrUnauthorized):
		return http.StatusUnauthorized, ErrorResponse{
			Error: "Authentication required",
			Code:  "UNAUTHORIZED",
		}
	case errors.Is(err, apperrors.ErrForbidden):
		return http.StatusForbidden, ErrorResponse{
			Error: "You do not have permission to perform this action",
			Code:  "FORBIDDEN",
		}

	// Not Found errors
	case errors.Is(err, apperrors.ErrQueueEntryNotFound):
		return http.StatusNotFound, ErrorResponse{
			Error: "Queue entry not found",
			Code:  "QUEUE_ENTRY_NOT_FOUND",
		}
	case errors.Is(err, apperrors.ErrOperatorNotFound):
		return http.StatusNotFound, ErrorResponse{
			Error: "Operator not found",
			Code:  "OPERATOR_NOT_FOUND",
		}
	case errors.Is(err, apperrors.ErrHandoffNotFound):
		return http.StatusNotFound, ErrorResponse{
			Error: "Handoff not found",
			Code:  "HANDOFF_NOT_FOUND",
		}
	case errors.Is(err, apperrors.ErrCallNotFound):
		return http.StatusNotFound, ErrorResponse{
			Error: "Call not found",
			Code:  "CALL_NOT_FOUND",
		}

	// State-transition rejections. The claim race loser and the second
	// acceptor get 400 with a distinct code; the code, not the status,
	// is what lets a dashboard tell "lost the race" from "never existed".
	case errors.Is(err, apperrors.ErrAlreadyClaimed):
		return http.StatusBadRequest, ErrorResponse{
			Error: "Entry already claimed by another operator",
			Code:  "ALREADY_CLAIMED",
		}
	case errors.Is(err, apperrors.ErrHandoffAlreadyAccepted):
		return http.StatusBadRequest, ErrorResponse{
			Error: "Handoff already accepted by another operator",
			Code:  "HANDOFF_ALREADY_ACCEPTED",
		}
	case errors.Is(err, apperrors.ErrDuplicateEntry):
		return http.StatusConflict, ErrorResponse{
			Error: "Call already has an active queue entry",
			Code:  "DUPLICATE_ENTRY",
		}

	// Validation errors
	case errors.Is(err, apperrors.ErrInvalidPriority),
		errors.Is(err, apperrors.ErrInvalidQueueStatus),
		errors.Is(err, apperrors.ErrInvalidOperatorState):
		return http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "VALIDATION_ERROR",
		}

	// Business rule violations
	case errors.Is(err, apperrors.ErrInvalidStatusTransition):
		return http.StatusBadRequest, ErrorResponse{
			Error: "Invalid status transition",
			Code:  "INVALID_STATUS_TRANSITION",
		}
	case errors.Is(err, apperrors.ErrOperatorNotAvailable):
		return http.StatusBadRequest, ErrorResponse{
			Error: "Operator is not available for a new call",
			Code:  "OPERATOR_NOT_AVAILABLE",
		}
	case errors.Is(err, apperrors.ErrNoActiveCall):
		return http.StatusBadRequest, ErrorResponse{
			Error: "Operator has no active call",
			Code:  "NO_ACTIVE_CALL",
		}
	case errors.Is(err, apperrors.ErrCallAlreadyCompleted):
		return http.StatusBadRequest, ErrorResponse{
			Error: "Call has already been completed",
			Code:  "CALL_ALREADY_COMPLETED",
		}
	case errors.Is(err, apperrors.ErrHandoffNotAccepted):
		return http.StatusBadRequest, ErrorResponse{
			Error: "Handoff has not been accepted",
			Code:  "HANDOFF_NOT_ACCEPTED",
		}
	case errors.Is(err, apperrors.ErrHandoffTerminal):
		return http.StatusBadRequest, ErrorResponse{
			Error: "Handoff is already in a terminal state",
			Code:  "HANDOFF_TERMINAL",
		}

	// Rate limiting
	case errors.Is(err, apperrors.ErrRateLimited):
		return http.StatusTooManyRequests, ErrorResponse{
			Error: "Too many requests. Please try again later.",
			Code:  "RATE_LIMITED",
		}

	// Default to internal server error
	default:
		return http.StatusInternalServerError, ErrorResponse{
			Error: "An unexpected error occurred",
			Code:  "INTERNAL_ERROR",
		}
	}
}

// logError logs the error with appropriate context
func (h *ErrorHandler) logError(r *http.Request, statusCode int, err error, requestID string) {
	logAttrs := []any{
		"request_id", requestID,
		"method", r.Method,
		"path", r.URL.Path,
		"status_code", statusCode,
		"error", err.Error(),
	}

	switch {
	case statusCode >= 500:
		h.logger.Error("server error", logAttrs...)
	case statusCode >= 400:
		h.logger.Warn("client error", logAttrs...)
	default:
		h.logger.Info("request error", logAttrs...)
	}
}

// writeErrorResponse writes a JSON error response
func (h *ErrorHandler) writeErrorResponse(w http.ResponseWriter, statusCode int, response ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

// writeValidationErrorResponse writes a validation error response
func (h *ErrorHandler) writeValidationErrorResponse(w http.ResponseWriter, errs *apperrors.ValidationErrors) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnprocessableEntity)
	_ = json.NewEncoder(w).Encode(ValidationErrorResponse{
		Error:  "Validation failed",
		Code:   "VALIDATION_ERROR",
		Fields: errs.Errors,
	})
}
