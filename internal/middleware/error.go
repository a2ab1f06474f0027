package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"stockroom/internal/domain"

	"go.uber.org/zap"
)

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

// RespondWithError sends a structured error response
func RespondWithError(w http.ResponseWriter, statusCode int, message string) {
	RespondWithErrorDetails(w, statusCode, message, nil)
}

// RespondWithErrorDetails sends a structured error response with additional details
func RespondWithErrorDetails(w http.ResponseWriter, statusCode int, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: ErrorDetail{
			Code:      http.StatusText(statusCode),
			Message:   message,
			Details:   details,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	json.NewEncoder(w).Encode(response)
}

// RespondWithValidationErrors sends validation error response
func RespondWithValidationErrors(w http.ResponseWriter, errors []ValidationError) {
	details := make(map[string]interface{})
	details["validation_errors"] = errors

	RespondWithErrorDetails(w, http.StatusBadRequest, "validation failed", details)
}

// StatusForError maps workflow errors to HTTP status codes
func StatusForError(err error) int {
	var (
		validationErr *domain.ValidationError
		unknownLine   *domain.UnknownLineError
		completedErr  *domain.AlreadyCompletedError
		notFoundErr   *domain.NotFoundError
		storageErr    *domain.StorageError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.As(err, &unknownLine):
		return http.StatusUnprocessableEntity
	case errors.As(err, &completedErr):
		return http.StatusConflict
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound
	case errors.As(err, &storageErr):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RespondWithDomainError writes err using the status from StatusForError.
// Server-side failures are logged and their message is not exposed.
func RespondWithDomainError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := StatusForError(err)

	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", zap.Error(err), zap.Int("status", status))
		message := "internal server error"
		if status == http.StatusServiceUnavailable {
			message = "storage unavailable"
		}
		RespondWithError(w, status, message)
		return
	}

	var details map[string]interface{}
	var (
		validationErr *domain.ValidationError
		unknownLine   *domain.UnknownLineError
		completedErr  *domain.AlreadyCompletedError
	)
	switch {
	case errors.As(err, &validationErr):
		details = map[string]interface{}{"field": validationErr.Field}
	case errors.As(err, &unknownLine):
		details = map[string]interface{}{"line_id": unknownLine.LineID}
	case errors.As(err, &completedErr):
		details = map[string]interface{}{"order_id": completedErr.OrderID}
	}

	RespondWithErrorDetails(w, status, err.Error(), details)
}

// ErrorHandlingMiddleware catches panics and converts them to 500 errors
func ErrorHandlingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					logger.Error("Panic recovered",
						zap.Any("error", err),
						zap.String("path", r.URL.Path),
						zap.String("method", r.Method),
					)

					RespondWithError(w, http.StatusInternalServerError, "internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// RespondWithJSON sends a JSON response
func RespondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}
