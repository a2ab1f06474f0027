package transport

import (
	"net/http"

	"stockroom/internal/middleware"

	"go.uber.org/zap"
)

// decodeRequest decodes and validates a JSON body into v. It writes the 400
// response itself and returns false when the body is unusable.
func decodeRequest(w http.ResponseWriter, r *http.Request, v interface{}, logger *zap.Logger) bool {
	if err := middleware.DecodeAndValidate(r, v); err != nil {
		logger.Debug("Request validation failed", zap.String("path", r.URL.Path), zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return false
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
