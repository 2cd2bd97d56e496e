package transport

import (
	"errors"
	"net/http"

	"marketmint/internal/middleware"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// decodeJSON decodes and validates the body into v. On failure it writes
// the 400 response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}, logger *zap.Logger) bool {
	err := middleware.DecodeAndValidate(w, r, v)
	if err == nil {
		return true
	}

	logger.Debug("Request validation failed",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)

	if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
		middleware.RespondWithValidationErrors(w, validationErrors)
		return false
	}

	if errors.Is(err, middleware.ErrInvalidJSON) {
		middleware.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}

	middleware.RespondWithError(w, http.StatusBadRequest, "Invalid request")
	return false
}

// requireUserID reads the session user set by the auth middleware
func requireUserID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		logger.Error("User ID not found in context", zap.String("path", r.URL.Path))
		middleware.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return uuid.Nil, false
	}
	return userID, true
}

// sessionEmail is the log field for the email the session was issued to
func sessionEmail(r *http.Request) zap.Field {
	email, _ := middleware.GetUserEmail(r.Context())
	return zap.String("user_email", email)
}
