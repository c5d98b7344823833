package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/querylens-ai/querylens-engine/pkg/apperrors"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// WriteClassifiedError maps an application error onto the wire: the stable
// error kind, an operator-safe message, and the correlation ID. Unclassified
// errors become an opaque 500.
func WriteClassifiedError(w http.ResponseWriter, err error) error {
	if errors.Is(err, apperrors.ErrNotFound) {
		return ErrorResponse(w, http.StatusNotFound, "not_found", "resource not found")
	}
	if errors.Is(err, apperrors.ErrAlreadyInProgress) {
		return ErrorResponse(w, http.StatusConflict, "already_in_progress",
			"a live job for this target was enqueued with a different payload")
	}

	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		return ErrorResponse(w, http.StatusInternalServerError, "internal", "internal error")
	}

	status := http.StatusInternalServerError
	switch appErr.Kind {
	case apperrors.KindFirewallRejected:
		status = http.StatusUnprocessableEntity
	case apperrors.KindPolicyDenied:
		status = http.StatusForbidden
	case apperrors.KindGenerationDisabled:
		status = http.StatusServiceUnavailable
	case apperrors.KindAllProvidersExhausted, apperrors.KindQueueUnavailable:
		status = http.StatusServiceUnavailable
	case apperrors.KindJobExhausted:
		status = http.StatusConflict
	case apperrors.KindRequestCancelled:
		status = http.StatusRequestTimeout
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(map[string]any{
		"error":          string(appErr.Kind),
		"message":        appErr.Reason,
		"retryable":      appErr.Retryable,
		"correlation_id": appErr.CorrelationID,
	})
}
