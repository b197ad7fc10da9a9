package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"kioskops-backend/internal/domain"
	"kioskops-backend/internal/logger"
)

// errorResponse is the wire shape of every failed request
type errorResponse struct {
	ErrorCode  string `json:"errorCode"`
	MessageKey string `json:"messageKey"`
	Detail     string `json:"detail,omitempty"`
}

var httpStatusByCode = map[domain.ErrorCode]int{
	domain.ErrUnauthenticated:    http.StatusUnauthorized,
	domain.ErrPermissionDenied:   http.StatusForbidden,
	domain.ErrInvalidArgument:    http.StatusBadRequest,
	domain.ErrNotFound:           http.StatusNotFound,
	domain.ErrFailedPrecondition: http.StatusPreconditionFailed,
	domain.ErrResourceExhausted:  http.StatusConflict,
	domain.ErrAborted:            http.StatusConflict,
	domain.ErrInternal:           http.StatusInternalServerError,
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			logger.Error("Failed to encode response", "error", err)
		}
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		de = domain.Internal("error.internal").WithCause(err)
	}

	status, ok := httpStatusByCode[de.Code]
	if !ok {
		status = http.StatusInternalServerError
	}
	if status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
	}

	writeJSON(w, status, errorResponse{
		ErrorCode:  string(de.Code),
		MessageKey: de.MessageKey,
		Detail:     de.Detail,
	})
}
