package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/contactkeeper/internal/common"
)

type errorResponse struct {
	Detail string `json:"detail"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// statusFor maps a service error to an HTTP status and a client-safe message.
// Order matters: ErrFileTooLarge also matches ErrorInvalidInput.
func statusFor(err error) (int, string) {
	var verr *validationError

	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Error()
	case errors.Is(err, common.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, "File size too large"
	case errors.Is(err, common.ErrUnsupportedFileType):
		return http.StatusBadRequest, "Invalid file type"
	case errors.Is(err, common.ErrInvalidOrAlreadyVerified):
		return http.StatusBadRequest, "Invalid email or token, or already verified"
	case errors.Is(err, common.ErrorInvalidInput):
		return http.StatusBadRequest, "Invalid input"
	case errors.Is(err, common.ErrEmailAlreadyRegistered):
		return http.StatusConflict, "Email already registered"
	case errors.Is(err, common.ErrorConflict):
		return http.StatusConflict, "Contact with this email already exists"
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrInvalidToken):
		return http.StatusUnauthorized, "Could not validate credentials"
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, "Not found"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	writeJSON(w, status, errorResponse{Detail: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
