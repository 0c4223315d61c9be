package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/woodraft/draftauth/internal/common"
)

// Error details returned to clients.
const (
	detailDuplicateEmail     = "User already invited or registered."
	detailInvalidInvite      = "Invalid invite token."
	detailAlreadyRegistered  = "User already registered."
	detailInvalidCredentials = "Invalid credentials."
	detailUnauthenticated    = "Could not validate credentials"
	detailNotVerified        = "User not verified"
	detailNotAdmin           = "Not enough privileges"
	detailInvalidBody        = "Invalid request body."
	detailInvalidInput       = "Invalid input."
	detailInternal           = "Internal server error."
)

type errorResponse struct {
	Detail any `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func errorJSON(w http.ResponseWriter, status int, detail any) {
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", common.BearerScheme)
	}
	writeJSON(w, status, errorResponse{Detail: detail})
}

// statusFor maps a service error onto an HTTP status and client detail.
// Unknown errors map to 500 and must be logged by the caller.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrDuplicateEmail):
		return http.StatusBadRequest, detailDuplicateEmail
	case errors.Is(err, common.ErrAlreadyRegistered):
		return http.StatusBadRequest, detailAlreadyRegistered
	case errors.Is(err, common.ErrInvalidInviteToken):
		return http.StatusNotFound, detailInvalidInvite
	case errors.Is(err, common.ErrInvalidCredentials):
		return http.StatusUnauthorized, detailInvalidCredentials
	case errors.Is(err, common.ErrUnauthenticated):
		return http.StatusUnauthorized, detailUnauthenticated
	case errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden, detailNotVerified
	case errors.Is(err, common.ErrValidation):
		return http.StatusUnprocessableEntity, detailInvalidInput
	default:
		return http.StatusInternalServerError, detailInternal
	}
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	errorJSON(w, status, detail)
}
