package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrEthical07/authcore"
)

type errorBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code, desc string, status int) {
	writeJSON(w, status, errorBody{Error: code, Description: desc})
}

type messageBody struct {
	Message string `json:"message"`
}

// statusFor maps engine errors to HTTP. Unknown errors are 500 and their
// text is not echoed.
func statusFor(err error) (int, string, string) {
	var weak *authcore.WeakPasswordError
	switch {
	case errors.As(err, &weak):
		return http.StatusBadRequest, "weak_password", weak.Error()
	case errors.Is(err, authcore.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials", err.Error()
	case errors.Is(err, authcore.ErrAccountDisabled):
		return http.StatusForbidden, "account_disabled", err.Error()
	case errors.Is(err, authcore.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited", err.Error()
	case errors.Is(err, authcore.ErrEmailAlreadyUsed):
		return http.StatusConflict, "email_already_used", err.Error()
	case errors.Is(err, authcore.ErrInvalidOrExpiredToken):
		return http.StatusBadRequest, "invalid_token", authcore.ErrInvalidOrExpiredToken.Error()
	case errors.Is(err, authcore.ErrUnsupportedProvider):
		return http.StatusBadRequest, "unsupported_provider", err.Error()
	case errors.Is(err, authcore.ErrUpstreamProvider):
		return http.StatusBadGateway, "upstream_provider", err.Error()
	case errors.Is(err, authcore.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found", err.Error()
	case errors.Is(err, authcore.ErrCannotRevokeCurrent):
		return http.StatusBadRequest, "cannot_revoke_current", err.Error()
	case errors.Is(err, authcore.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "unavailable", "service temporarily unavailable"
	default:
		return http.StatusInternalServerError, "internal_error", "internal error"
	}
}
