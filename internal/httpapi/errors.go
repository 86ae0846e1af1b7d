package httpapi

import (
	"errors"
	"net/http"

	goSession "github.com/MrEthical07/goSession"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorTable = []errorMapping{
	{goSession.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{goSession.ErrTokenMalformed, http.StatusUnauthorized, "token_malformed"},
	{goSession.ErrTokenExpired, http.StatusUnauthorized, "token_expired"},
	{goSession.ErrTokenInvalidSignature, http.StatusUnauthorized, "token_invalid_signature"},
	{goSession.ErrSessionRevokedOrAbsent, http.StatusUnauthorized, "session_revoked"},
	{goSession.ErrResetTokenInvalid, http.StatusBadRequest, "reset_token_invalid"},
	{goSession.ErrResetTokenExpired, http.StatusGone, "reset_token_expired"},
	{goSession.ErrUserNotFound, http.StatusNotFound, "user_not_found"},
	{goSession.ErrStoreUnavailable, http.StatusServiceUnavailable, "store_unavailable"},
	{goSession.ErrDirectoryUnavailable, http.StatusBadGateway, "directory_unavailable"},
	{goSession.ErrCredentialUpdateFailed, http.StatusBadGateway, "credential_update_failed"},
	{goSession.ErrPasswordChangeRequired, http.StatusForbidden, "password_change_required"},
	{goSession.ErrLoginRateLimited, http.StatusTooManyRequests, "login_rate_limited"},
	{goSession.ErrPasswordResetRateLimited, http.StatusTooManyRequests, "password_reset_rate_limited"},
	{goSession.ErrEngineNotReady, http.StatusInternalServerError, "engine_not_ready"},
}

// statusFor maps an engine error onto an HTTP status and a stable code.
func statusFor(err error) (int, string) {
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code := statusFor(err)

	logger := loggerFrom(r)
	event := logger.Debug()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Err(err).Str("op", op).Str("code", code).Msg("request failed")

	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	writeJSON(w, status, errorBody{Error: code, Message: message})
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_request", Message: message})
}
