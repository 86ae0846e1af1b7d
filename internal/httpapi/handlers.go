package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	goSession "github.com/MrEthical07/goSession"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	UserID       string `json:"userId"`
	RefreshToken string `json:"refreshToken"`
}

type tokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type resetRequest struct {
	Identifier string `json:"identifier"`
}

type resetConfirmRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type meResponse struct {
	UserID    string                 `json:"userId"`
	Username  string                 `json:"username"`
	Role      string                 `json:"role"`
	ExpiresAt time.Time              `json:"expiresAt"`
	User      goSession.UserSnapshot `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if !decode(w, r, &body) {
		return
	}
	if body.Username == "" || body.Password == "" {
		badRequest(w, "username and password are required")
		return
	}

	res, err := s.engine.Login(r.Context(), body.Username, body.Password)
	if err != nil {
		s.writeError(w, r, "login", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body refreshRequest
	if !decode(w, r, &body) {
		return
	}
	if body.RefreshToken == "" {
		badRequest(w, "refreshToken is required")
		return
	}

	res, err := s.engine.Refresh(r.Context(), body.UserID, body.RefreshToken)
	if err != nil {
		s.writeError(w, r, "refresh", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var body tokenRequest
	if !decode(w, r, &body) {
		return
	}
	if err := s.engine.Logout(r.Context(), body.RefreshToken); err != nil {
		s.writeError(w, r, "logout", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	var body tokenRequest
	if !decode(w, r, &body) {
		return
	}
	if err := s.engine.RevokeRefreshToken(r.Context(), body.RefreshToken); err != nil {
		s.writeError(w, r, "revoke", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	var body resetRequest
	if !decode(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Identifier) == "" {
		badRequest(w, "identifier is required")
		return
	}

	issued, err := s.engine.RequestPasswordReset(r.Context(), body.Identifier)
	if err != nil {
		s.writeError(w, r, "password_reset_request", err)
		return
	}
	writeJSON(w, http.StatusOK, issued)
}

func (s *Server) handleResetConfirm(w http.ResponseWriter, r *http.Request) {
	var body resetConfirmRequest
	if !decode(w, r, &body) {
		return
	}
	if body.NewPassword == "" {
		badRequest(w, "newPassword is required")
		return
	}

	if err := s.engine.ResetPassword(r.Context(), body.Token, body.NewPassword); err != nil {
		s.writeError(w, r, "password_reset_confirm", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "password_updated"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := goSession.IdentityFromContext(r.Context())
	if !ok {
		s.writeError(w, r, "me", goSession.ErrSessionRevokedOrAbsent)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{
		UserID:    identity.UserID,
		Username:  identity.Username,
		Role:      identity.Role,
		ExpiresAt: identity.ExpiresAt,
		User:      identity.User,
	})
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := s.engine.Ready(r.Context()); err != nil {
		loggerFrom(r).Warn().Err(err).Msg("readiness check failed")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		badRequest(w, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
