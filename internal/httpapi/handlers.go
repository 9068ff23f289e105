package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/literati-app/auth-service/internal/auth"
	"github.com/literati-app/auth-service/internal/models"
)

// Machine-readable error codes returned alongside the HTTP status.
const (
	codeNoRefreshToken          = "NO_REFRESH_TOKEN"
	codeInvalidOrExpiredToken   = "INVALID_OR_EXPIRED_TOKEN"
	codeUserNotFound            = "USER_NOT_FOUND"
	codeRefreshTokenInvalidated = "REFRESH_TOKEN_INVALIDATED"
	codeTokenFamilyBreach       = "TOKEN_FAMILY_BREACH"
	codeInvalidCredentials      = "INVALID_CREDENTIALS"
	codeAccountLocked           = "ACCOUNT_LOCKED"
	codeEmailTaken              = "EMAIL_TAKEN"
	codeBadRequest              = "BAD_REQUEST"
	codeInternal                = "INTERNAL"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type sessionResponse struct {
	Message     string         `json:"message"`
	User        models.Profile `json:"user"`
	AccessToken string         `json:"accessToken"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "malformed request body")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid email address")
		return
	}

	user, err := s.svc.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrEmailTaken):
			writeError(w, http.StatusConflict, codeEmailTaken, "email already registered")
		case errors.Is(err, auth.ErrWeakPassword):
			writeError(w, http.StatusBadRequest, codeBadRequest, "password must be at least 8 characters")
		default:
			s.log.WithError(err).Error("register failed")
			writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]models.Profile{"user": user.Profile()})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "malformed request body")
		return
	}

	user, pair, err := s.svc.Login(r.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrAccountLocked):
			writeError(w, http.StatusLocked, codeAccountLocked, "too many failed attempts, try again later")
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, codeInvalidCredentials, "invalid email or password")
		default:
			s.log.WithError(err).Error("login failed")
			writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
		}
		return
	}

	s.setAuthCookies(w, pair)
	writeJSON(w, http.StatusOK, sessionResponse{
		Message:     "login successful",
		User:        user.Profile(),
		AccessToken: pair.AccessToken,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	raw := s.refreshTokenFrom(r)
	if raw == "" {
		writeError(w, http.StatusUnauthorized, codeNoRefreshToken, "no refresh token provided")
		return
	}

	pair, user, err := s.svc.Refresh(r.Context(), raw)
	if err != nil {
		s.writeRefreshError(w, err)
		return
	}

	s.setAuthCookies(w, pair)
	writeJSON(w, http.StatusOK, sessionResponse{
		Message:     "token refreshed",
		User:        user.Profile(),
		AccessToken: pair.AccessToken,
	})
}

// writeRefreshError maps the service taxonomy onto 401 responses. On a
// breach or an invalidated session the cookies are cleared so the
// client stops retrying a dead token.
func (s *Server) writeRefreshError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrNoRefreshToken):
		writeError(w, http.StatusUnauthorized, codeNoRefreshToken, "no refresh token provided")
	case errors.Is(err, auth.ErrTokenFamilyBreach):
		s.clearAuthCookies(w)
		writeError(w, http.StatusUnauthorized, codeTokenFamilyBreach, "token reuse detected, all sessions revoked")
	case errors.Is(err, auth.ErrRefreshTokenInvalidated):
		s.clearAuthCookies(w)
		writeError(w, http.StatusUnauthorized, codeRefreshTokenInvalidated, "session revoked, log in again")
	case errors.Is(err, auth.ErrUserNotFound):
		s.clearAuthCookies(w)
		writeError(w, http.StatusUnauthorized, codeUserNotFound, "account no longer exists")
	case errors.Is(err, auth.ErrInvalidOrExpiredToken):
		writeError(w, http.StatusUnauthorized, codeInvalidOrExpiredToken, "invalid or expired refresh token")
	default:
		s.log.WithError(err).Error("refresh failed")
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Logout(r.Context(), s.refreshTokenFrom(r)); err != nil {
		s.log.WithError(err).Warn("logout cleanup failed")
	}

	// The cookies are cleared no matter what, logout never fails from
	// the client's point of view.
	s.clearAuthCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := userFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, codeInvalidOrExpiredToken, "not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, map[string]models.Profile{"user": user.Profile()})
}

func (s *Server) handleRevokeAll(w http.ResponseWriter, r *http.Request) {
	user, ok := userFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, codeInvalidOrExpiredToken, "not authenticated")
		return
	}

	if err := s.svc.RevokeAllSessions(r.Context(), user.ID); err != nil {
		s.log.WithError(err).Error("revoke all sessions failed")
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
		return
	}

	s.clearAuthCookies(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "all sessions revoked"})
}

// refreshTokenFrom reads the refresh token from the cookie, falling
// back to a JSON body for non-browser clients.
func (s *Server) refreshTokenFrom(r *http.Request) string {
	if c, err := r.Cookie(refreshCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
		return req.RefreshToken
	}
	return ""
}
