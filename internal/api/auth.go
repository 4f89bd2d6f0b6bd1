package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/halcyonlabs/authgate/internal/audit"
	"github.com/halcyonlabs/authgate/internal/auth"
)

// signupRequest is the request body for user self-registration.
type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
}

// refreshRequest carries the refresh token for rotation and logout.
type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// meResponse is the authenticated user's profile plus effective scopes.
type meResponse struct {
	*auth.User
	Scopes []string `json:"scopes"`
}

// handleSignup registers a new user account.
//
// POST /api/v1/auth/signup
//
// Honours the registration policy: returns 403 when self-service signup
// is disabled, and creates inactive accounts when open activation is off.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if !s.secCfg.Registration.Open {
		s.auditLog(r, "signup", "", audit.OutcomeFailure, "registration closed")
		writeAuthError(w, auth.ErrRegistrationClosed)
		return
	}

	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	user, err := s.authSvc.Register(r.Context(), req.Username, req.Email, req.FullName, req.Password,
		s.secCfg.Registration.OpenActivation)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		case errors.Is(err, auth.ErrUsernameExists), errors.Is(err, auth.ErrEmailExists):
			s.auditLog(r, "signup", req.Username, audit.OutcomeFailure, "duplicate account")
			writeAuthError(w, err)
		default:
			s.logger.Error("registering user", "username", req.Username, "error", err)
			writeInternalError(w, "failed to register user")
		}
		return
	}

	s.auditLog(r, "signup", user.Username, audit.OutcomeSuccess, "")
	writeJSON(w, http.StatusCreated, user)
}

// handleToken exchanges credentials for a token pair.
//
// POST /api/v1/auth/token
//
// Accepts application/x-www-form-urlencoded with username and password
// fields, matching the OAuth2 password grant shape.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeBadRequest(w, "invalid form body")
		return
	}

	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	if username == "" || password == "" {
		writeBadRequest(w, "username and password are required")
		return
	}

	pair, err := s.authSvc.Login(r.Context(), username, password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrUserInactive):
			s.auditLog(r, "login", username, audit.OutcomeFailure, "")
			writeAuthError(w, err)
		default:
			s.logger.Error("issuing token pair", "username", username, "error", err)
			writeInternalError(w, "failed to issue tokens")
		}
		return
	}

	s.auditLog(r, "login", username, audit.OutcomeSuccess, "")
	writeJSON(w, http.StatusCreated, pair)
}

// handleRefreshToken rotates a refresh token into a fresh pair.
//
// POST /api/v1/auth/refresh_token
//
// The presented token is revoked before the new pair is issued, so a
// replayed refresh token is rejected.
func (s *Server) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeBadRequest(w, "refresh_token is required")
		return
	}

	pair, err := s.authSvc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrTokenInvalid),
			errors.Is(err, auth.ErrTokenExpired),
			errors.Is(err, auth.ErrTokenRevoked),
			errors.Is(err, auth.ErrUserInactive):
			s.auditLog(r, "token_refresh", "", audit.OutcomeFailure, "")
			writeAuthError(w, err)
		default:
			s.logger.Error("refreshing token", "error", err)
			writeInternalError(w, "failed to refresh token")
		}
		return
	}

	s.auditLog(r, "token_refresh", "", audit.OutcomeSuccess, "")
	writeJSON(w, http.StatusCreated, pair)
}

// handleLogout revokes a refresh token.
//
// POST /api/v1/auth/logout
//
// Idempotent: expired or already-revoked tokens still return 200.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeBadRequest(w, "refresh_token is required")
		return
	}

	if err := s.authSvc.Logout(r.Context(), req.RefreshToken); err != nil {
		// A token that never decoded is an auth rejection, not an outage;
		// only revocation-store failures rate a 500.
		if errors.Is(err, auth.ErrTokenInvalid) {
			s.auditLog(r, "logout", "", audit.OutcomeFailure, "invalid token")
			writeAuthError(w, err)
			return
		}
		s.logger.Error("revoking refresh token", "error", err)
		writeInternalError(w, "failed to log out")
		return
	}

	s.auditLog(r, "logout", "", audit.OutcomeSuccess, "")
	writeJSON(w, http.StatusOK, map[string]string{"detail": "logged out"})
}

// handleMe returns the authenticated user's profile with effective scopes.
//
// GET /api/v1/auth/me
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r.Context())
	if principal == nil {
		writeUnauthorized(w, "not authenticated")
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		User:   principal.User,
		Scopes: principal.Scopes,
	})
}
