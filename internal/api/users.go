package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/halcyonlabs/authgate/internal/audit"
	"github.com/halcyonlabs/authgate/internal/auth"
)

// listResponse is the shared paginated collection envelope.
type listResponse[T any] struct {
	Items  []T `json:"items"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// defaultPageSize and maxPageSize bound list endpoints.
const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// pagination reads limit/offset query parameters with clamping.
func pagination(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

// idParam parses a numeric URL parameter.
func idParam(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

// updateUserRequest is the admin user update body. Pointer fields
// distinguish "not provided" from zero values.
type updateUserRequest struct {
	Email    *string `json:"email"`
	FullName *string `json:"full_name"`
	IsActive *bool   `json:"is_active"`
}

// changePasswordRequest is the self-service password change body.
type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// handleListUsers returns a paginated list of user accounts.
//
// GET /api/v1/users?limit=50&offset=0
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	users, err := s.users.List(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("listing users", "error", err)
		writeInternalError(w, "failed to list users")
		return
	}

	writeJSON(w, http.StatusOK, listResponse[auth.User]{
		Items:  users,
		Limit:  limit,
		Offset: offset,
	})
}

// handleGetUser returns a single user with their assigned roles.
//
// GET /api/v1/users/{userID}
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "userID")
	if err != nil {
		writeBadRequest(w, "invalid user id")
		return
	}

	user, err := s.users.GetByID(r.Context(), id)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	roles, err := s.rbac.RolesForUser(r.Context(), id)
	if err != nil {
		s.logger.Error("loading user roles", "user_id", id, "error", err)
		writeInternalError(w, "failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, struct {
		*auth.User
		Roles []auth.Role `json:"roles"`
	}{User: user, Roles: roles})
}

// handleUpdateUser updates a user's profile or active flag.
//
// PATCH /api/v1/users/{userID}
//
// Username is immutable: it is the JWT subject of every live token.
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "userID")
	if err != nil {
		writeBadRequest(w, "invalid user id")
		return
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	user, err := s.users.GetByID(r.Context(), id)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	if req.Email != nil {
		if !auth.IsValidEmail(*req.Email) {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, "invalid email format")
			return
		}
		user.Email = *req.Email
	}
	if req.FullName != nil {
		user.FullName = *req.FullName
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if err := s.users.Update(r.Context(), user); err != nil {
		writeAuthError(w, err)
		return
	}

	s.auditLog(r, "user_update", user.Username, audit.OutcomeSuccess, "")
	writeJSON(w, http.StatusOK, user)
}

// handleDeleteUser removes a user account. Role links are removed by
// cascade; live tokens for the user fail guard checks once the row is gone.
//
// DELETE /api/v1/users/{userID}
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "userID")
	if err != nil {
		writeBadRequest(w, "invalid user id")
		return
	}

	// Self-deletion through the admin endpoint is blocked; it is almost
	// always an accident with an admin token.
	if principal := principalFrom(r.Context()); principal != nil && principal.User.ID == id {
		writeBadRequest(w, "cannot delete your own account")
		return
	}

	user, err := s.users.GetByID(r.Context(), id)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	if err := s.users.Delete(r.Context(), id); err != nil {
		writeAuthError(w, err)
		return
	}

	s.auditLog(r, "user_delete", user.Username, audit.OutcomeSuccess, "")
	writeJSON(w, http.StatusOK, map[string]string{"detail": "user deleted"})
}

// handleChangeMyPassword changes the authenticated user's own password.
//
// PUT /api/v1/users/me/password
//
// Requires the current password; no scope beyond authentication.
func (s *Server) handleChangeMyPassword(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r.Context())
	if principal == nil {
		writeUnauthorized(w, "not authenticated")
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.NewPassword == "" {
		writeBadRequest(w, "new_password is required")
		return
	}

	err := s.authSvc.ChangePassword(r.Context(), principal.User.ID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.auditLog(r, "password_change", principal.User.Username, audit.OutcomeFailure, "")
			writeBadRequest(w, "current password is incorrect")
			return
		}
		s.logger.Error("changing password", "username", principal.User.Username, "error", err)
		writeInternalError(w, "failed to change password")
		return
	}

	s.auditLog(r, "password_change", principal.User.Username, audit.OutcomeSuccess, "")
	writeJSON(w, http.StatusOK, map[string]string{"detail": "password updated"})
}
