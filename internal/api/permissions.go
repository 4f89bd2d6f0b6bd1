package api

import (
	"encoding/json"
	"net/http"

	"github.com/halcyonlabs/authgate/internal/audit"
	"github.com/halcyonlabs/authgate/internal/auth"
)

// permissionRequest is the create body for permissions.
type permissionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// handleCreatePermission creates a new permission.
//
// POST /api/v1/core/permissions
//
// Permission names are the scope strings embedded in access tokens,
// conventionally resource:action (e.g. role:read).
func (s *Server) handleCreatePermission(w http.ResponseWriter, r *http.Request) {
	var req permissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "name is required")
		return
	}

	perm := &auth.Permission{Name: req.Name, Description: req.Description}
	if err := s.rbac.CreatePermission(r.Context(), perm); err != nil {
		writeAuthError(w, err)
		return
	}

	s.auditLog(r, "permission_create", callerUsername(r), audit.OutcomeSuccess, req.Name)
	writeJSON(w, http.StatusCreated, perm)
}

// handleListPermissions returns a paginated list of permissions.
//
// GET /api/v1/core/permissions?limit=50&offset=0
func (s *Server) handleListPermissions(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	perms, err := s.rbac.ListPermissions(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("listing permissions", "error", err)
		writeInternalError(w, "failed to list permissions")
		return
	}

	writeJSON(w, http.StatusOK, listResponse[auth.Permission]{
		Items:  perms,
		Limit:  limit,
		Offset: offset,
	})
}

// handleGetPermission returns a single permission.
//
// GET /api/v1/core/permissions/{permissionID}
func (s *Server) handleGetPermission(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "permissionID")
	if err != nil {
		writeBadRequest(w, "invalid permission id")
		return
	}

	perm, err := s.rbac.GetPermissionByID(r.Context(), id)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, perm)
}

// handleLinkPermission attaches a permission to a role.
//
// POST /api/v1/core/permissions/{permissionID}/role/{roleID}
//
// Idempotent: linking an already-linked pair succeeds.
func (s *Server) handleLinkPermission(w http.ResponseWriter, r *http.Request) {
	permID, err := idParam(r, "permissionID")
	if err != nil {
		writeBadRequest(w, "invalid permission id")
		return
	}
	roleID, err := idParam(r, "roleID")
	if err != nil {
		writeBadRequest(w, "invalid role id")
		return
	}

	// Resolve both ends so a missing role or permission reports 404
	// instead of surfacing a foreign key failure.
	perm, err := s.rbac.GetPermissionByID(r.Context(), permID)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	role, err := s.rbac.GetRoleByID(r.Context(), roleID)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	if err := s.rbac.AssignPermissionToRole(r.Context(), roleID, permID); err != nil {
		writeAuthError(w, err)
		return
	}

	s.auditLog(r, "permission_link", callerUsername(r), audit.OutcomeSuccess, perm.Name+" -> "+role.Name)
	writeJSON(w, http.StatusOK, map[string]string{"detail": "permission linked"})
}

// handleUnlinkPermission detaches a permission from a role.
//
// DELETE /api/v1/core/permissions/{permissionID}/role/{roleID}
func (s *Server) handleUnlinkPermission(w http.ResponseWriter, r *http.Request) {
	permID, err := idParam(r, "permissionID")
	if err != nil {
		writeBadRequest(w, "invalid permission id")
		return
	}
	roleID, err := idParam(r, "roleID")
	if err != nil {
		writeBadRequest(w, "invalid role id")
		return
	}

	if err := s.rbac.RemovePermissionFromRole(r.Context(), roleID, permID); err != nil {
		writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"detail": "permission unlinked"})
}

// handlePermissionsForUser returns a user's effective scope names, the
// union of permissions across all assigned roles.
//
// GET /api/v1/core/permissions/user/{userID}
func (s *Server) handlePermissionsForUser(w http.ResponseWriter, r *http.Request) {
	userID, err := idParam(r, "userID")
	if err != nil {
		writeBadRequest(w, "invalid user id")
		return
	}

	if _, err := s.users.GetByID(r.Context(), userID); err != nil {
		writeAuthError(w, err)
		return
	}

	scopes, err := s.rbac.EffectiveScopes(r.Context(), userID)
	if err != nil {
		s.logger.Error("resolving effective scopes", "user_id", userID, "error", err)
		writeInternalError(w, "failed to list permissions")
		return
	}

	writeJSON(w, http.StatusOK, map[string][]string{"scopes": scopes})
}

// handleDeletePermission removes a permission. Role links cascade, so the
// scope disappears from tokens issued after the next login.
//
// DELETE /api/v1/core/permissions/{permissionID}
func (s *Server) handleDeletePermission(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "permissionID")
	if err != nil {
		writeBadRequest(w, "invalid permission id")
		return
	}

	perm, err := s.rbac.GetPermissionByID(r.Context(), id)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	if err := s.rbac.DeletePermission(r.Context(), id); err != nil {
		writeAuthError(w, err)
		return
	}

	s.auditLog(r, "permission_delete", callerUsername(r), audit.OutcomeSuccess, perm.Name)
	writeJSON(w, http.StatusOK, map[string]string{"detail": "permission deleted"})
}
