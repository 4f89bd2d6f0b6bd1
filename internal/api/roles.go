package api

import (
	"encoding/json"
	"net/http"

	"github.com/halcyonlabs/authgate/internal/audit"
	"github.com/halcyonlabs/authgate/internal/auth"
)

// roleRequest is the create/update body for roles.
type roleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// roleResponse is a role with its linked permissions.
type roleResponse struct {
	*auth.Role
	Permissions []auth.Permission `json:"permissions"`
}

// handleCreateRole creates a new role.
//
// POST /api/v1/core/roles
func (s *Server) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "name is required")
		return
	}

	role := &auth.Role{Name: req.Name, Description: req.Description}
	if err := s.rbac.CreateRole(r.Context(), role); err != nil {
		writeAuthError(w, err)
		return
	}

	s.auditLog(r, "role_create", callerUsername(r), audit.OutcomeSuccess, req.Name)
	writeJSON(w, http.StatusCreated, role)
}

// handleListRoles returns a paginated list of roles.
//
// GET /api/v1/core/roles?limit=50&offset=0
func (s *Server) handleListRoles(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	roles, err := s.rbac.ListRoles(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("listing roles", "error", err)
		writeInternalError(w, "failed to list roles")
		return
	}

	writeJSON(w, http.StatusOK, listResponse[auth.Role]{
		Items:  roles,
		Limit:  limit,
		Offset: offset,
	})
}

// handleGetRole returns a role with its linked permissions.
//
// GET /api/v1/core/roles/{roleID}
func (s *Server) handleGetRole(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "roleID")
	if err != nil {
		writeBadRequest(w, "invalid role id")
		return
	}

	role, err := s.rbac.GetRoleByID(r.Context(), id)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	perms, err := s.rbac.PermissionsForRole(r.Context(), id)
	if err != nil {
		s.logger.Error("loading role permissions", "role_id", id, "error", err)
		writeInternalError(w, "failed to load role")
		return
	}

	writeJSON(w, http.StatusOK, roleResponse{Role: role, Permissions: perms})
}

// handleUpdateRole updates a role's name or description.
//
// PUT /api/v1/core/roles/{roleID}
//
// Renaming a role does not touch issued tokens: scopes come from
// permissions, not role names.
func (s *Server) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "roleID")
	if err != nil {
		writeBadRequest(w, "invalid role id")
		return
	}

	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "name is required")
		return
	}

	role, err := s.rbac.GetRoleByID(r.Context(), id)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	role.Name = req.Name
	role.Description = req.Description
	if err := s.rbac.UpdateRole(r.Context(), role); err != nil {
		writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, role)
}

// handleDeleteRole removes a role. User assignments and permission links
// go with it by cascade.
//
// DELETE /api/v1/core/roles/{roleID}
func (s *Server) handleDeleteRole(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "roleID")
	if err != nil {
		writeBadRequest(w, "invalid role id")
		return
	}

	role, err := s.rbac.GetRoleByID(r.Context(), id)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	if err := s.rbac.DeleteRole(r.Context(), id); err != nil {
		writeAuthError(w, err)
		return
	}

	s.auditLog(r, "role_delete", callerUsername(r), audit.OutcomeSuccess, role.Name)
	writeJSON(w, http.StatusOK, map[string]string{"detail": "role deleted"})
}

// handleAssignRole grants a role to a user.
//
// POST /api/v1/core/roles/{roleID}/user/{userID}
//
// Takes effect on the user's next login; live access tokens keep the
// scopes they were issued with.
func (s *Server) handleAssignRole(w http.ResponseWriter, r *http.Request) {
	roleID, err := idParam(r, "roleID")
	if err != nil {
		writeBadRequest(w, "invalid role id")
		return
	}
	userID, err := idParam(r, "userID")
	if err != nil {
		writeBadRequest(w, "invalid user id")
		return
	}

	role, err := s.rbac.GetRoleByID(r.Context(), roleID)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	user, err := s.users.GetByID(r.Context(), userID)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	if err := s.rbac.AssignRoleToUser(r.Context(), userID, roleID); err != nil {
		writeAuthError(w, err)
		return
	}

	s.auditLog(r, "role_assign", callerUsername(r), audit.OutcomeSuccess, role.Name+" -> "+user.Username)
	writeJSON(w, http.StatusOK, map[string]string{"detail": "role assigned"})
}

// handleUnassignRole revokes a role from a user.
//
// DELETE /api/v1/core/roles/{roleID}/user/{userID}
func (s *Server) handleUnassignRole(w http.ResponseWriter, r *http.Request) {
	roleID, err := idParam(r, "roleID")
	if err != nil {
		writeBadRequest(w, "invalid role id")
		return
	}
	userID, err := idParam(r, "userID")
	if err != nil {
		writeBadRequest(w, "invalid user id")
		return
	}

	if err := s.rbac.RemoveRoleFromUser(r.Context(), userID, roleID); err != nil {
		writeAuthError(w, err)
		return
	}

	s.auditLog(r, "role_unassign", callerUsername(r), audit.OutcomeSuccess, "")
	writeJSON(w, http.StatusOK, map[string]string{"detail": "role unassigned"})
}

// handleRolesForUser returns the roles assigned to a user.
//
// GET /api/v1/core/roles/user/{userID}
func (s *Server) handleRolesForUser(w http.ResponseWriter, r *http.Request) {
	userID, err := idParam(r, "userID")
	if err != nil {
		writeBadRequest(w, "invalid user id")
		return
	}

	if _, err := s.users.GetByID(r.Context(), userID); err != nil {
		writeAuthError(w, err)
		return
	}

	roles, err := s.rbac.RolesForUser(r.Context(), userID)
	if err != nil {
		s.logger.Error("listing roles for user", "user_id", userID, "error", err)
		writeInternalError(w, "failed to list roles")
		return
	}

	writeJSON(w, http.StatusOK, roles)
}

// callerUsername returns the authenticated caller's username for audit
// entries, or empty on unauthenticated routes.
func callerUsername(r *http.Request) string {
	if principal := principalFrom(r.Context()); principal != nil {
		return principal.User.Username
	}
	return ""
}
