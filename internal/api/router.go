package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/halcyonlabs/authgate/internal/auth"
)

// buildRouter constructs the HTTP route tree with all middleware and endpoints.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware (order matters: recovery outermost after request ID)
	r.Use(s.requestIDMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth)
		r.Get("/health", s.handleHealth)

		// Credential and token lifecycle
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", s.handleSignup)
			r.Post("/token", s.handleToken)
			r.Post("/refresh_token", s.handleRefreshToken)
			r.Post("/logout", s.handleLogout)

			// Requires a valid access token, no particular scope.
			r.With(s.requireScopes()).Get("/me", s.handleMe)
		})

		// RBAC administration
		r.Route("/core", func(r chi.Router) {
			r.Route("/roles", func(r chi.Router) {
				r.With(s.requireScopes(auth.ScopeRoleRead)).Get("/", s.handleListRoles)
				r.With(s.requireScopes(auth.ScopeRoleCreate)).Post("/", s.handleCreateRole)

				// Route literal /user/{userID} before the {roleID} wildcard.
				r.With(s.requireScopes(auth.ScopeRoleRead)).Get("/user/{userID}", s.handleRolesForUser)

				r.Route("/{roleID}", func(r chi.Router) {
					r.With(s.requireScopes(auth.ScopeRoleRead)).Get("/", s.handleGetRole)
					r.With(s.requireScopes(auth.ScopeRoleUpdate)).Put("/", s.handleUpdateRole)
					r.With(s.requireScopes(auth.ScopeRoleDelete)).Delete("/", s.handleDeleteRole)

					r.With(s.requireScopes(auth.ScopeRoleLink)).Post("/user/{userID}", s.handleAssignRole)
					r.With(s.requireScopes(auth.ScopeRoleLink)).Delete("/user/{userID}", s.handleUnassignRole)
				})
			})

			r.Route("/permissions", func(r chi.Router) {
				r.With(s.requireScopes(auth.ScopePermissionRead)).Get("/", s.handleListPermissions)
				r.With(s.requireScopes(auth.ScopePermissionCreate)).Post("/", s.handleCreatePermission)

				r.With(s.requireScopes(auth.ScopePermissionRead)).Get("/user/{userID}", s.handlePermissionsForUser)

				r.Route("/{permissionID}", func(r chi.Router) {
					r.With(s.requireScopes(auth.ScopePermissionRead)).Get("/", s.handleGetPermission)
					r.With(s.requireScopes(auth.ScopePermissionDelete)).Delete("/", s.handleDeletePermission)

					r.With(s.requireScopes(auth.ScopePermissionLink)).Post("/role/{roleID}", s.handleLinkPermission)
					r.With(s.requireScopes(auth.ScopePermissionLink)).Delete("/role/{roleID}", s.handleUnlinkPermission)
				})
			})

			// Audit trail is admin-only.
			r.With(s.requireScopes(auth.ScopeAdmin)).Get("/audit-logs", s.handleListAuditLogs)
		})

		// User administration
		r.Route("/users", func(r chi.Router) {
			r.With(s.requireScopes(auth.ScopeUserRead)).Get("/", s.handleListUsers)

			// Self-service password change: authentication only.
			r.With(s.requireScopes()).Put("/me/password", s.handleChangeMyPassword)

			r.Route("/{userID}", func(r chi.Router) {
				r.With(s.requireScopes(auth.ScopeUserRead)).Get("/", s.handleGetUser)
				r.With(s.requireScopes(auth.ScopeUserUpdate)).Patch("/", s.handleUpdateUser)
				r.With(s.requireScopes(auth.ScopeUserDelete)).Delete("/", s.handleDeleteUser)
			})
		})
	})

	return r
}

// handleHealth returns the service health status.
//
// GET /api/v1/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{
		"status":  "ok",
		"version": s.version,
	}

	if s.db != nil {
		if err := s.db.HealthCheck(r.Context()); err != nil {
			status["status"] = "degraded"
			status["database"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		status["database"] = "ok"
	}

	writeJSON(w, http.StatusOK, status)
}
