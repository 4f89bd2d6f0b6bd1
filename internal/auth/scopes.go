package auth

// Scope constants. Each matches a permission name in the database; the
// admin scope is a wildcard that satisfies any requirement.
const (
	ScopeAdmin = "admin"

	ScopeRoleRead   = "role:read"
	ScopeRoleCreate = "role:create"
	ScopeRoleUpdate = "role:update"
	ScopeRoleDelete = "role:delete"
	ScopeRoleLink   = "role:link"

	ScopePermissionRead   = "permission:read"
	ScopePermissionCreate = "permission:create"
	ScopePermissionDelete = "permission:delete"
	ScopePermissionLink   = "permission:link"

	ScopeUserRead   = "user:read"
	ScopeUserUpdate = "user:update"
	ScopeUserDelete = "user:delete"
)

// AllScopes lists every built-in scope. Used for seeding the permission
// catalogue on first boot.
var AllScopes = []string{
	ScopeAdmin,
	ScopeRoleRead, ScopeRoleCreate, ScopeRoleUpdate, ScopeRoleDelete, ScopeRoleLink,
	ScopePermissionRead, ScopePermissionCreate, ScopePermissionDelete, ScopePermissionLink,
	ScopeUserRead, ScopeUserUpdate, ScopeUserDelete,
}

// ScopesSatisfy reports whether the granted scopes intersect the required
// set: holding ANY required scope is enough, so a route can accept several
// alternative grants. The admin scope satisfies everything. An empty
// requirement is always satisfied (authentication without authorisation).
func ScopesSatisfy(granted, required []string) bool {
	if len(required) == 0 {
		return true
	}

	grantedSet := make(map[string]struct{}, len(granted))
	for _, s := range granted {
		if s == ScopeAdmin {
			return true
		}
		grantedSet[s] = struct{}{}
	}

	for _, req := range required {
		if _, ok := grantedSet[req]; ok {
			return true
		}
	}
	return false
}
