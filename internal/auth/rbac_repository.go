package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// RBACRepository defines the interface for role and permission persistence,
// including the user-role and role-permission link tables.
type RBACRepository interface {
	CreateRole(ctx context.Context, role *Role) error
	GetRoleByID(ctx context.Context, id int64) (*Role, error)
	GetRoleByName(ctx context.Context, name string) (*Role, error)
	ListRoles(ctx context.Context, limit, offset int) ([]Role, error)
	UpdateRole(ctx context.Context, role *Role) error
	DeleteRole(ctx context.Context, id int64) error

	CreatePermission(ctx context.Context, perm *Permission) error
	GetPermissionByID(ctx context.Context, id int64) (*Permission, error)
	GetPermissionByName(ctx context.Context, name string) (*Permission, error)
	ListPermissions(ctx context.Context, limit, offset int) ([]Permission, error)
	DeletePermission(ctx context.Context, id int64) error

	AssignRoleToUser(ctx context.Context, userID, roleID int64) error
	RemoveRoleFromUser(ctx context.Context, userID, roleID int64) error
	AssignPermissionToRole(ctx context.Context, roleID, permissionID int64) error
	RemovePermissionFromRole(ctx context.Context, roleID, permissionID int64) error

	RolesForUser(ctx context.Context, userID int64) ([]Role, error)
	PermissionsForRole(ctx context.Context, roleID int64) ([]Permission, error)
	EffectiveScopes(ctx context.Context, userID int64) ([]string, error)
}

// SQLiteRBACRepository implements RBACRepository using SQLite.
type SQLiteRBACRepository struct {
	db *sql.DB
}

// NewRBACRepository creates a new SQLite-backed RBAC repository.
func NewRBACRepository(db *sql.DB) *SQLiteRBACRepository {
	return &SQLiteRBACRepository{db: db}
}

// CreateRole inserts a new role and populates its generated ID.
func (r *SQLiteRBACRepository) CreateRole(ctx context.Context, role *Role) error {
	now := time.Now().UTC().Format(time.RFC3339)
	role.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled

	result, err := r.db.ExecContext(ctx,
		"INSERT INTO roles (name, description, created_at) VALUES (?, ?, ?)",
		role.Name, nullString(role.Description), now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrRoleExists
		}
		return fmt.Errorf("creating role: %w", err)
	}

	role.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading new role id: %w", err)
	}
	return nil
}

// GetRoleByID retrieves a role by ID.
func (r *SQLiteRBACRepository) GetRoleByID(ctx context.Context, id int64) (*Role, error) {
	return scanRoleFrom(r.db.QueryRowContext(ctx,
		"SELECT id, name, description, created_at FROM roles WHERE id = ?", id))
}

// GetRoleByName retrieves a role by its unique name.
func (r *SQLiteRBACRepository) GetRoleByName(ctx context.Context, name string) (*Role, error) {
	return scanRoleFrom(r.db.QueryRowContext(ctx,
		"SELECT id, name, description, created_at FROM roles WHERE name = ?", name))
}

// ListRoles returns roles ordered by ID with limit/offset pagination.
func (r *SQLiteRBACRepository) ListRoles(ctx context.Context, limit, offset int) ([]Role, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, description, created_at FROM roles ORDER BY id ASC LIMIT ? OFFSET ?",
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("listing roles: %w", err)
	}
	defer rows.Close()

	roles := []Role{}
	for rows.Next() {
		role, err := scanRoleFrom(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, *role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating roles: %w", err)
	}
	return roles, nil
}

// UpdateRole modifies a role's name and description.
func (r *SQLiteRBACRepository) UpdateRole(ctx context.Context, role *Role) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE roles SET name = ?, description = ? WHERE id = ?",
		role.Name, nullString(role.Description), role.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrRoleExists
		}
		return fmt.Errorf("updating role: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrRoleNotFound
	}
	return nil
}

// DeleteRole removes a role. User links and permission links cascade.
func (r *SQLiteRBACRepository) DeleteRole(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM roles WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting role: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrRoleNotFound
	}
	return nil
}

// CreatePermission inserts a new permission and populates its generated ID.
func (r *SQLiteRBACRepository) CreatePermission(ctx context.Context, perm *Permission) error {
	result, err := r.db.ExecContext(ctx,
		"INSERT INTO permissions (name, description) VALUES (?, ?)",
		perm.Name, nullString(perm.Description),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrPermissionExists
		}
		return fmt.Errorf("creating permission: %w", err)
	}

	perm.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading new permission id: %w", err)
	}
	return nil
}

// GetPermissionByID retrieves a permission by ID.
func (r *SQLiteRBACRepository) GetPermissionByID(ctx context.Context, id int64) (*Permission, error) {
	return scanPermissionFrom(r.db.QueryRowContext(ctx,
		"SELECT id, name, description FROM permissions WHERE id = ?", id))
}

// GetPermissionByName retrieves a permission by its unique name.
func (r *SQLiteRBACRepository) GetPermissionByName(ctx context.Context, name string) (*Permission, error) {
	return scanPermissionFrom(r.db.QueryRowContext(ctx,
		"SELECT id, name, description FROM permissions WHERE name = ?", name))
}

// ListPermissions returns permissions ordered by ID with limit/offset pagination.
func (r *SQLiteRBACRepository) ListPermissions(ctx context.Context, limit, offset int) ([]Permission, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, description FROM permissions ORDER BY id ASC LIMIT ? OFFSET ?",
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("listing permissions: %w", err)
	}
	defer rows.Close()

	perms := []Permission{}
	for rows.Next() {
		perm, err := scanPermissionFrom(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, *perm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating permissions: %w", err)
	}
	return perms, nil
}

// DeletePermission removes a permission. Role links cascade.
func (r *SQLiteRBACRepository) DeletePermission(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM permissions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting permission: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrPermissionNotFound
	}
	return nil
}

// AssignRoleToUser links a role to a user. Linking twice is a no-op.
func (r *SQLiteRBACRepository) AssignRoleToUser(ctx context.Context, userID, roleID int64) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO user_roles (user_id, role_id) VALUES (?, ?)",
		userID, roleID,
	)
	if err != nil {
		return fmt.Errorf("assigning role to user: %w", err)
	}
	return nil
}

// RemoveRoleFromUser unlinks a role from a user. Removing a link that
// doesn't exist is a no-op.
func (r *SQLiteRBACRepository) RemoveRoleFromUser(ctx context.Context, userID, roleID int64) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM user_roles WHERE user_id = ? AND role_id = ?",
		userID, roleID,
	)
	if err != nil {
		return fmt.Errorf("removing role from user: %w", err)
	}
	return nil
}

// AssignPermissionToRole links a permission to a role. Linking twice is a no-op.
func (r *SQLiteRBACRepository) AssignPermissionToRole(ctx context.Context, roleID, permissionID int64) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO role_permissions (role_id, permission_id) VALUES (?, ?)",
		roleID, permissionID,
	)
	if err != nil {
		return fmt.Errorf("assigning permission to role: %w", err)
	}
	return nil
}

// RemovePermissionFromRole unlinks a permission from a role.
func (r *SQLiteRBACRepository) RemovePermissionFromRole(ctx context.Context, roleID, permissionID int64) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM role_permissions WHERE role_id = ? AND permission_id = ?",
		roleID, permissionID,
	)
	if err != nil {
		return fmt.Errorf("removing permission from role: %w", err)
	}
	return nil
}

// RolesForUser returns the roles assigned to a user, ordered by role ID.
func (r *SQLiteRBACRepository) RolesForUser(ctx context.Context, userID int64) ([]Role, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT r.id, r.name, r.description, r.created_at
		 FROM roles r
		 JOIN user_roles ur ON ur.role_id = r.id
		 WHERE ur.user_id = ?
		 ORDER BY r.id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing roles for user: %w", err)
	}
	defer rows.Close()

	roles := []Role{}
	for rows.Next() {
		role, err := scanRoleFrom(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, *role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating roles for user: %w", err)
	}
	return roles, nil
}

// PermissionsForRole returns the permissions linked to a role, ordered by ID.
func (r *SQLiteRBACRepository) PermissionsForRole(ctx context.Context, roleID int64) ([]Permission, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.name, p.description
		 FROM permissions p
		 JOIN role_permissions rp ON rp.permission_id = p.id
		 WHERE rp.role_id = ?
		 ORDER BY p.id ASC`,
		roleID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing permissions for role: %w", err)
	}
	defer rows.Close()

	perms := []Permission{}
	for rows.Next() {
		perm, err := scanPermissionFrom(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, *perm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating permissions for role: %w", err)
	}
	return perms, nil
}

// EffectiveScopes returns the union of permission names granted to a user
// through all of their roles, sorted alphabetically.
func (r *SQLiteRBACRepository) EffectiveScopes(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT p.name
		 FROM permissions p
		 JOIN role_permissions rp ON rp.permission_id = p.id
		 JOIN user_roles ur ON ur.role_id = rp.role_id
		 WHERE ur.user_id = ?
		 ORDER BY p.name ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("resolving effective scopes: %w", err)
	}
	defer rows.Close()

	scopes := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning scope: %w", err)
		}
		scopes = append(scopes, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating scopes: %w", err)
	}
	return scopes, nil
}

// scanRoleFrom scans a role from any scanner (Row or Rows).
func scanRoleFrom(s scanner) (*Role, error) {
	var role Role
	var description sql.NullString
	var createdAt string

	if err := s.Scan(&role.ID, &role.Name, &description, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("scanning role: %w", err)
	}

	if description.Valid {
		role.Description = description.String
	}
	role.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled

	return &role, nil
}

// scanPermissionFrom scans a permission from any scanner (Row or Rows).
func scanPermissionFrom(s scanner) (*Permission, error) {
	var perm Permission
	var description sql.NullString

	if err := s.Scan(&perm.ID, &perm.Name, &description); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPermissionNotFound
		}
		return nil, fmt.Errorf("scanning permission: %w", err)
	}

	if description.Valid {
		perm.Description = description.String
	}
	return &perm, nil
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
