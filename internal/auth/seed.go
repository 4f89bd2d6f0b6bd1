package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/halcyonlabs/authgate/internal/infrastructure/logging"
)

// seedPasswordBytes is the number of random bytes for the seed admin password.
const seedPasswordBytes = 16

// SeedAdmin bootstraps an empty database on first boot:
//   - creates the built-in permission catalogue (AllScopes)
//   - creates an "admin" role holding the admin wildcard permission
//   - creates an "admin" user with a random password, linked to the role
//
// The generated password is logged once — it must be changed immediately.
// Returns the generated password, or "" if users already exist.
func SeedAdmin(ctx context.Context, users UserRepository, rbac RBACRepository, logger *logging.Logger) (string, error) {
	count, err := users.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("checking user count: %w", err)
	}

	if count > 0 {
		logger.Info("users exist, skipping admin seed")
		return "", nil
	}

	if err := seedPermissions(ctx, rbac); err != nil {
		return "", err
	}

	role, err := seedAdminRole(ctx, rbac)
	if err != nil {
		return "", err
	}

	passwordBytes := make([]byte, seedPasswordBytes)
	if _, err := rand.Read(passwordBytes); err != nil { //nolint:govet // shadow: err re-declared in nested scope
		return "", fmt.Errorf("generating seed password: %w", err)
	}
	password := hex.EncodeToString(passwordBytes)

	hash, err := HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing seed password: %w", err)
	}

	admin := &User{
		Username:       "admin",
		Email:          "admin@localhost.local",
		FullName:       "System Administrator",
		HashedPassword: hash,
		IsActive:       true,
	}
	if err := users.Create(ctx, admin); err != nil {
		return "", fmt.Errorf("creating seed admin: %w", err)
	}

	if err := rbac.AssignRoleToUser(ctx, admin.ID, role.ID); err != nil {
		return "", fmt.Errorf("assigning admin role: %w", err)
	}

	logger.Warn("seed admin account created",
		"username", "admin",
		"password", password,
		"action_required", "change this password immediately",
	)

	return password, nil
}

// seedPermissions creates every built-in permission that doesn't already exist.
func seedPermissions(ctx context.Context, rbac RBACRepository) error {
	for _, name := range AllScopes {
		perm := &Permission{Name: name}
		if err := rbac.CreatePermission(ctx, perm); err != nil && !errors.Is(err, ErrPermissionExists) {
			return fmt.Errorf("seeding permission %s: %w", name, err)
		}
	}
	return nil
}

// seedAdminRole creates the admin role (if missing) and links the admin
// wildcard permission to it.
func seedAdminRole(ctx context.Context, rbac RBACRepository) (*Role, error) {
	role := &Role{Name: "admin", Description: "Full administrative access"}
	if err := rbac.CreateRole(ctx, role); err != nil {
		if !errors.Is(err, ErrRoleExists) {
			return nil, fmt.Errorf("creating admin role: %w", err)
		}
		existing, err := rbac.GetRoleByName(ctx, "admin")
		if err != nil {
			return nil, fmt.Errorf("looking up admin role: %w", err)
		}
		role = existing
	}

	perm, err := rbac.GetPermissionByName(ctx, ScopeAdmin)
	if err != nil {
		return nil, fmt.Errorf("looking up admin permission: %w", err)
	}

	if err := rbac.AssignPermissionToRole(ctx, role.ID, perm.ID); err != nil {
		return nil, fmt.Errorf("linking admin permission: %w", err)
	}

	return role, nil
}
