package auth

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/halcyonlabs/authgate/internal/infrastructure/config"
	"github.com/halcyonlabs/authgate/internal/infrastructure/logging"
)

// Two distinct signing keys meeting the 32-character minimum.
const (
	testAccessKey  = "access-signing-key-for-tests-32ch!"
	testRefreshKey = "refresh-signing-key-for-tests-32c!"
)

// testDB creates a temporary SQLite database with the auth schema applied.
// The database file is cleaned up when the test completes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	// Use a temp file so WAL mode works (in-memory doesn't support it)
	f, err := os.CreateTemp("", "auth-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schemaSQL := `
		CREATE TABLE users (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			username        TEXT NOT NULL UNIQUE,
			email           TEXT NOT NULL UNIQUE,
			full_name       TEXT,
			hashed_password TEXT NOT NULL,
			is_active       INTEGER NOT NULL DEFAULT 1,
			created_at      TEXT NOT NULL,
			updated_at      TEXT NOT NULL
		);

		CREATE TABLE roles (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			name        TEXT NOT NULL UNIQUE,
			description TEXT,
			created_at  TEXT NOT NULL
		);

		CREATE TABLE permissions (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			name        TEXT NOT NULL UNIQUE,
			description TEXT
		);

		CREATE TABLE user_roles (
			user_id INTEGER NOT NULL REFERENCES users (id) ON DELETE CASCADE,
			role_id INTEGER NOT NULL REFERENCES roles (id) ON DELETE CASCADE,
			PRIMARY KEY (user_id, role_id)
		);

		CREATE TABLE role_permissions (
			role_id       INTEGER NOT NULL REFERENCES roles (id) ON DELETE CASCADE,
			permission_id INTEGER NOT NULL REFERENCES permissions (id) ON DELETE CASCADE,
			PRIMARY KEY (role_id, permission_id)
		);
	`
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("applying auth schema: %v", err)
	}

	return db
}

// benchJWTConfig returns the JWT configuration shared by tests and benchmarks.
func benchJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		AccessKey:       testAccessKey,
		RefreshKey:      testRefreshKey,
		AccessTokenTTL:  15,
		RefreshTokenTTL: 10080,
	}
}

// testCodec creates a codec with short but non-trivial TTLs.
func testCodec(t *testing.T) *TokenCodec {
	t.Helper()
	return NewTokenCodec(benchJWTConfig())
}

// testLogger returns a quiet logger for service construction.
func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "json", Output: "stderr"}, "test")
}

// seedTestUser inserts a user and returns it.
func seedTestUser(t *testing.T, db *sql.DB, username string) *User {
	t.Helper()

	hash, err := HashPassword("test-password")
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}

	repo := NewUserRepository(db)
	user := &User{
		Username:       username,
		Email:          username + "@example.com",
		FullName:       username,
		HashedPassword: hash,
		IsActive:       true,
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("creating test user %s: %v", username, err)
	}
	return user
}

// grantScope creates (or reuses) a role named after the scope, links the
// permission, and assigns the role to the user.
func grantScope(t *testing.T, db *sql.DB, userID int64, scope string) {
	t.Helper()

	rbac := NewRBACRepository(db)
	ctx := context.Background()

	perm, err := rbac.GetPermissionByName(ctx, scope)
	if err != nil {
		perm = &Permission{Name: scope}
		if err := rbac.CreatePermission(ctx, perm); err != nil {
			t.Fatalf("creating permission %s: %v", scope, err)
		}
	}

	role, err := rbac.GetRoleByName(ctx, "grant-"+scope)
	if err != nil {
		role = &Role{Name: "grant-" + scope}
		if err := rbac.CreateRole(ctx, role); err != nil {
			t.Fatalf("creating role for %s: %v", scope, err)
		}
	}

	if err := rbac.AssignPermissionToRole(ctx, role.ID, perm.ID); err != nil {
		t.Fatalf("linking permission: %v", err)
	}
	if err := rbac.AssignRoleToUser(ctx, userID, role.ID); err != nil {
		t.Fatalf("assigning role: %v", err)
	}
}
