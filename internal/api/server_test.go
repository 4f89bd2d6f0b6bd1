package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/halcyonlabs/authgate/internal/audit"
	"github.com/halcyonlabs/authgate/internal/auth"
	"github.com/halcyonlabs/authgate/internal/infrastructure/config"
	"github.com/halcyonlabs/authgate/internal/infrastructure/logging"
)

const (
	testAccessKey  = "api-access-signing-key-for-tests!!"
	testRefreshKey = "api-refresh-signing-key-for-tests!"
)

// testServer bundles the server under test with direct repository access
// for fixtures and assertions.
type testServer struct {
	srv     *Server
	handler http.Handler
	db      *sql.DB
	users   auth.UserRepository
	rbac    auth.RBACRepository
	auditDB audit.Repository
}

// serverOption mutates the security config before the server is built.
type serverOption func(*config.SecurityConfig)

func withClosedRegistration() serverOption {
	return func(c *config.SecurityConfig) { c.Registration.Open = false }
}

func withClosedActivation() serverOption {
	return func(c *config.SecurityConfig) { c.Registration.OpenActivation = false }
}

// newTestServer creates a fully wired server over a temp SQLite database.
func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()

	f, err := os.CreateTemp("", "api-test-*.db")
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
		CREATE TABLE audit_logs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			occurred_at TEXT NOT NULL,
			event       TEXT NOT NULL,
			username    TEXT,
			remote_addr TEXT,
			outcome     TEXT NOT NULL,
			detail      TEXT
		);
	`
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("applying schema: %v", err)
	}

	secCfg := config.SecurityConfig{
		JWT: config.JWTConfig{
			AccessKey:       testAccessKey,
			RefreshKey:      testRefreshKey,
			AccessTokenTTL:  15,
			RefreshTokenTTL: 10080,
		},
		Registration: config.RegistrationConfig{Open: true, OpenActivation: true},
	}
	for _, opt := range opts {
		opt(&secCfg)
	}

	logger := logging.New(config.LoggingConfig{Level: "error", Format: "json", Output: "stderr"}, "test")

	users := auth.NewUserRepository(db)
	rbac := auth.NewRBACRepository(db)
	codec := auth.NewTokenCodec(secCfg.JWT)
	revocations := auth.NewMemoryRevocationStore(time.Minute)
	t.Cleanup(func() { revocations.Close() })

	svc := auth.NewService(users, rbac, codec, revocations, logger)
	guard := auth.NewGuard(codec, revocations, users)
	auditRepo := audit.NewSQLiteRepository(db)

	srv, err := New(Deps{
		Config:    config.APIConfig{Host: "127.0.0.1", Port: 0},
		Security:  secCfg,
		Logger:    logger,
		Auth:      svc,
		Guard:     guard,
		Users:     users,
		RBAC:      rbac,
		AuditRepo: auditRepo,
		Version:   "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	return &testServer{
		srv:     srv,
		handler: srv.buildRouter(),
		db:      db,
		users:   users,
		rbac:    rbac,
		auditDB: auditRepo,
	}
}

// do executes a request against the router and returns the recorder.
func (ts *testServer) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

// doJSON sends a JSON body.
func (ts *testServer) doJSON(t *testing.T, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshalling payload: %v", err)
		}
		body = strings.NewReader(string(data))
	}
	return ts.do(t, method, path, token, body, "application/json")
}

// signup registers a user through the API and fails the test on error.
func (ts *testServer) signup(t *testing.T, username, password string) {
	t.Helper()

	rec := ts.doJSON(t, http.MethodPost, "/api/v1/auth/signup", "", signupRequest{
		Username: username,
		Email:    username + "@example.com",
		FullName: username,
		Password: password,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup %s: status = %d, body = %s", username, rec.Code, rec.Body.String())
	}
}

// login exchanges credentials for a token pair through the API.
func (ts *testServer) login(t *testing.T, username, password string) *auth.TokenPair {
	t.Helper()

	form := url.Values{"username": {username}, "password": {password}}
	rec := ts.do(t, http.MethodPost, "/api/v1/auth/token", "",
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if rec.Code != http.StatusCreated {
		t.Fatalf("login %s: status = %d, body = %s", username, rec.Code, rec.Body.String())
	}

	var pair auth.TokenPair
	if err := json.Unmarshal(rec.Body.Bytes(), &pair); err != nil {
		t.Fatalf("decoding token pair: %v", err)
	}
	return &pair
}

// grantScope creates a role carrying the scope and assigns it to the user.
func (ts *testServer) grantScope(t *testing.T, username, scope string) {
	t.Helper()
	ctx := context.Background()

	user, err := ts.users.GetByUsername(ctx, username)
	if err != nil {
		t.Fatalf("looking up %s: %v", username, err)
	}

	perm, err := ts.rbac.GetPermissionByName(ctx, scope)
	if err != nil {
		perm = &auth.Permission{Name: scope}
		if err := ts.rbac.CreatePermission(ctx, perm); err != nil {
			t.Fatalf("creating permission %s: %v", scope, err)
		}
	}

	role, err := ts.rbac.GetRoleByName(ctx, "grant-"+scope)
	if err != nil {
		role = &auth.Role{Name: "grant-" + scope}
		if err := ts.rbac.CreateRole(ctx, role); err != nil {
			t.Fatalf("creating role: %v", err)
		}
	}

	if err := ts.rbac.AssignPermissionToRole(ctx, role.ID, perm.ID); err != nil {
		t.Fatalf("linking permission: %v", err)
	}
	if err := ts.rbac.AssignRoleToUser(ctx, user.ID, role.ID); err != nil {
		t.Fatalf("assigning role: %v", err)
	}
}

// adminToken registers a user, grants the admin scope, and logs in.
func (ts *testServer) adminToken(t *testing.T) string {
	t.Helper()

	ts.signup(t, "root", "root-password")
	ts.grantScope(t, "root", auth.ScopeAdmin)
	return ts.login(t, "root", "root-password").AccessToken
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/health", "", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
	if body["version"] != "test" {
		t.Errorf("version = %q, want test", body["version"])
	}
}

func TestServerNew_Validation(t *testing.T) {
	_, err := New(Deps{})
	if err == nil {
		t.Fatal("New() with empty deps should fail")
	}
}
