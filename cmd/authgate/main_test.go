package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	originalEnv := os.Getenv("AUTHGATE_CONFIG")
	defer os.Setenv("AUTHGATE_CONFIG", originalEnv)

	os.Setenv("AUTHGATE_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingSigningKeys verifies run refuses to start without JWT keys.
func TestRun_MissingSigningKeys(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `
database:
  path: "` + filepath.Join(tmpDir, "test.db") + `"
  wal_mode: true
  busy_timeout: 5

logging:
  level: error
  format: json
  output: stderr

api:
  host: "127.0.0.1"
  port: 8080
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("AUTHGATE_CONFIG")
	defer os.Setenv("AUTHGATE_CONFIG", originalEnv)
	os.Setenv("AUTHGATE_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail without signing keys")
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	originalEnv := os.Getenv("AUTHGATE_CONFIG")
	defer os.Setenv("AUTHGATE_CONFIG", originalEnv)

	os.Unsetenv("AUTHGATE_CONFIG")

	path := getConfigPath()
	if path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	originalEnv := os.Getenv("AUTHGATE_CONFIG")
	defer os.Setenv("AUTHGATE_CONFIG", originalEnv)

	expected := "/custom/path/config.yaml"
	os.Setenv("AUTHGATE_CONFIG", expected)

	path := getConfigPath()
	if path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

// TestRun_SuccessfulStartupAndShutdown boots the full service against a
// temp database, then cancels the context to drive a clean shutdown.
func TestRun_SuccessfulStartupAndShutdown(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")
	dbPath := filepath.Join(tmpDir, "test.db")

	configContent := `
database:
  path: "` + dbPath + `"
  wal_mode: true
  busy_timeout: 5

redis:
  enabled: false

influxdb:
  enabled: false

logging:
  level: error
  format: json
  output: stderr

api:
  host: "127.0.0.1"
  port: 18973

security:
  jwt:
    access_key: "startup-test-access-key-32-chars!!"
    refresh_key: "startup-test-refresh-key-32-chars!"
    access_token_ttl: 15
    refresh_token_ttl: 10080
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("AUTHGATE_CONFIG")
	defer os.Setenv("AUTHGATE_CONFIG", originalEnv)
	os.Setenv("AUTHGATE_CONFIG", configPath)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- run(ctx) }()

	// Give startup a moment, then signal shutdown.
	time.Sleep(500 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run() error = %v, want clean shutdown", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run() did not shut down within 10s")
	}
}
