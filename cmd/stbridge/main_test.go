package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	originalEnv := os.Getenv("STBRIDGE_CONFIG")
	defer os.Setenv("STBRIDGE_CONFIG", originalEnv)

	os.Setenv("STBRIDGE_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingToken verifies run fails validation when no SmartThings
// token is configured.
func TestRun_MissingToken(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `
smartthings:
  token: ""
  location_id: "loc-1"

database:
  path: "` + filepath.Join(tmpDir, "test.db") + `"

logging:
  level: error
  format: text
  output: stdout
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("STBRIDGE_CONFIG")
	defer os.Setenv("STBRIDGE_CONFIG", originalEnv)
	os.Setenv("STBRIDGE_CONFIG", configPath)

	// The env override would mask the empty token in the file.
	originalToken := os.Getenv("STBRIDGE_SMARTTHINGS_TOKEN")
	defer os.Setenv("STBRIDGE_SMARTTHINGS_TOKEN", originalToken)
	os.Unsetenv("STBRIDGE_SMARTTHINGS_TOKEN")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail without a SmartThings token")
	}
	if !strings.Contains(err.Error(), "smartthings.token") {
		t.Errorf("run() error = %v, want mention of smartthings.token", err)
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	originalEnv := os.Getenv("STBRIDGE_CONFIG")
	defer os.Setenv("STBRIDGE_CONFIG", originalEnv)

	os.Unsetenv("STBRIDGE_CONFIG")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	originalEnv := os.Getenv("STBRIDGE_CONFIG")
	defer os.Setenv("STBRIDGE_CONFIG", originalEnv)

	expected := "/custom/path/config.yaml"
	os.Setenv("STBRIDGE_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}
