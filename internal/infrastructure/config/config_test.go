package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ValidConfig(t *testing.T) {
	// Create a temporary config file
	content := `
smartthings:
  token: "test-personal-access-token"
  location_id: "loc-001"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "0.0.0.0"
  port: 8181
  auth:
    token: "local-api-token-1234"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.SmartThings.Token != "test-personal-access-token" {
		t.Errorf("SmartThings.Token = %q, want %q", cfg.SmartThings.Token, "test-personal-access-token")
	}

	if cfg.SmartThings.LocationID != "loc-001" {
		t.Errorf("SmartThings.LocationID = %q, want %q", cfg.SmartThings.LocationID, "loc-001")
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	content := `
smartthings:
  token: "test-personal-access-token"
  location_id: "loc-001"
api:
  auth:
    token: "local-api-token-1234"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.SmartThings.BaseURL != "https://api.smartthings.com/v1" {
		t.Errorf("SmartThings.BaseURL = %q, want default", cfg.SmartThings.BaseURL)
	}

	if cfg.Reconcile.Interval != 30 {
		t.Errorf("Reconcile.Interval = %d, want 30", cfg.Reconcile.Interval)
	}

	if cfg.Webhook.PathPrefix != "/api/smartthingsce" {
		t.Errorf("Webhook.PathPrefix = %q, want default", cfg.Webhook.PathPrefix)
	}

	if cfg.Webhook.DedupWindow != 5 {
		t.Errorf("Webhook.DedupWindow = %d, want 5", cfg.Webhook.DedupWindow)
	}

	if !cfg.Tunnel.Enabled {
		t.Error("Tunnel.Enabled = false, want true by default")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
smartthings:
  token: ""
database:
  path: "/tmp/test.db"
api:
  port: 8181
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for empty smartthings.token, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	// validConfig returns a minimal configuration that passes validation.
	// Individual test cases mutate a copy to break one rule at a time.
	validConfig := func() *Config {
		cfg := defaultConfig()
		cfg.SmartThings.Token = "test-personal-access-token"
		cfg.SmartThings.LocationID = "loc-001"
		cfg.API.Auth.Token = "local-api-token-1234"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(_ *Config) {},
			wantErr: false,
		},
		{
			name:    "missing token",
			mutate:  func(c *Config) { c.SmartThings.Token = "" },
			wantErr: true,
		},
		{
			name:    "missing location",
			mutate:  func(c *Config) { c.SmartThings.LocationID = "" },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "invalid port low",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantErr: true,
		},
		{
			name:    "invalid port high",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "missing API auth token",
			mutate:  func(c *Config) { c.API.Auth.Token = "" },
			wantErr: true,
		},
		{
			name:    "API auth token too short",
			mutate:  func(c *Config) { c.API.Auth.Token = "short" },
			wantErr: true,
		},
		{
			name: "auth disabled allows empty token",
			mutate: func(c *Config) {
				c.API.Auth.Enabled = false
				c.API.Auth.Token = ""
			},
			wantErr: false,
		},
		{
			name:    "reconcile interval too small",
			mutate:  func(c *Config) { c.Reconcile.Interval = 1 },
			wantErr: true,
		},
		{
			name: "max backoff below initial",
			mutate: func(c *Config) {
				c.Tunnel.InitialBackoff = 10
				c.Tunnel.MaxBackoff = 5
			},
			wantErr: true,
		},
		{
			name: "tunnel disabled skips backoff checks",
			mutate: func(c *Config) {
				c.Tunnel.Enabled = false
				c.Tunnel.InitialBackoff = 0
			},
			wantErr: false,
		},
		{
			name:    "webhook prefix without slash",
			mutate:  func(c *Config) { c.Webhook.PathPrefix = "api/smartthingsce" },
			wantErr: true,
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}

	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}

	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	// Set environment variables
	t.Setenv("STBRIDGE_SMARTTHINGS_TOKEN", "env-token")
	t.Setenv("STBRIDGE_SMARTTHINGS_LOCATION_ID", "env-location")
	t.Setenv("STBRIDGE_TUNNEL_SUBDOMAIN", "abc123ef-0011aabb-stce")
	t.Setenv("STBRIDGE_DATABASE_PATH", "/custom/path.db")
	t.Setenv("STBRIDGE_MQTT_HOST", "mqtt.example.com")
	t.Setenv("STBRIDGE_MQTT_USERNAME", "testuser")
	t.Setenv("STBRIDGE_MQTT_PASSWORD", "testpass")
	t.Setenv("STBRIDGE_API_HOST", "192.168.1.1")
	t.Setenv("STBRIDGE_API_AUTH_TOKEN", "env-api-token-1234")
	t.Setenv("STBRIDGE_INFLUXDB_TOKEN", "secret-token")

	applyEnvOverrides(cfg)

	if cfg.SmartThings.Token != "env-token" {
		t.Errorf("SmartThings.Token = %q, want %q", cfg.SmartThings.Token, "env-token")
	}

	if cfg.SmartThings.LocationID != "env-location" {
		t.Errorf("SmartThings.LocationID = %q, want %q", cfg.SmartThings.LocationID, "env-location")
	}

	if cfg.Tunnel.Subdomain != "abc123ef-0011aabb-stce" {
		t.Errorf("Tunnel.Subdomain = %q, want %q", cfg.Tunnel.Subdomain, "abc123ef-0011aabb-stce")
	}

	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}

	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}

	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}

	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}

	if cfg.API.Host != "192.168.1.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "192.168.1.1")
	}

	if cfg.API.Auth.Token != "env-api-token-1234" {
		t.Errorf("API.Auth.Token = %q, want %q", cfg.API.Auth.Token, "env-api-token-1234")
	}

	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
}

func TestApplyEnvOverrides_TunnelEnabled(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("STBRIDGE_TUNNEL_ENABLED", "false")
	applyEnvOverrides(cfg)

	if cfg.Tunnel.Enabled {
		t.Error("Tunnel.Enabled = true, want false after override")
	}

	cfg.Tunnel.Enabled = true
	t.Setenv("STBRIDGE_TUNNEL_ENABLED", "not-a-bool")
	applyEnvOverrides(cfg)

	if !cfg.Tunnel.Enabled {
		t.Error("Tunnel.Enabled changed by unparseable override")
	}
}
