package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the SmartThings bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	SmartThings  SmartThingsConfig  `yaml:"smartthings"`
	Tunnel       TunnelConfig       `yaml:"tunnel"`
	Webhook      WebhookConfig      `yaml:"webhook"`
	Subscription SubscriptionConfig `yaml:"subscription"`
	Reconcile    ReconcileConfig    `yaml:"reconcile"`
	Dispatch     DispatchConfig     `yaml:"dispatch"`
	API          APIConfig          `yaml:"api"`
	WebSocket    WebSocketConfig    `yaml:"websocket"`
	MQTT         MQTTConfig         `yaml:"mqtt"`
	Database     DatabaseConfig     `yaml:"database"`
	InfluxDB     InfluxDBConfig     `yaml:"influxdb"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// SubscriptionConfig contains cloud event-subscription settings.
type SubscriptionConfig struct {
	// RenewInterval is how often the subscription set is re-registered,
	// in seconds. The cloud does not announce an expiry, so the bridge
	// renews well ahead of the assumed validity window.
	RenewInterval int `yaml:"renew_interval"`
}

// SmartThingsConfig contains cloud account and API client settings.
type SmartThingsConfig struct {
	// Token is the personal access token used as the bearer credential.
	// Always override via STBRIDGE_SMARTTHINGS_TOKEN in production.
	Token string `yaml:"token"`

	// LocationID scopes device, room and scene queries to one location.
	LocationID string `yaml:"location_id"`

	// BaseURL is the API root. Only changed for testing.
	BaseURL string `yaml:"base_url"`

	// Timeout is the per-request timeout in seconds.
	Timeout int `yaml:"timeout"`

	// RequestsPerMinute caps outbound API calls client-side, keeping the
	// bridge clear of the cloud's own rate limiter during large polls.
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// TunnelConfig contains settings for the inbound webhook tunnel.
type TunnelConfig struct {
	// Enabled turns the tunnel (and with it push events) on or off.
	// When false the bridge runs in poll-only mode.
	Enabled bool `yaml:"enabled"`

	// BaseURL is the tunnel service endpoint.
	BaseURL string `yaml:"base_url"`

	// Subdomain pins the public hostname. Empty means a stable subdomain
	// is generated on first run and persisted in the database.
	Subdomain string `yaml:"subdomain"`

	// MaxConnections limits concurrent tunnelled connections.
	MaxConnections int `yaml:"max_connections"`

	// InitialBackoff is the first reconnect delay in seconds.
	InitialBackoff int `yaml:"initial_backoff"`

	// MaxBackoff caps the reconnect delay in seconds.
	MaxBackoff int `yaml:"max_backoff"`

	// StartAttempts is how many dial attempts Start makes before giving
	// up and leaving recovery to the background supervisor.
	StartAttempts int `yaml:"start_attempts"`
}

// WebhookConfig contains event ingestion settings.
type WebhookConfig struct {
	// PathPrefix is the route prefix the cloud posts events to.
	// The full path is {prefix}/{hook_id}.
	PathPrefix string `yaml:"path_prefix"`

	// DedupWindow is the duplicate-event suppression window in seconds.
	DedupWindow int `yaml:"dedup_window"`

	// MaxBodySize is the largest accepted payload in bytes.
	MaxBodySize int `yaml:"max_body_size"`
}

// ReconcileConfig contains periodic full-poll settings.
type ReconcileConfig struct {
	// Interval between reconciliation cycles in seconds.
	Interval int `yaml:"interval"`

	// DeviceTimeout is the per-device status fetch timeout in seconds.
	DeviceTimeout int `yaml:"device_timeout"`

	// FetchHealth enables the per-device health endpoint lookup when a
	// status fetch fails, distinguishing offline devices from stale ones.
	FetchHealth bool `yaml:"fetch_health"`
}

// DispatchConfig contains command dispatch settings.
type DispatchConfig struct {
	// CommandTimeout is the per-command cloud call timeout in seconds,
	// independent of the webhook path.
	CommandTimeout int `yaml:"command_timeout"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Auth     APIAuthConfig    `yaml:"auth"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APIAuthConfig contains local API authentication settings.
type APIAuthConfig struct {
	// Enabled requires a bearer token on all non-webhook routes.
	Enabled bool `yaml:"enabled"`

	// Token is the pre-shared bearer token for the local API.
	// Always override via STBRIDGE_API_AUTH_TOKEN in production.
	Token string `yaml:"token"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: STBRIDGE_SECTION_KEY
// For example: STBRIDGE_SMARTTHINGS_TOKEN, STBRIDGE_API_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		SmartThings: SmartThingsConfig{
			BaseURL:           "https://api.smartthings.com/v1",
			Timeout:           30,
			RequestsPerMinute: 120,
		},
		Tunnel: TunnelConfig{
			Enabled:        true,
			BaseURL:        "https://loca.lt",
			MaxConnections: 4,
			InitialBackoff: 1,
			MaxBackoff:     60,
			StartAttempts:  3,
		},
		Webhook: WebhookConfig{
			PathPrefix:  "/api/smartthingsce",
			DedupWindow: 5,
			MaxBodySize: 1 << 20,
		},
		Subscription: SubscriptionConfig{
			RenewInterval: 21600,
		},
		Reconcile: ReconcileConfig{
			Interval:      30,
			DeviceTimeout: 10,
			FetchHealth:   true,
		},
		Dispatch: DispatchConfig{
			CommandTimeout: 15,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8181,
			Auth: APIAuthConfig{
				Enabled: true,
			},
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		MQTT: MQTTConfig{
			Enabled: false,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-smartthings",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/smartthings.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: STBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// SmartThings account
	if v := os.Getenv("STBRIDGE_SMARTTHINGS_TOKEN"); v != "" {
		cfg.SmartThings.Token = v
	}
	if v := os.Getenv("STBRIDGE_SMARTTHINGS_LOCATION_ID"); v != "" {
		cfg.SmartThings.LocationID = v
	}

	// Tunnel
	if v := os.Getenv("STBRIDGE_TUNNEL_SUBDOMAIN"); v != "" {
		cfg.Tunnel.Subdomain = v
	}
	if v := os.Getenv("STBRIDGE_TUNNEL_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Tunnel.Enabled = enabled
		}
	}

	// Database
	if v := os.Getenv("STBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("STBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("STBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("STBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("STBRIDGE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("STBRIDGE_API_AUTH_TOKEN"); v != "" {
		cfg.API.Auth.Token = v
	}

	// InfluxDB
	if v := os.Getenv("STBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// SmartThings validation - the token is the account credential
	if c.SmartThings.Token == "" {
		errs = append(errs, "smartthings.token is required (set STBRIDGE_SMARTTHINGS_TOKEN environment variable)")
	}
	if c.SmartThings.LocationID == "" {
		errs = append(errs, "smartthings.location_id is required")
	}
	if c.SmartThings.Timeout < 1 {
		errs = append(errs, "smartthings.timeout must be at least 1 second")
	}
	if c.SmartThings.RequestsPerMinute < 1 {
		errs = append(errs, "smartthings.requests_per_minute must be at least 1")
	}

	// Tunnel validation
	if c.Tunnel.Enabled {
		if c.Tunnel.InitialBackoff < 1 {
			errs = append(errs, "tunnel.initial_backoff must be at least 1 second")
		}
		if c.Tunnel.MaxBackoff < c.Tunnel.InitialBackoff {
			errs = append(errs, "tunnel.max_backoff must not be less than tunnel.initial_backoff")
		}
		if c.Tunnel.StartAttempts < 1 {
			errs = append(errs, "tunnel.start_attempts must be at least 1")
		}
	}

	// Webhook validation
	if !strings.HasPrefix(c.Webhook.PathPrefix, "/") {
		errs = append(errs, "webhook.path_prefix must start with /")
	}
	if c.Webhook.DedupWindow < 0 {
		errs = append(errs, "webhook.dedup_window must not be negative")
	}

	// Subscription validation
	if c.Subscription.RenewInterval < 60 {
		errs = append(errs, "subscription.renew_interval must be at least 60 seconds")
	}

	// Reconcile validation - a floor keeps a misconfigured bridge from
	// hammering the cloud API
	if c.Reconcile.Interval < 5 {
		errs = append(errs, "reconcile.interval must be at least 5 seconds")
	}
	if c.Reconcile.DeviceTimeout < 1 {
		errs = append(errs, "reconcile.device_timeout must be at least 1 second")
	}

	// Dispatch validation
	if c.Dispatch.CommandTimeout < 1 {
		errs = append(errs, "dispatch.command_timeout must be at least 1 second")
	}

	// API validation
	if c.API.Enabled {
		if c.API.Port < 1 || c.API.Port > 65535 {
			errs = append(errs, "api.port must be between 1 and 65535")
		}

		// The API exposes the command surface, so a weak local token
		// would let anyone on the network actuate physical devices.
		const minAuthTokenLength = 16
		if c.API.Auth.Enabled {
			if c.API.Auth.Token == "" {
				errs = append(errs, "api.auth.token is required (set STBRIDGE_API_AUTH_TOKEN environment variable)")
			} else if len(c.API.Auth.Token) < minAuthTokenLength {
				errs = append(errs, "api.auth.token must be at least 16 characters")
			}
		}
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// RequestTimeout returns the per-request cloud API timeout as a Duration.
func (c SmartThingsConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// IntervalDuration returns the reconciliation interval as a Duration.
func (c ReconcileConfig) IntervalDuration() time.Duration {
	return time.Duration(c.Interval) * time.Second
}

// DeviceTimeoutDuration returns the per-device fetch timeout as a Duration.
func (c ReconcileConfig) DeviceTimeoutDuration() time.Duration {
	return time.Duration(c.DeviceTimeout) * time.Second
}

// CommandTimeoutDuration returns the command timeout as a Duration.
func (c DispatchConfig) CommandTimeoutDuration() time.Duration {
	return time.Duration(c.CommandTimeout) * time.Second
}

// RenewIntervalDuration returns the subscription renew interval as a Duration.
func (c SubscriptionConfig) RenewIntervalDuration() time.Duration {
	return time.Duration(c.RenewInterval) * time.Second
}

// DedupWindowDuration returns the dedup window as a Duration.
func (c WebhookConfig) DedupWindowDuration() time.Duration {
	return time.Duration(c.DedupWindow) * time.Second
}
