// Gray Logic SmartThings Bridge
//
// This is the main entry point for the SmartThings cloud bridge. The
// bridge mirrors a SmartThings location into a local device directory,
// ingests cloud events over a localtunnel-exposed webhook, reconciles by
// polling, dispatches commands, and serves the result over REST,
// WebSocket and MQTT.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/gray-logic-smartthings/migrations"

	"github.com/nerrad567/gray-logic-smartthings/internal/api"
	"github.com/nerrad567/gray-logic-smartthings/internal/bridge"
	"github.com/nerrad567/gray-logic-smartthings/internal/device"
	"github.com/nerrad567/gray-logic-smartthings/internal/dispatch"
	"github.com/nerrad567/gray-logic-smartthings/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-smartthings/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-smartthings/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-smartthings/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-smartthings/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-smartthings/internal/reconcile"
	"github.com/nerrad567/gray-logic-smartthings/internal/smartthings"
	"github.com/nerrad567/gray-logic-smartthings/internal/subscription"
	"github.com/nerrad567/gray-logic-smartthings/internal/tunnel"
	"github.com/nerrad567/gray-logic-smartthings/internal/webhook"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// telemetryBuffer is the directory subscription buffer for the InfluxDB
// telemetry relay.
const telemetryBuffer = 256

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // Linear wiring of every subsystem
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting SmartThings bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Load (or mint) the bridge identity: hook id, app id, tunnel subdomain
	identity, err := bridge.NewIdentityStore(db.DB).Load(ctx)
	if err != nil {
		return fmt.Errorf("loading bridge identity: %w", err)
	}
	log.Info("bridge identity loaded",
		"hook_id", identity.HookID,
		"subdomain", identity.TunnelSubdomain,
	)

	// Initialise the device directory with persisted shapes
	shapeRepo := device.NewSQLiteShapeRepository(db.DB)
	history := device.NewSQLiteHistoryRecorder(db.DB)
	directory := device.NewDirectory(shapeRepo, history)
	directory.SetLogger(log)
	defer directory.Close()

	if rehydrateErr := directory.Rehydrate(ctx); rehydrateErr != nil {
		return fmt.Errorf("rehydrating device directory: %w", rehydrateErr)
	}
	log.Info("device directory initialised", "devices", directory.Count())

	// SmartThings API client; a location list both validates the token
	// and resolves the location when config leaves it empty
	st := smartthings.New(cfg.SmartThings)
	locationID, err := resolveLocation(ctx, st, cfg.SmartThings.LocationID, log)
	if err != nil {
		return err
	}

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
		mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		// Relay numeric attribute changes into the time-series store
		go relayTelemetry(ctx, directory, influxClient)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Webhook ingestor: the single entry point for cloud events
	ingestor, err := webhook.New(cfg.Webhook, identity.HookID, directory)
	if err != nil {
		return fmt.Errorf("creating webhook ingestor: %w", err)
	}
	ingestor.SetLogger(log)
	defer ingestor.Close()

	// Reconciler and dispatcher
	reconciler, err := reconcile.New(reconcile.Options{
		Cloud:      st,
		Directory:  directory,
		Config:     cfg.Reconcile,
		LocationID: locationID,
		Logger:     log,
	})
	if err != nil {
		return fmt.Errorf("creating reconciler: %w", err)
	}

	dispatcher, err := dispatch.New(dispatch.Options{
		Cloud:     st,
		Directory: directory,
		Config:    cfg.Dispatch,
		Logger:    log,
	})
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}

	// Tunnel and cloud subscriptions (push mode)
	bridgeOpts := bridge.Options{
		Config:     cfg,
		Identity:   identity,
		Reconciler: reconciler,
		Dispatcher: dispatcher,
		Changes:    directory,
		Logger:     log,
	}
	if cfg.Tunnel.Enabled {
		subdomain := cfg.Tunnel.Subdomain
		if subdomain == "" {
			subdomain = identity.TunnelSubdomain
		}
		tunnelMgr, tunnelErr := tunnel.New(tunnel.Options{
			Config:    cfg.Tunnel,
			Subdomain: subdomain,
			Handler:   ingestor.Handler(),
			Logger:    log,
		})
		if tunnelErr != nil {
			return fmt.Errorf("creating tunnel manager: %w", tunnelErr)
		}

		subs, subsErr := subscription.New(subscription.Options{
			Cloud:         st,
			Devices:       directory,
			AppID:         identity.AppID,
			LocationID:    locationID,
			RenewInterval: cfg.Subscription.RenewIntervalDuration(),
			Logger:        log,
		})
		if subsErr != nil {
			return fmt.Errorf("creating subscription manager: %w", subsErr)
		}

		bridgeOpts.Tunnel = tunnelMgr
		bridgeOpts.Subs = subs
	} else {
		log.Info("tunnel disabled, running poll-only")
	}
	if mqttClient != nil {
		bridgeOpts.Bus = mqttClient
	}

	// Bridge coordinator owns the moving parts
	br, err := bridge.New(bridgeOpts)
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}
	if startErr := br.Start(ctx); startErr != nil {
		return fmt.Errorf("starting bridge: %w", startErr)
	}
	defer br.Stop()

	// Local API server (REST + WebSocket + webhook mount)
	if cfg.API.Enabled {
		server, apiErr := api.New(api.Deps{
			Config:        cfg.API,
			WS:            cfg.WebSocket,
			Logger:        log,
			Directory:     directory,
			History:       history,
			Dispatcher:    dispatcher,
			Bridge:        br,
			Catalog:       reconciler,
			Webhook:       ingestor,
			WebhookPrefix: cfg.Webhook.PathPrefix,
			Version:       version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
		log.Info("API server started", "address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))
	} else {
		log.Info("API server disabled")
	}

	// Verify infrastructure connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls unwind in reverse order:
	// API server, bridge (subscriptions then tunnel), InfluxDB, MQTT,
	// directory, database.

	log.Info("SmartThings bridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses STBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("STBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// resolveLocation validates the cloud token and confirms the configured
// location exists in the account. A bad token fails here rather than on
// the first reconcile cycle.
func resolveLocation(ctx context.Context, st *smartthings.Client, configured string, log *logging.Logger) (string, error) {
	locations, err := st.ListLocations(ctx)
	if err != nil {
		return "", fmt.Errorf("validating SmartThings token: %w", err)
	}

	for _, loc := range locations {
		if loc.LocationID == configured {
			log.Info("location resolved", "location_id", loc.LocationID, "name", loc.Name)
			return configured, nil
		}
	}
	return "", fmt.Errorf("configured location %q not found in account", configured)
}

// relayTelemetry forwards numeric attribute changes to InfluxDB until
// the context is cancelled. Non-numeric values (strings, maps) stay in
// SQLite history only.
func relayTelemetry(ctx context.Context, directory *device.Directory, influx *influxdb.Client) {
	ch, unsubscribe := directory.Subscribe(telemetryBuffer)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-ch:
			if !ok {
				return
			}

			var value float64
			switch v := change.Value.Value.(type) {
			case float64:
				value = v
			case int:
				value = float64(v)
			case bool:
				if v {
					value = 1
				}
			default:
				continue
			}

			influx.WriteAttribute(
				change.DeviceID,
				change.Component,
				string(change.Capability),
				change.Attribute,
				value,
				string(change.Value.Source),
				change.Value.Timestamp,
			)
		}
	}
}

// healthCheck verifies all infrastructure connections are healthy.
// Optional components (MQTT, InfluxDB) are skipped when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
