// Package logging wraps log/slog for the SmartThings bridge.
//
// Every component logs key-value pairs through a shared *Logger; the
// service name and version travel as default attributes so bridge
// output stays attributable when aggregated with the rest of the Gray
// Logic stack.
//
// Format and level come from the logging section of config.yaml (JSON
// for aggregation, text for a terminal). Before config is loaded,
// Default() provides a JSON/info logger for the startup phase.
//
//	log := logging.New(cfg.Logging, version)
//	tunnelLog := log.With("component", "tunnel")
//	tunnelLog.Info("session opened", "url", publicURL)
//
// Never log the SmartThings token or the local API token. Log derived
// identifiers (hook id, subdomain) instead.
package logging
