// Package influxdb streams numeric device telemetry to InfluxDB through
// the official influxdb-client-go v2 library.
//
// The SQLite attribute history remains the local audit trail; InfluxDB
// is the long-horizon store for trend queries and dashboards, and the
// bridge runs fine without it (telemetry is simply dropped when the
// feature is disabled or the server is unreachable).
//
// Writes go through the client's non-blocking batched write API, sized
// by batch_size and flush_interval from config.yaml, so a burst of
// webhook events never stalls the event path. Batch write errors
// surface through the SetOnError callback; Connect and HealthCheck
// return errors directly.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil { ... }
//	defer client.Close()
//	client.WriteAttribute(devID, "main", "switchLevel", "level", 40, "event", ts)
//
// All methods are safe for concurrent use.
package influxdb
