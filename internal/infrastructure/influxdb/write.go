package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteAttribute writes one numeric attribute observation to InfluxDB.
//
// This is the primary method for recording device telemetry: every
// numeric attribute change flowing through the directory (temperature,
// level, power, battery) can be recorded for trend queries. The write
// is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - deviceID: SmartThings device identifier
//   - component: Component the attribute belongs to (usually "main")
//   - capability: Capability that owns the attribute (e.g., "switchLevel")
//   - attribute: The attribute name (e.g., "level", "temperature")
//   - value: The numeric value to record
//   - source: How the observation arrived (event, poll, command)
//   - timestamp: The event's own timestamp, not the write time
//
// Example:
//
//	client.WriteAttribute(devID, "main", "temperatureMeasurement",
//	    "temperature", 21.5, "event", evtTime)
func (c *Client) WriteAttribute(deviceID, component, capability, attribute string, value float64, source string, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	point := write.NewPoint(
		"device_attributes",
		map[string]string{
			"device_id":  deviceID,
			"component":  component,
			"capability": capability,
			"attribute":  attribute,
			"source":     source,
		},
		map[string]interface{}{
			"value": value,
		},
		timestamp,
	)

	c.writeAPI.WritePoint(point)
}

// WriteBridgeStat writes one bridge-level counter or gauge.
//
// Used for operational telemetry: reconcile cycle counts, webhook event
// rates, dispatch failures.
//
// Parameters:
//   - name: The stat name (e.g., "events_applied", "sync_cycles")
//   - value: The current value
func (c *Client) WriteBridgeStat(name string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"bridge_stats",
		map[string]string{
			"stat": name,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("tunnel_sessions",
//	    map[string]string{"subdomain": sub},
//	    map[string]interface{}{"redials": 3})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed cloud events).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
