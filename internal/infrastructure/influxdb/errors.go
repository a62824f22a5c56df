package influxdb

import "errors"

var (
	// ErrDisabled is returned by Connect when the influxdb section of
	// config.yaml has enabled: false. Telemetry is optional; callers
	// treat this as "skip wiring", not a failure.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrConnectionFailed wraps a failed ping at Connect time.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected is returned by HealthCheck after Close or a lost
	// connection. Writes never return it; they silently no-op.
	ErrNotConnected = errors.New("influxdb: not connected")
)
