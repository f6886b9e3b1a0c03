package influxdb

import "errors"

// Sentinel errors for PWM telemetry.
var (
	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	// The service runs without telemetry; output history stays in SQLite.
	ErrDisabled = errors.New("influxdb: telemetry disabled")

	// ErrConnectionFailed is returned when the server cannot be reached or
	// reports itself unhealthy.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected is returned by HealthCheck after Close.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrWriteFailed wraps errors from the background batch writer. They
	// reach the caller only through the SetOnError callback.
	ErrWriteFailed = errors.New("influxdb: batch write failed")
)
