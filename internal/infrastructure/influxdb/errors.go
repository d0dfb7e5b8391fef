package influxdb

import "errors"

var (
	// ErrNotConnected indicates the client has been closed.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed indicates the initial ping failed.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrDisabled indicates InfluxDB export is disabled in config.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
