// Package influxdb provides InfluxDB connectivity for authgate.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, event writing, and health monitoring.
//
// # Purpose
//
// This package handles time-series storage for:
//   - Authentication events (logins, refreshes, logouts, failures)
//   - API request metrics (latency, status distribution)
//
// It is entirely optional: when influxdb.enabled is false in config.yaml
// the server runs without it and audit records go to SQLite alone.
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "authgate",
//	    Bucket: "auth_events",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteAuthEvent("login", "alice", "success")
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a callback.
// Connection and health check errors are returned directly.
//
// # Performance
//
// Writes are batched according to config.yaml settings (batch_size, flush_interval).
// An authentication service produces low event volume, so the defaults are generous.
package influxdb
