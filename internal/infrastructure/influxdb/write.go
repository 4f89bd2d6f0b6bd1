package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteAuthEvent records an authentication event.
//
// This is the primary method for recording login, refresh, and logout
// activity. The write is non-blocking; data is batched and sent
// asynchronously.
//
// Parameters:
//   - event: The event name (e.g., "login", "token_refresh", "logout")
//   - username: The subject of the event, or "" when unknown
//   - outcome: "success" or "failure"
//
// Example:
//
//	client.WriteAuthEvent("login", "alice", "success")
//	client.WriteAuthEvent("login", "mallory", "failure")
func (c *Client) WriteAuthEvent(event, username, outcome string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"auth_events",
		map[string]string{
			"event":   event,
			"outcome": outcome,
		},
		map[string]interface{}{
			"username": username,
			"count":    1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteRequestMetric records an API request measurement.
//
// Used for tracking request latency and status distribution per route.
//
// Parameters:
//   - route: The chi route pattern (e.g., "/api/v1/auth/token")
//   - status: HTTP status code of the response
//   - durationMS: Request duration in milliseconds
func (c *Client) WriteRequestMetric(route string, status int, durationMS float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"api_requests",
		map[string]string{
			"route": route,
		},
		map[string]interface{}{
			"status":      status,
			"duration_ms": durationMS,
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
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "auth-01"},
//	    map[string]interface{}{"goroutines": 42, "memory_mb": 128})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., replayed audit data).
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
