package telemetry

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteDispatchOutcome records one device's terminal dispatch outcome.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Tags are low-cardinality dimensions for querying; the measured values
// go in fields.
//
// Parameters:
//   - unitID: Normalised device identifier
//   - transportKind: "local" or "cloud" (empty if no attempt ran)
//   - state: "succeeded" or "failed"
//   - errorKind: Classification of the failure, empty on success
//   - attempts: Total attempts across all transports
//   - latency: Time from first attempt to terminal outcome
func (c *Client) WriteDispatchOutcome(unitID, transportKind, state, errorKind string, attempts int, latency time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"dispatch",
		map[string]string{
			"unit_id":   unitID,
			"transport": transportKind,
			"state":     state,
			"kind":      errorKind,
		},
		map[string]interface{}{
			"latency_ms": latency.Milliseconds(),
			"attempts":   attempts,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteDiscoverySweep records the result of a local discovery sweep.
//
// Parameters:
//   - found: Number of distinct devices that replied
//   - window: The configured reply-collection window
func (c *Client) WriteDiscoverySweep(found int, window time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"discovery",
		map[string]string{},
		map[string]interface{}{
			"found":     found,
			"window_ms": window.Milliseconds(),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
