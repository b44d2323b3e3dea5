package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/lumenlabs/lumen-core/internal/dispatch"
	"github.com/lumenlabs/lumen-core/internal/infrastructure/config"
	"github.com/lumenlabs/lumen-core/internal/transport"
)

// testConfig returns a telemetry configuration for a local dev InfluxDB.
func testConfig() config.TelemetryConfig {
	return config.TelemetryConfig{
		Enabled: true,
		URL:     "http://127.0.0.1:8086",
		Token:   "lumen-dev-token",
		Org:     "lumen",
		Bucket:  "metrics",
	}
}

// mockWriter captures dispatch outcome writes.
type mockWriter struct {
	unitIDs    []string
	transports []string
	states     []string
	kinds      []string
	attempts   []int
	latencies  []time.Duration
}

func (m *mockWriter) WriteDispatchOutcome(unitID, transportKind, state, errorKind string, attempts int, latency time.Duration) {
	m.unitIDs = append(m.unitIDs, unitID)
	m.transports = append(m.transports, transportKind)
	m.states = append(m.states, state)
	m.kinds = append(m.kinds, errorKind)
	m.attempts = append(m.attempts, attempts)
	m.latencies = append(m.latencies, latency)
}

func TestRecorderObserveResult(t *testing.T) {
	w := &mockWriter{}
	rec := &Recorder{w: w}

	rec.ObserveResult(context.Background(), dispatch.Result{
		UnitID:    "aabbcc001122",
		State:     dispatch.StateFailed,
		Transport: transport.KindCloud,
		Kind:      dispatch.KindTimeout,
		Attempts:  3,
		Latency:   640 * time.Millisecond,
	})

	if len(w.unitIDs) != 1 {
		t.Fatalf("wrote %d points, want 1", len(w.unitIDs))
	}
	if w.unitIDs[0] != "aabbcc001122" {
		t.Errorf("unit_id = %q, want aabbcc001122", w.unitIDs[0])
	}
	if w.transports[0] != "cloud" {
		t.Errorf("transport = %q, want cloud", w.transports[0])
	}
	if w.states[0] != "failed" {
		t.Errorf("state = %q, want failed", w.states[0])
	}
	if w.kinds[0] != "timeout" {
		t.Errorf("kind = %q, want timeout", w.kinds[0])
	}
	if w.attempts[0] != 3 {
		t.Errorf("attempts = %d, want 3", w.attempts[0])
	}
	if w.latencies[0] != 640*time.Millisecond {
		t.Errorf("latency = %v, want 640ms", w.latencies[0])
	}
}

func TestConnectDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := Connect(cfg)
	if err != ErrDisabled {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestWriteSkippedWhenDisconnected(t *testing.T) {
	c := &Client{}

	// Must not panic with a nil write API.
	c.WriteDispatchOutcome("aabbcc001122", "local", "succeeded", "", 1, time.Millisecond)
	c.WriteDiscoverySweep(0, time.Second)
	c.Flush()
}
