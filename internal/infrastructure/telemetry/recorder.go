package telemetry

import (
	"context"
	"time"

	"github.com/lumenlabs/lumen-core/internal/dispatch"
)

// outcomeWriter is the slice of Client the recorder needs.
// Narrowed for testability.
type outcomeWriter interface {
	WriteDispatchOutcome(unitID, transportKind, state, errorKind string, attempts int, latency time.Duration)
}

// Recorder feeds dispatch outcomes into InfluxDB. It implements
// dispatch.Observer.
//
// Writes are non-blocking and batched, so observing a result never
// slows the dispatcher down.
type Recorder struct {
	w outcomeWriter
}

// NewRecorder creates an observer that records dispatch outcomes
// through the given client.
func NewRecorder(client *Client) *Recorder {
	return &Recorder{w: client}
}

// ObserveResult writes a device's terminal outcome as a dispatch point.
func (r *Recorder) ObserveResult(_ context.Context, res dispatch.Result) {
	r.w.WriteDispatchOutcome(
		string(res.UnitID),
		string(res.Transport),
		string(res.State),
		string(res.Kind),
		res.Attempts,
		res.Latency,
	)
}
