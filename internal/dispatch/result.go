package dispatch

import (
	"time"

	"github.com/lumenlabs/lumen-core/internal/device"
	"github.com/lumenlabs/lumen-core/internal/transport"
)

// State is a device's position in the per-device dispatch state machine.
type State string

const (
	// StatePending precedes the first attempt.
	StatePending State = "pending"

	// StateAttempting marks an attempt in flight.
	StateAttempting State = "attempting"

	// StateRetrying marks a failed attempt with retries remaining.
	StateRetrying State = "retrying"

	// StateSucceeded is terminal: a decoded response arrived.
	StateSucceeded State = "succeeded"

	// StateFailed is terminal: all attempts exhausted or a fatal error.
	StateFailed State = "failed"
)

// Result is the terminal outcome for one device in one dispatch call.
// Exactly one Result exists per requested device regardless of how many
// attempts or transport switches it took.
type Result struct {
	// UnitID identifies the device.
	UnitID device.UnitID

	// State is StateSucceeded or StateFailed.
	State State

	// Transport is the path that produced the outcome: the one that
	// succeeded, or the last one that failed. Empty if no attempt ran.
	Transport transport.Kind

	// Response is the decoded reply; nil unless State is StateSucceeded.
	Response *device.Response

	// Err is the terminal error; nil unless State is StateFailed.
	Err error

	// Kind classifies Err for transport-agnostic handling.
	Kind ErrorKind

	// Attempts counts every attempt across all transports.
	Attempts int

	// Latency is the time from the device's first attempt to its
	// terminal outcome.
	Latency time.Duration
}

// Succeeded reports whether the device reached StateSucceeded.
func (r Result) Succeeded() bool { return r.State == StateSucceeded }

// Results maps each requested device to its terminal outcome.
type Results map[device.UnitID]Result

// Succeeded returns the number of devices that reached StateSucceeded.
func (rs Results) Succeeded() int {
	n := 0
	for _, r := range rs {
		if r.Succeeded() {
			n++
		}
	}
	return n
}

// Failed returns the number of devices that reached StateFailed.
func (rs Results) Failed() int {
	return len(rs) - rs.Succeeded()
}
