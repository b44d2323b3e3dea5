package dispatch

import "context"

// Observer receives each terminal Result as it is recorded. Observers run
// on the device's worker goroutine after its outcome is final; slow
// observers delay only their own device's completion.
//
// The MQTT outcome publisher and the telemetry writer implement this.
type Observer interface {
	ObserveResult(ctx context.Context, res Result)
}
