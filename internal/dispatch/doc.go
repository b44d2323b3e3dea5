// Package dispatch drives commands to sets of devices over the local and
// cloud transports and aggregates per-device outcomes.
//
// # State machine
//
// Each target device runs its own state machine, independent of its
// siblings:
//
//	Pending ──► Attempting(transport) ──► Succeeded
//	                 │        ▲
//	                 ▼        │
//	              Retrying ───┘
//	                 │
//	                 ▼
//	              Failed(kind)
//
// Under the default try-local-then-cloud strategy, the local path is
// attempted first; unreachable and timeout outcomes fall through to the
// relay immediately, while integrity and decode failures are retried on
// the same transport up to the attempt budget before falling through. On
// the final (or sole) transport every retryable kind consumes the budget.
// Auth and key failures are terminal and never retried.
//
// # Concurrency
//
// Devices are dispatched in parallel, one worker per device, bounded by a
// weighted semaphore. Attempts within one device are strictly sequential.
// A global deadline or cancellation closes in-flight sessions and records
// the affected devices as Failed with the deadline or cancelled kind; the
// call always returns exactly one Result per requested device and never
// fails for partial outcomes.
package dispatch
