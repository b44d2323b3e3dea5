// Package registry maintains the catalogue of known devices and their
// reachability.
//
// The registry is the single source of truth the dispatcher consults when
// choosing how to reach a device: the last local address discovery
// observed, whether the cloud relay knows the device, and any per-device
// key material supplied at runtime.
//
// # Architecture
//
//	Discovery ──► Registry ◄── Dispatcher (reads reachability + keys)
//	                 │
//	                 ▼
//	            Repository (SQLite, optional)
//
// Records are keyed by unit id; a unit id appears at most once. Upserts
// carry an observation timestamp and the later observation wins, so
// concurrent discovery replies and cloud confirmations can land in any
// order without corrupting a record.
//
// The optional SQLite repository caches identities and reachability across
// restarts so a fresh process can dispatch before its first discovery
// round completes. Key material is never persisted.
package registry
