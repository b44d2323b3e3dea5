// Package discovery locates devices on the local network.
//
// A discovery round broadcasts a QCX-SYN probe on UDP port 2222 and
// listens for identity replies within a bounded window. Each well-formed
// reply upserts the device registry with the responder's identity and TCP
// command address; malformed datagrams are dropped without ending the
// round.
//
// Discovery never blocks dispatch: the dispatcher proceeds with devices
// the registry already knows and triggers a round only when a requested
// identity is absent or stale. Rounds are idempotent, so re-running one
// simply refreshes reachability data.
package discovery
