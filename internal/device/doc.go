// Package device holds the shared vocabulary of the dispatch core: unit
// ids, device identities, commands, and responses.
//
// Everything here is transport-agnostic. The wire codec, the registry, the
// transports, and the dispatcher all speak these types; none of them owns
// them.
//
// # Key Types
//
//   - UnitID: canonical device identifier (see NormalizeUnitID)
//   - Identity: immutable unit id + product id + class
//   - Command: opaque, versioned payload consumed by one dispatch attempt
//   - Response: decoded per-device reply
package device
