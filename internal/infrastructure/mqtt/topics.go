package mqtt

import "fmt"

// Topic prefixes for the lumen message bus.
//
// All topics use the flat scheme: lumen/{category}/{unit_id}[/{suffix}]
// Unit ids in topics are always in normalised form (lowercase hex,
// separators stripped) so subscribers can match without canonicalising.
const (
	// TopicPrefix is the base for all lumen topics.
	TopicPrefix = "lumen"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "lumen/system"
)

// Topics provides builders for lumen MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	topic := topics.DispatchResult("aabbcc001122")
//	// Returns: "lumen/dispatch/aabbcc001122/result"
type Topics struct{}

// DispatchResult returns the topic for a device's terminal dispatch outcome.
//
// Example: lumen/dispatch/aabbcc001122/result
func (Topics) DispatchResult(unitID string) string {
	return fmt.Sprintf("%s/dispatch/%s/result", TopicPrefix, unitID)
}

// AllDispatchResults returns a wildcard for every device's dispatch outcome.
//
// Example: lumen/dispatch/+/result
func (Topics) AllDispatchResults() string {
	return fmt.Sprintf("%s/dispatch/+/result", TopicPrefix)
}

// DeviceState returns the retained reachability topic for a device.
//
// Example: lumen/device/aabbcc001122/state
func (Topics) DeviceState(unitID string) string {
	return fmt.Sprintf("%s/device/%s/state", TopicPrefix, unitID)
}

// DiscoveryFound returns the topic for devices seen during a discovery sweep.
//
// Example: lumen/discovery/found
func (Topics) DiscoveryFound() string {
	return fmt.Sprintf("%s/discovery/found", TopicPrefix)
}

// SystemStatus returns the topic for the dispatcher's online/offline status.
//
// Example: lumen/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}
