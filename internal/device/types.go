package device

import (
	"encoding/json"
	"strings"
	"time"
)

// UnitID is the stable identifier of one physical device.
//
// Unit ids arrive in several shapes depending on the source: the device's
// own identity broadcast uses plain lowercase hex, while account exports and
// user input often carry colon or dash separators and mixed case. All of
// them normalise to the same canonical form via NormalizeUnitID.
type UnitID string

// NormalizeUnitID converts a raw unit id into canonical form:
// lowercase with separator characters removed.
//
// An empty input yields an empty UnitID; callers decide whether that is
// acceptable in their context.
func NormalizeUnitID(raw string) UnitID {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer(":", "", "-", "", ".", "", " ", "").Replace(s)
	return UnitID(s)
}

// String returns the canonical unit id string.
func (u UnitID) String() string { return string(u) }

// Class is the functional classification of a device.
type Class string

// Device classes recognised by the dispatcher.
const (
	ClassBulb    Class = "bulb"
	ClassPlug    Class = "plug"
	ClassVacuum  Class = "vacuum"
	ClassUnknown Class = "unknown"
)

// ClassFromProductID derives the device class from a product identifier
// such as "@lumen.lighting.rgb-cw-ww.e27". Unrecognised product families
// map to ClassUnknown rather than failing; the dispatcher treats class as
// advisory.
func ClassFromProductID(productID string) Class {
	switch {
	case strings.Contains(productID, ".lighting"):
		return ClassBulb
	case strings.Contains(productID, ".plug"):
		return ClassPlug
	case strings.Contains(productID, ".cleaning"):
		return ClassVacuum
	default:
		return ClassUnknown
	}
}

// Identity is the immutable identity of a device: its unit id plus class.
// Created at discovery time or from a user-supplied selector; never mutated.
type Identity struct {
	// UnitID is the canonical unit id (see NormalizeUnitID).
	UnitID UnitID `json:"unit_id"`

	// ProductID is the full product identifier reported by the device,
	// e.g. "@lumen.lighting.rgb-cw-ww.e27". May be empty for identities
	// built from a bare selector.
	ProductID string `json:"product_id,omitempty"`

	// Class is derived from ProductID where known.
	Class Class `json:"class"`
}

// NewIdentity builds an Identity from a raw unit id and product id.
func NewIdentity(rawUnitID, productID string) Identity {
	return Identity{
		UnitID:    NormalizeUnitID(rawUnitID),
		ProductID: productID,
		Class:     ClassFromProductID(productID),
	}
}

// CommandType names the operation a Command performs on a device.
// It selects the command-type byte on the local wire protocol and the
// request target on the cloud relay.
type CommandType string

// Command types understood by both transports.
const (
	// CommandGet requests the device's current status.
	CommandGet CommandType = "get"

	// CommandSet applies a state change (colour, brightness, scene, ...).
	CommandSet CommandType = "set"

	// CommandPing is a reachability probe with an empty payload.
	CommandPing CommandType = "ping"

	// CommandReboot asks the device to restart.
	CommandReboot CommandType = "reboot"
)

// Command is an opaque, versioned payload sent to one or more devices.
// Immutable once constructed; each dispatch attempt consumes it read-only.
//
// The Payload is device-facing JSON the dispatcher does not interpret.
// Scene presets and colour tables live in the excluded CLI layer and arrive
// here already rendered into Payload.
type Command struct {
	// Type selects the operation.
	Type CommandType

	// Payload is the raw JSON body for the device. May be nil for
	// CommandGet and CommandPing.
	Payload json.RawMessage

	// TTL bounds how long the command stays valid after Created.
	// Zero means no expiry.
	TTL time.Duration

	// Created is when the command was constructed.
	Created time.Time
}

// NewCommand constructs a Command stamped with the current time.
func NewCommand(t CommandType, payload json.RawMessage) Command {
	return Command{Type: t, Payload: payload, Created: time.Now()}
}

// Expired reports whether the command's time to live has elapsed.
func (c Command) Expired(now time.Time) bool {
	if c.TTL <= 0 {
		return false
	}
	return now.Sub(c.Created) > c.TTL
}

// Body returns the JSON body to put on the wire: the payload if present,
// otherwise a minimal envelope carrying just the command type.
func (c Command) Body() ([]byte, error) {
	if len(c.Payload) > 0 {
		return c.Payload, nil
	}
	return json.Marshal(map[string]string{"type": string(c.Type)})
}

// Response is a decoded reply from one device, whichever transport
// carried it.
type Response struct {
	// UnitID identifies the responding device.
	UnitID UnitID

	// Payload is the device's JSON reply, already decrypted and
	// integrity-checked on the local path.
	Payload json.RawMessage

	// Received is when the reply was decoded.
	Received time.Time
}
