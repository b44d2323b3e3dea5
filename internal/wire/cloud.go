package wire

import (
	"encoding/json"
	"fmt"

	"github.com/lumenlabs/lumen-core/internal/device"
)

// Cloud relay status strings. The relay reports per-device delivery
// outcomes with these values; anything else is treated as a decode
// failure so new relay statuses surface loudly instead of being
// misclassified.
const (
	CloudStatusOK           = "ok"
	CloudStatusError        = "error"
	CloudStatusOffline      = "offline"
	CloudStatusTimeout      = "timeout"
	CloudStatusUnauthorized = "unauthorized"
)

// CloudRequest is the relay request body: a command addressed to a list
// of unit ids.
type CloudRequest struct {
	UnitIDs []string        `json:"unit_ids"`
	Command json.RawMessage `json:"command"`
}

// CloudStatus is one element of the relay's response array: the delivery
// outcome for a single device.
type CloudStatus struct {
	UnitID  string          `json:"unit_id"`
	Status  string          `json:"status"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// EncodeCloudRequest builds the relay request body for a command
// addressed to the given devices.
func EncodeCloudRequest(targets []device.UnitID, cmd device.Command) ([]byte, error) {
	body, err := cmd.Body()
	if err != nil {
		return nil, fmt.Errorf("%w: command body: %w", ErrDecode, err)
	}

	ids := make([]string, len(targets))
	for i, t := range targets {
		ids[i] = t.String()
	}

	data, err := json.Marshal(CloudRequest{UnitIDs: ids, Command: body})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return data, nil
}

// DecodeCloudResponse parses the relay's response array.
// Returns ErrDecode for unparseable JSON or entries with an unknown
// status string.
func DecodeCloudResponse(data []byte) ([]CloudStatus, error) {
	var statuses []CloudStatus
	if err := json.Unmarshal(data, &statuses); err != nil {
		return nil, fmt.Errorf("%w: relay response: %w", ErrDecode, err)
	}

	for _, s := range statuses {
		switch s.Status {
		case CloudStatusOK, CloudStatusError, CloudStatusOffline,
			CloudStatusTimeout, CloudStatusUnauthorized:
		default:
			return nil, fmt.Errorf("%w: unknown relay status %q for %s", ErrDecode, s.Status, s.UnitID)
		}
	}
	return statuses, nil
}
