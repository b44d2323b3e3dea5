package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lumenlabs/lumen-core/internal/dispatch"
)

// publisher is the slice of Client the outcome publisher needs.
// Narrowed for testability.
type publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// OutcomePublisher emits one message per device per dispatch call,
// carrying the terminal outcome. It implements dispatch.Observer.
//
// Messages are not retained: each dispatch is an event, not state.
// Publish failures are logged and swallowed so a flaky broker can
// never affect command delivery.
type OutcomePublisher struct {
	pub    publisher
	qos    byte
	logger Logger
}

// outcomeMessage is the wire shape of a dispatch outcome.
type outcomeMessage struct {
	UnitID    string          `json:"unit_id"`
	State     string          `json:"state"`
	Transport string          `json:"transport,omitempty"`
	Kind      string          `json:"kind,omitempty"`
	Attempts  int             `json:"attempts"`
	LatencyMS int64           `json:"latency_ms"`
	Error     string          `json:"error,omitempty"`
	Response  json.RawMessage `json:"response,omitempty"`
	Timestamp string          `json:"timestamp"`
}

// NewOutcomePublisher creates an observer that publishes dispatch
// outcomes through the given client.
//
// Parameters:
//   - client: Connected MQTT client
//   - qos: QoS level for outcome messages (normally cfg.MQTT.QoS)
//   - logger: Logger for publish failures, or nil to discard them
func NewOutcomePublisher(client *Client, qos byte, logger Logger) *OutcomePublisher {
	return &OutcomePublisher{
		pub:    client,
		qos:    qos,
		logger: logger,
	}
}

// ObserveResult publishes a device's terminal outcome to its result topic.
// It never blocks the dispatcher on broker trouble: errors are logged only.
func (p *OutcomePublisher) ObserveResult(_ context.Context, r dispatch.Result) {
	msg := outcomeMessage{
		UnitID:    string(r.UnitID),
		State:     string(r.State),
		Transport: string(r.Transport),
		Kind:      string(r.Kind),
		Attempts:  r.Attempts,
		LatencyMS: r.Latency.Milliseconds(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if r.Err != nil {
		msg.Error = r.Err.Error()
	}
	if r.Response != nil && json.Valid(r.Response.Payload) {
		msg.Response = json.RawMessage(r.Response.Payload)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		if p.logger != nil {
			p.logger.Error("marshalling dispatch outcome", "unit_id", r.UnitID, "error", err)
		}
		return
	}

	topic := Topics{}.DispatchResult(string(r.UnitID))
	if err := p.pub.Publish(topic, payload, p.qos, false); err != nil {
		if p.logger != nil {
			p.logger.Warn("publishing dispatch outcome", "topic", topic, "error", err)
		}
	}
}
