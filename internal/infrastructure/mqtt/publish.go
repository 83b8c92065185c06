package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/gray-logic-energy/internal/device"
	"github.com/nerrad567/gray-logic-energy/internal/schema"
)

// Maximum payload size for MQTT messages (1MB).
// This prevents resource exhaustion and aligns with typical broker limits.
const maxPayloadSize = 1 << 20 // 1MB

// Publish sends a message to the specified MQTT topic.
//
// Parameters:
//   - topic: The topic to publish to (e.g., "graylogic/energy/reading/plug/plug-lounge")
//   - payload: The message payload (typically JSON, max 1MB)
//   - qos: Quality of Service level (0, 1, or 2)
//   - retained: Whether the broker should retain the message for new subscribers
//
// QoS Levels:
//   - 0: At most once (fire and forget)
//   - 1: At least once (guaranteed delivery, may duplicate)
//   - 2: Exactly once (guaranteed, no duplicates, higher overhead)
//
// Retained Messages:
//   - When true, broker stores the last message for each topic
//   - New subscribers immediately receive the retained message
//   - Used here for the availability topic only; readings are a stream
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	// Validate inputs
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	// Check connection state
	if !c.IsConnected() {
		return ErrNotConnected
	}

	// Publish with timeout
	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// ReadingPublisher adapts a Client to the orchestrator's sink
// interface, broadcasting each persisted record as JSON on its
// device's reading topic.
type ReadingPublisher struct {
	client *Client
}

// NewReadingPublisher wraps an established client as a reading sink.
func NewReadingPublisher(client *Client) *ReadingPublisher {
	return &ReadingPublisher{client: client}
}

// Name identifies this sink in orchestrator logs.
func (p *ReadingPublisher) Name() string {
	return "mqtt"
}

// Publish broadcasts one persisted record to the device's reading
// topic as a JSON object keyed by column name, including the identity
// columns so the payload is self-contained. Readings are not retained;
// the availability topic is the only retained state.
//
// Parameters:
//   - ctx: Unused; delivery is bounded by the client's publish timeout
//   - dev: The polled device, which names the topic
//   - sch: The schema the record was projected against
//   - rec: The persisted record to broadcast
//
// Returns:
//   - error: ErrNotConnected while the broker is unreachable, or a
//     wrapped publish failure
func (p *ReadingPublisher) Publish(ctx context.Context, dev device.Device, sch *schema.Schema, rec schema.Record) error {
	payload, err := json.Marshal(rec.Map())
	if err != nil {
		return fmt.Errorf("%w: encoding reading for %q: %w", ErrPublishFailed, dev.Name, err)
	}

	topic := Topics{}.Reading(dev.Type, dev.Name)
	return p.client.Publish(topic, payload, byte(p.client.cfg.QoS), false)
}
