package mqtt

import (
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// maxPayloadSize caps outgoing payloads at 1 MiB. PWM state and ack
// messages are a few hundred bytes, so anything near this is a bug.
const maxPayloadSize = 1 << 20

// Publish sends payload to topic and waits for the broker to acknowledge.
//
// The PWM bridge publishes output state and device frequency retained at
// QoS 1 so that a late subscriber sees the current level of every channel.
// Acks, responses and health use QoS 1 without retain, except health,
// which is retained so the last-will message can replace it.
//
// Parameters:
//   - topic: e.g. "graylogic/state/pwm/lamp-kitchen"
//   - payload: JSON message, at most 1 MiB
//   - qos: 0, 1 or 2
//   - retained: keep as the topic's last value on the broker
//
// Returns:
//   - error: ErrInvalidTopic, ErrInvalidQoS, ErrNotConnected or ErrPublishFailed
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	return waitToken(token, defaultPublishTimeout, ErrPublishFailed)
}

// waitToken waits for a paho token and maps the outcome onto op, wrapping
// ErrTimeout when the broker stays silent.
func waitToken(token pahomqtt.Token, timeout time.Duration, op error) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w: %w after %v", op, ErrTimeout, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", op, err)
	}
	return nil
}
