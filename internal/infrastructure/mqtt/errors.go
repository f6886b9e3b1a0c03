package mqtt

import "errors"

// Sentinel errors for broker operations. Bridge code checks them with
// errors.Is to tell a dropped broker from a malformed request.
var (
	// ErrNotConnected means the broker link is down. Publishes from the
	// PWM bridge are dropped until paho reconnects.
	ErrNotConnected = errors.New("mqtt: not connected to broker")

	ErrConnectionFailed  = errors.New("mqtt: connection failed")
	ErrPublishFailed     = errors.New("mqtt: publish failed")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe failed")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrTimeout is wrapped together with the operation error when the
	// broker does not acknowledge within defaultPublishTimeout.
	ErrTimeout = errors.New("mqtt: broker did not acknowledge in time")

	ErrInvalidQoS   = errors.New("mqtt: QoS must be 0, 1 or 2")
	ErrInvalidTopic = errors.New("mqtt: empty topic")
)
