package pwm

import "errors"

// Domain errors for the PWM bridge package.
var (
	// ErrMissingDependency is returned by NewBridge when a required option
	// is nil.
	ErrMissingDependency = errors.New("pwm: missing dependency")

	// ErrInvalidMessage is returned when an MQTT payload cannot be decoded.
	ErrInvalidMessage = errors.New("pwm: invalid message")
)
