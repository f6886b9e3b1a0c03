package pca9685

import "errors"

// Domain errors for the PCA9685 driver.
var (
	// ErrRange is returned when a channel, PWM value, frequency, or raw
	// register byte lies outside its valid bound. No bus I/O has happened
	// when this error is returned.
	ErrRange = errors.New("pca9685: value out of range")

	// ErrConfiguration is returned for degenerate configuration such as a
	// missing bus or an invalid device address.
	ErrConfiguration = errors.New("pca9685: invalid configuration")

	// ErrBus is returned when the underlying transport fails (device absent,
	// NACK, timeout). The core never retries; the caller decides.
	ErrBus = errors.New("pca9685: bus error")
)
