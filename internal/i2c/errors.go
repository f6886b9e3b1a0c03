package i2c

import "errors"

// Domain errors for the i2c package.
var (
	// ErrUnsupported is returned by the /dev backend on non-Linux systems.
	ErrUnsupported = errors.New("i2c: unsupported OS (need linux)")

	// ErrInvalidAddress is returned for addresses outside 1-0x7F.
	ErrInvalidAddress = errors.New("i2c: invalid device address")

	// ErrUnknownBackend is returned when Config.Backend is not recognised.
	ErrUnknownBackend = errors.New("i2c: unknown backend")

	// ErrNoBus is returned when autodetection finds no /dev/i2c-* device.
	ErrNoBus = errors.New("i2c: cannot determine bus number")

	// ErrInvalidBusName is returned when a bus string has no bus number.
	ErrInvalidBusName = errors.New("i2c: invalid bus name")

	// ErrClosed is returned when using a closed bus.
	ErrClosed = errors.New("i2c: bus closed")
)
