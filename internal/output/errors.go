package output

import "errors"

// Domain errors for the output package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, output.ErrOutputNotFound) {
//	    // handle unknown output
//	}
var (
	// ErrOutputNotFound is returned when an output ID does not exist.
	ErrOutputNotFound = errors.New("output: not found")

	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("output: device not found")

	// ErrInvalidConfig is returned when device or output configuration is rejected.
	ErrInvalidConfig = errors.New("output: invalid configuration")

	// ErrInvalidCommand is returned for an unknown action.
	ErrInvalidCommand = errors.New("output: invalid command")

	// ErrInvalidParameters is returned when a command parameter is out of range
	// or not supported by the output kind.
	ErrInvalidParameters = errors.New("output: invalid parameters")
)
