package i2c

import (
	"fmt"
	"strings"
)

// Backend names accepted by Open.
const (
	BackendDev    = "dev"
	BackendPeriph = "periph"
	BackendMemory = "memory"
)

// maxAddress is the highest 7-bit address.
const maxAddress = 0x7F

// Bus is a register-oriented I2C transport shared by every device on one
// physical bus.
//
// Implementations are not required to be safe for concurrent transfers;
// callers serialise access with the lock from Locks.
type Bus interface {
	// ReadByteData reads a single register (write reg, repeated start, read 1).
	ReadByteData(addr uint16, reg byte) (byte, error)

	// WriteByteData writes a single register.
	WriteByteData(addr uint16, reg, value byte) error

	// Close releases the bus.
	Close() error
}

// Config selects and addresses a bus backend.
type Config struct {
	// Backend is "dev" (Linux /dev/i2c-N), "periph" (periph.io registry),
	// or "memory" (in-process register file). Default: "dev".
	Backend string

	// Bus identifies the bus: "1", "/dev/i2c-1", or a periph name such as
	// "I2C1". Empty autodetects the first /dev/i2c-* for the dev backend.
	Bus string
}

// Open opens the bus described by cfg.
//
// Parameters:
//   - cfg: Backend and bus identifier
//
// Returns:
//   - Bus: Opened bus; the caller must Close it
//   - string: Resolved bus identifier (for locking and logging)
//   - error: ErrUnknownBackend, ErrNoBus, or the backend's open error
func Open(cfg Config) (Bus, string, error) {
	backend := strings.ToLower(cfg.Backend)
	if backend == "" {
		backend = BackendDev
	}

	switch backend {
	case BackendDev:
		path, err := ResolveDevPath(cfg.Bus)
		if err != nil {
			return nil, "", err
		}
		bus, err := OpenDev(path)
		if err != nil {
			return nil, "", fmt.Errorf("open %s: %w", path, err)
		}
		return bus, path, nil

	case BackendPeriph:
		name := cfg.Bus
		bus, err := OpenPeriph(name)
		if err != nil {
			return nil, "", fmt.Errorf("open periph bus %q: %w", name, err)
		}
		return bus, "periph:" + name, nil

	case BackendMemory:
		return NewMemoryBus(), "memory:" + cfg.Bus, nil

	default:
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

func validAddress(addr uint16) bool {
	return addr != 0 && addr <= maxAddress
}
