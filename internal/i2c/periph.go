package i2c

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

var (
	hostInitOnce sync.Once
	hostInitErr  error
)

// initHost loads the periph.io host drivers once per process.
func initHost() error {
	hostInitOnce.Do(func() {
		_, hostInitErr = host.Init()
	})
	return hostInitErr
}

// PeriphBus adapts a periph.io I2C bus to Bus.
type PeriphBus struct {
	bus i2c.BusCloser
}

// OpenPeriph opens a bus from the periph.io registry. An empty name opens
// the first registered bus.
func OpenPeriph(name string) (*PeriphBus, error) {
	if err := initHost(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, err
	}
	return &PeriphBus{bus: bus}, nil
}

// NewPeriphBus wraps an already opened periph.io bus.
func NewPeriphBus(bus i2c.BusCloser) *PeriphBus {
	return &PeriphBus{bus: bus}
}

// ReadByteData reads one register.
func (b *PeriphBus) ReadByteData(addr uint16, reg byte) (byte, error) {
	if !validAddress(addr) {
		return 0, fmt.Errorf("%w: 0x%X", ErrInvalidAddress, addr)
	}
	var r [1]byte
	if err := b.bus.Tx(addr, []byte{reg}, r[:]); err != nil {
		return 0, err
	}
	return r[0], nil
}

// WriteByteData writes one register.
func (b *PeriphBus) WriteByteData(addr uint16, reg, value byte) error {
	if !validAddress(addr) {
		return fmt.Errorf("%w: 0x%X", ErrInvalidAddress, addr)
	}
	return b.bus.Tx(addr, []byte{reg, value}, nil)
}

// Close closes the underlying bus.
func (b *PeriphBus) Close() error {
	return b.bus.Close()
}
