//go:build !linux

package i2c

// DevBus is unavailable outside Linux.
type DevBus struct{}

// OpenDev always fails on non-Linux systems.
func OpenDev(path string) (*DevBus, error) { return nil, ErrUnsupported }

func (b *DevBus) Path() string                                     { return "" }
func (b *DevBus) Close() error                                     { return nil }
func (b *DevBus) ReadByteData(addr uint16, reg byte) (byte, error) { return 0, ErrUnsupported }
func (b *DevBus) WriteByteData(addr uint16, reg, value byte) error { return ErrUnsupported }

