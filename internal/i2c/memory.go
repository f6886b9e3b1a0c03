package i2c

import (
	"fmt"
	"sync"
)

// PCA9685 LED register layout. A write to one of the four ALL_LED
// registers loads the same byte into that position of every LEDn block.
const (
	ledBase      = 0x06
	ledCount     = 16
	allLEDBase   = 0xFA
	allLEDLength = 4
)

// MemoryBus is an in-process register file that behaves like a bus with
// idealised devices: every address acknowledges and every register holds
// the last byte written. Writes to the ALL_LED registers fan out to every
// channel the way a PCA9685 does. It backs the "memory" backend and tests.
type MemoryBus struct {
	mu       sync.Mutex
	regs     map[uint16]*[256]byte
	writes   int
	reads    int
	failWith error
	closed   bool
}

// NewMemoryBus creates an empty register file.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{regs: make(map[uint16]*[256]byte)}
}

// ReadByteData returns the stored register value (0 if never written).
func (b *MemoryBus) ReadByteData(addr uint16, reg byte) (byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkLocked(addr); err != nil {
		return 0, err
	}
	b.reads++
	if file, ok := b.regs[addr]; ok {
		return file[reg], nil
	}
	return 0, nil
}

// WriteByteData stores value in the register.
func (b *MemoryBus) WriteByteData(addr uint16, reg, value byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkLocked(addr); err != nil {
		return err
	}
	b.writes++
	file, ok := b.regs[addr]
	if !ok {
		file = &[256]byte{}
		b.regs[addr] = file
	}
	file[reg] = value
	if reg >= allLEDBase && reg < allLEDBase+allLEDLength {
		offset := int(reg - allLEDBase)
		for ch := range ledCount {
			file[ledBase+ch*4+offset] = value
		}
	}
	return nil
}

// Close marks the bus closed.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

// Register returns a register value without counting a read.
func (b *MemoryBus) Register(addr uint16, reg byte) byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if file, ok := b.regs[addr]; ok {
		return file[reg]
	}
	return 0
}

// SetRegister presets a register without counting a write.
func (b *MemoryBus) SetRegister(addr uint16, reg, value byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	file, ok := b.regs[addr]
	if !ok {
		file = &[256]byte{}
		b.regs[addr] = file
	}
	file[reg] = value
}

// Fail makes every later transfer return err. Pass nil to recover.
func (b *MemoryBus) Fail(err error) {
	b.mu.Lock()
	b.failWith = err
	b.mu.Unlock()
}

// Counts returns the number of successful reads and writes.
func (b *MemoryBus) Counts() (reads, writes int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reads, b.writes
}

func (b *MemoryBus) checkLocked(addr uint16) error {
	if b.closed {
		return ErrClosed
	}
	if !validAddress(addr) {
		return fmt.Errorf("%w: 0x%X", ErrInvalidAddress, addr)
	}
	return b.failWith
}
