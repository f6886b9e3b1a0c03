//go:build linux

package i2c

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// I2C_RDWR lets a register read go out as one combined write+read with a
// repeated start, which the PCA9685 expects.
const (
	i2cMrd  = 0x0001
	i2cRdwr = 0x0707
)

type msg struct {
	addr  uint16
	flags uint16
	len   uint16
	buf   uintptr
}

type rdwrData struct {
	msgs  uintptr
	nmsgs uint32
}

// DevBus is an opened Linux I2C character device (e.g. /dev/i2c-1).
type DevBus struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

// OpenDev opens the character device at path.
func OpenDev(path string) (*DevBus, error) {
	path = filepath.Clean(path)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	return &DevBus{f: f, path: path}, nil
}

// Path returns the device path.
func (b *DevBus) Path() string {
	return b.path
}

// Close closes the device. Safe to call more than once.
func (b *DevBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.f == nil {
		return nil
	}
	err := b.f.Close()
	b.f = nil
	return err
}

// ReadByteData reads one register.
func (b *DevBus) ReadByteData(addr uint16, reg byte) (byte, error) {
	var r [1]byte
	if err := b.tx(addr, []byte{reg}, r[:]); err != nil {
		return 0, err
	}
	return r[0], nil
}

// WriteByteData writes one register.
func (b *DevBus) WriteByteData(addr uint16, reg, value byte) error {
	return b.tx(addr, []byte{reg, value}, nil)
}

func (b *DevBus) tx(addr uint16, w, r []byte) error {
	if !validAddress(addr) {
		return fmt.Errorf("%w: 0x%X", ErrInvalidAddress, addr)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.f == nil {
		return ErrClosed
	}

	msgs := make([]msg, 0, 2)
	if len(w) > 0 {
		msgs = append(msgs, msg{addr: addr, flags: 0, len: uint16(len(w)), buf: uintptr(unsafe.Pointer(&w[0]))})
	}
	if len(r) > 0 {
		msgs = append(msgs, msg{addr: addr, flags: i2cMrd, len: uint16(len(r)), buf: uintptr(unsafe.Pointer(&r[0]))})
	}
	if len(msgs) == 0 {
		return nil
	}

	data := rdwrData{msgs: uintptr(unsafe.Pointer(&msgs[0])), nmsgs: uint32(len(msgs))}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, b.f.Fd(), uintptr(i2cRdwr), uintptr(unsafe.Pointer(&data)))
	if errno != 0 {
		return errno
	}
	return nil
}
