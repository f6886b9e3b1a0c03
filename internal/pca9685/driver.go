package pca9685

import (
	"context"
	"fmt"
	"sync"
)

// maxAddress is the highest 7-bit I2C address.
const maxAddress = 0x7F

// Bus is the register transport the driver needs. It is satisfied by every
// backend in internal/i2c.
type Bus interface {
	// ReadByteData reads one register of the device at addr.
	ReadByteData(addr uint16, reg byte) (byte, error)

	// WriteByteData writes one register of the device at addr.
	WriteByteData(addr uint16, reg, value byte) error
}

// Logger is the logging interface used by the driver.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Options configures a Driver.
type Options struct {
	// BusID identifies the bus for logging and lock sharing (e.g. "1").
	BusID string

	// Lock serialises multi-register operations. Drivers on the same
	// physical bus must share one lock. If nil the driver uses its own.
	Lock sync.Locker

	// Simulate drops writes and returns zero for reads.
	Simulate bool

	// Logger is optional.
	Logger Logger
}

// Driver controls one PCA9685 at a fixed address.
//
// The caller that constructs a Driver owns it; there is no package-level
// registry.
//
// Thread Safety: All methods are safe for concurrent use.
type Driver struct {
	bus      Bus
	addr     uint16
	busID    string
	lock     sync.Locker
	simulate bool

	// frequency is the last frequency written, 0 if never set.
	frequency int
	freqMu    sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a driver for the device at address on bus.
//
// Parameters:
//   - bus: Register transport (may be nil only when opts.Simulate is set)
//   - address: 7-bit device address (1-0x7F)
//   - opts: Lock, simulation, and logging options
//
// Returns:
//   - *Driver: Ready for use
//   - error: ErrConfiguration if the bus or address is invalid
func New(bus Bus, address uint16, opts Options) (*Driver, error) {
	if address == 0 || address > maxAddress {
		return nil, fmt.Errorf("%w: address 0x%02X is not a 7-bit address", ErrConfiguration, address)
	}
	if bus == nil && !opts.Simulate {
		return nil, fmt.Errorf("%w: bus is required", ErrConfiguration)
	}

	lock := opts.Lock
	if lock == nil {
		lock = &sync.Mutex{}
	}

	return &Driver{
		bus:      bus,
		addr:     address,
		busID:    opts.BusID,
		lock:     lock,
		simulate: opts.Simulate,
		logger:   opts.Logger,
	}, nil
}

// Address returns the 7-bit device address.
func (d *Driver) Address() uint16 {
	return d.addr
}

// BusID returns the bus identifier the driver was created with.
func (d *Driver) BusID() string {
	return d.busID
}

// Simulated reports whether the driver runs without hardware.
func (d *Driver) Simulated() bool {
	return d.simulate
}

// SetChannel sets the OFF time of channel to value (0-4095).
//
// The low byte is written before the high byte. A bus failure between the
// two leaves the channel half-written; re-issuing SetChannel is safe.
//
// Returns:
//   - error: ErrRange (no I/O performed) or ErrBus
func (d *Driver) SetChannel(ctx context.Context, channel, value int) error {
	if !ValidChannel(channel) {
		return fmt.Errorf("%w: channel %d not in [0,%d]", ErrRange, channel, MaxChannel)
	}
	if !ValidValue(value) {
		return fmt.Errorf("%w: value %d not in [0,%d]", ErrRange, value, MaxValue)
	}

	reg := ChannelRegister(channel)

	d.lock.Lock()
	defer d.lock.Unlock()

	if err := d.writeLocked(ctx, reg, LowByte(value)); err != nil {
		return err
	}
	return d.writeLocked(ctx, reg+1, HighByte(value))
}

// Channel returns the current OFF time of channel.
func (d *Driver) Channel(ctx context.Context, channel int) (int, error) {
	if !ValidChannel(channel) {
		return 0, fmt.Errorf("%w: channel %d not in [0,%d]", ErrRange, channel, MaxChannel)
	}

	reg := ChannelRegister(channel)

	d.lock.Lock()
	defer d.lock.Unlock()

	low, err := d.readLocked(ctx, reg)
	if err != nil {
		return 0, err
	}
	high, err := d.readLocked(ctx, reg+1)
	if err != nil {
		return 0, err
	}
	return int(low) + int(high)*256, nil
}

// SetAll sets the OFF time of every channel at once through the ALL_LED
// registers.
func (d *Driver) SetAll(ctx context.Context, value int) error {
	if !ValidValue(value) {
		return fmt.Errorf("%w: value %d not in [0,%d]", ErrRange, value, MaxValue)
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	writes := []struct {
		reg byte
		val byte
	}{
		{RegAllOnL, 0},
		{RegAllOnH, 0},
		{RegAllOffL, LowByte(value)},
		{RegAllOffH, HighByte(value)},
	}
	for _, w := range writes {
		if err := d.writeLocked(ctx, w.reg, w.val); err != nil {
			return err
		}
	}
	return nil
}

// SetFrequency sets the PWM frequency of all channels.
//
// The prescale register only accepts writes while the oscillator is off,
// so the sequence sleep → write prescale → wake runs under the bus lock.
//
// Parameters:
//   - hz: Frequency in [MinFrequency, MaxFrequency]
//
// Returns:
//   - error: ErrRange (no I/O performed) or ErrBus
func (d *Driver) SetFrequency(ctx context.Context, hz int) error {
	if !ValidFrequency(hz) {
		return fmt.Errorf("%w: frequency %d Hz not in [%d,%d]", ErrRange, hz, MinFrequency, MaxFrequency)
	}
	prescale := PrescaleFromFrequency(hz)

	d.logDebug("setting pwm frequency", "frequency", hz, "prescale", prescale)

	d.lock.Lock()
	defer d.lock.Unlock()

	if err := d.readModifyWriteLocked(ctx, RegMode1, 0, Bit(Mode1Sleep)); err != nil {
		return err
	}
	if err := d.writeLocked(ctx, RegPrescale, byte(prescale)); err != nil {
		return err
	}
	if err := d.readModifyWriteLocked(ctx, RegMode1, Bit(Mode1Sleep), 0); err != nil {
		return err
	}

	d.freqMu.Lock()
	d.frequency = hz
	d.freqMu.Unlock()

	return nil
}

// Frequency returns the PWM frequency derived from the prescale register.
// In simulation mode it returns the last frequency set, or
// DefaultFrequency if none was set.
func (d *Driver) Frequency(ctx context.Context) (int, error) {
	if d.simulate {
		d.freqMu.RLock()
		hz := d.frequency
		d.freqMu.RUnlock()
		if hz == 0 {
			hz = DefaultFrequency
		}
		return hz, nil
	}

	prescale, err := d.Read(ctx, RegPrescale)
	if err != nil {
		return 0, err
	}
	return FrequencyFromPrescale(int(prescale)), nil
}

// Sleep puts the oscillator to sleep (Mode1 bit 4 set).
func (d *Driver) Sleep(ctx context.Context) error {
	d.logDebug("sleep the controller")
	return d.ReadModifyWrite(ctx, RegMode1, 0, Bit(Mode1Sleep))
}

// Wake restarts the oscillator (Mode1 bit 4 cleared).
func (d *Driver) Wake(ctx context.Context) error {
	d.logDebug("wake up the controller")
	return d.ReadModifyWrite(ctx, RegMode1, Bit(Mode1Sleep), 0)
}

// ReadModifyWrite reads reg, clears the bits in clearMask, sets the bits in
// setMask, and writes the result back, all under the bus lock.
func (d *Driver) ReadModifyWrite(ctx context.Context, reg, clearMask, setMask byte) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.readModifyWriteLocked(ctx, reg, clearMask, setMask)
}

// Write writes a raw byte to reg.
//
// Returns:
//   - error: ErrRange if value is not in [0,255] (no I/O performed) or ErrBus
func (d *Driver) Write(ctx context.Context, reg byte, value int) error {
	if value < 0 || value > MaxByte {
		return fmt.Errorf("%w: register value %d not in [0,%d]", ErrRange, value, MaxByte)
	}

	d.lock.Lock()
	defer d.lock.Unlock()
	return d.writeLocked(ctx, reg, byte(value))
}

// Read reads a raw byte from reg.
func (d *Driver) Read(ctx context.Context, reg byte) (byte, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.readLocked(ctx, reg)
}

func (d *Driver) readModifyWriteLocked(ctx context.Context, reg, clearMask, setMask byte) error {
	v, err := d.readLocked(ctx, reg)
	if err != nil {
		return err
	}
	return d.writeLocked(ctx, reg, SetBits(ClearBits(v, clearMask), setMask))
}

// writeLocked and readLocked are the only paths to the bus. The caller
// holds d.lock.
func (d *Driver) writeLocked(ctx context.Context, reg, value byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.simulate {
		return nil
	}
	if err := d.bus.WriteByteData(d.addr, reg, value); err != nil {
		return fmt.Errorf("%w: write 0x%02X to register 0x%02X at 0x%02X: %w", ErrBus, value, reg, d.addr, err)
	}
	return nil
}

func (d *Driver) readLocked(ctx context.Context, reg byte) (byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if d.simulate {
		return 0, nil
	}
	v, err := d.bus.ReadByteData(d.addr, reg)
	if err != nil {
		return 0, fmt.Errorf("%w: read register 0x%02X at 0x%02X: %w", ErrBus, reg, d.addr, err)
	}
	return v, nil
}

// SetLogger sets the logger for the driver.
func (d *Driver) SetLogger(logger Logger) {
	d.loggerMu.Lock()
	d.logger = logger
	d.loggerMu.Unlock()
}

func (d *Driver) logDebug(msg string, keysAndValues ...any) {
	d.loggerMu.RLock()
	logger := d.logger
	d.loggerMu.RUnlock()

	if logger != nil {
		logger.Debug(msg, append([]any{"bus", d.busID, "address", d.addr}, keysAndValues...)...)
	}
}
