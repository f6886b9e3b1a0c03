// Package pca9685 drives the NXP PCA9685 16-channel, 12-bit PWM expander.
//
// The package has two layers:
//
//   - registers.go: the bit-exact register map and pure conversions
//     (channel → register address, byte splitting, frequency ↔ prescale)
//   - driver.go: range-checked operations built on a minimal Bus capability
//
// # Register Layout
//
// Each channel owns four consecutive registers starting at 0x06
// (ON-low, ON-high, OFF-low, OFF-high). The ON time is fixed at zero, so
// only the OFF pair is written:
//
//	LED0_OFF_L = 0x06 + 2 + 0*4 = 0x08
//	LED15_OFF_L = 0x06 + 2 + 15*4 = 0x44
//
// # Frequency
//
// The PWM frequency is derived from the 25 MHz internal oscillator through
// an 8-bit prescale register. The prescale can only be written while the
// device sleeps, so SetFrequency performs sleep → prescale → wake under the
// bus lock.
//
// # Concurrency
//
// A Driver serialises its multi-register operations with a sync.Locker
// supplied by the caller. Drivers that share a physical bus must share the
// same lock (see i2c.Locks). The lock is held for one logical operation and
// never across calls.
//
// # Simulation
//
// With Options.Simulate set, writes are dropped and reads return zero so
// the rest of the stack can run without hardware.
//
// Example:
//
//	drv, err := pca9685.New(bus, 0x40, pca9685.Options{BusID: "1", Lock: locks.For("1")})
//	if err != nil {
//	    return err
//	}
//	if err := drv.SetFrequency(ctx, 200); err != nil {
//	    return err
//	}
//	err = drv.SetChannel(ctx, 0, 2048)
package pca9685
