// Package i2c provides the register transports used by the PCA9685 driver.
//
// Three backends implement Bus:
//
//   - dev: Linux /dev/i2c-N through the I2C_RDWR ioctl (golang.org/x/sys/unix)
//   - periph: any bus registered with periph.io (host.Init + i2creg.Open)
//   - memory: an in-process register file for development without hardware
//
// Buses are shared by every device wired to them. Locks hands out one
// mutex per bus so that multi-register sequences from different drivers
// never interleave.
//
// Bus autodetection follows the Linux naming scheme: an empty bus
// identifier selects the lowest /dev/i2c-N present.
package i2c
