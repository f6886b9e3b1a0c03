// Package output models the logical outputs wired to PCA9685 channels.
//
// An output is one of:
//
//   - light: a single dimmable channel (brightness 0-255)
//   - rgb_light / rgbw_light: three or four channels driven from an HS colour
//   - number: a single channel set from a logical value through the
//     normalizer (fans, valves, servos)
//
// # Manager
//
// The Manager owns devices and their outputs. It is built once at startup
// from configuration:
//
//	mgr := output.NewManager(output.ManagerOptions{Store: store, Logger: log})
//	if err := mgr.AddDevice(cfg, driver, oe); err != nil { ... }
//	if err := mgr.Restore(ctx); err != nil { ... }
//
// Commands arrive through Execute (MQTT bridge, HTTP API). Every state
// change is saved to the StateStore and fanned out to registered Observers.
//
// # Transitions
//
// Lights accept an optional transition duration. Ramps run on a
// transition.Engine owned by the Manager; a new command for the same output
// cancels the running ramp before it touches the hardware.
//
// # Thread Safety
//
// All exported methods are safe for concurrent use. Commands on one output
// are serialised; commands on different outputs run in parallel and meet
// only at the per-bus lock inside the driver.
package output
