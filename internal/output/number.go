package output

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-pwm/internal/normalize"
)

// Number is a single channel driven from a logical value (0-100 %, a
// valve position, a servo angle) through the normalizer.
type Number struct {
	base
	params normalize.Params
	mode   string

	value float64
	pwm   int
}

func newNumber(cfg OutputConfig, deviceID string, drv Driver) *Number {
	return &Number{
		base: base{
			id:       cfg.ID,
			name:     cfg.Name,
			deviceID: deviceID,
			kind:     KindNumber,
			pins:     cfg.Pins(),
			drv:      drv,
		},
		params: cfg.Params,
		mode:   cfg.Mode,
		value:  cfg.Minimum,
	}
}

// SetValue snaps value to the step grid, normalizes it, and writes the
// channel. Values outside [Minimum, Maximum] are clamped.
func (n *Number) SetValue(ctx context.Context, value float64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.setLocked(ctx, value)
}

func (n *Number) setLocked(ctx context.Context, value float64) error {
	v := n.params.Quantize(value)
	pwm, err := n.params.Normalize(v)
	if err != nil {
		return err
	}
	if err := n.drv.SetChannel(ctx, n.pins[0], pwm); err != nil {
		return err
	}
	n.value = v
	n.pwm = pwm
	return nil
}

// Value returns the last value written.
func (n *Number) Value() float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.value
}

// Frequency returns the PWM frequency of the device driving the number.
func (n *Number) Frequency(ctx context.Context) (int, error) {
	return n.drv.Frequency(ctx)
}

// Invert reports whether the output is inverted.
func (n *Number) Invert() bool {
	return n.params.Invert
}

// Mode returns the display mode (slider, box, auto).
func (n *Number) Mode() string {
	return n.mode
}

// Params returns the normalization parameters.
func (n *Number) Params() normalize.Params {
	return n.params
}

// State returns the current state. A number counts as on while its
// channel is non-zero.
func (n *Number) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stateLocked()
}

func (n *Number) stateLocked() State {
	v := n.value
	return State{On: n.pwm > 0, Value: &v}
}

// restore writes the stored value, or the minimum when none was stored.
func (n *Number) restore(ctx context.Context, st State, found bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	value := n.params.Minimum
	if found && st.Value != nil {
		value = *st.Value
	}
	return n.setLocked(ctx, value)
}

func (n *Number) execute(ctx context.Context, cmd Command) error {
	switch cmd.Action {
	case ActionSetValue:
		if cmd.Value == nil {
			return fmt.Errorf("%w: value is required", ErrInvalidParameters)
		}
		return n.SetValue(ctx, *cmd.Value)
	case ActionTurnOn, ActionTurnOff:
		return fmt.Errorf("%w: %s is not supported by number %q", ErrInvalidCommand, cmd.Action, n.id)
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidCommand, cmd.Action)
	}
}

// forceOffLocked records a zero channel written outside the number. The
// value becomes the one that normalizes to zero. The caller holds n.mu.
func (n *Number) forceOffLocked() {
	zero := n.params.NormalizeLower
	if n.params.Invert {
		zero = n.params.NormalizeUpper
	}
	n.value = n.params.Clamp(zero)
	n.pwm = 0
}

func (n *Number) snapshot() Snapshot {
	n.mu.Lock()
	defer n.mu.Unlock()
	return Snapshot{
		OutputID: n.id,
		DeviceID: n.deviceID,
		Name:     n.name,
		Kind:     n.kind,
		Pins:     n.Pins(),
		PWM:      []int{n.pwm},
		State:    n.stateLocked(),
	}
}
