package output

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-pwm/internal/transition"
)

// base holds what every output kind shares.
type base struct {
	id       string
	name     string
	deviceID string
	kind     Kind
	pins     []int
	drv      Driver

	// mu serialises commands on the output. Taken before the transition
	// engine's output lock and the driver's bus lock.
	mu sync.Mutex
}

func (b *base) common() *base { return b }

// ID returns the output ID.
func (b *base) ID() string { return b.id }

// Kind returns the output kind.
func (b *base) Kind() Kind { return b.kind }

// Pins returns a copy of the output's channels.
func (b *base) Pins() []int { return append([]int(nil), b.pins...) }

// On carries the optional parameters of a turn-on request.
type On struct {
	Brightness *int
	HS         *[2]float64
	Transition *time.Duration
}

// Off carries the optional parameters of a turn-off request.
type Off struct {
	Transition *time.Duration
}

// Light is a dimmable output on one channel, or a colour output on three
// (RGB) or four (RGBW) channels.
//
// Brightness is 0-255 and maps to PWM as brightness*16. Colour lights take
// an HS colour; the brightest component is driven at the brightness level
// and the others are scaled to keep the hue.
type Light struct {
	base
	engine *transition.Engine

	on         bool
	brightness int
	hs         [2]float64
	pwm        []int

	// ramping is set while the last drive was a transition. A failed step
	// only rewrites state the transition still owns.
	ramping bool
}

func newLight(cfg OutputConfig, deviceID string, drv Driver, engine *transition.Engine) *Light {
	pins := cfg.Pins()
	return &Light{
		base: base{
			id:       cfg.ID,
			name:     cfg.Name,
			deviceID: deviceID,
			kind:     cfg.Kind(),
			pins:     pins,
			drv:      drv,
		},
		engine:     engine,
		brightness: DefaultBrightness,
		hs:         DefaultHS,
		pwm:        make([]int, len(pins)),
	}
}

// TurnOn switches the light on, optionally with a new brightness, colour,
// or a transition from the current channel values.
//
// Returns:
//   - error: ErrInvalidParameters for out-of-range values or a colour on a
//     single-channel light; driver errors from the direct write or the
//     begin-value reads of a transition
func (l *Light) TurnOn(ctx context.Context, req On) error {
	if req.Brightness != nil {
		if err := validateBrightness(*req.Brightness); err != nil {
			return err
		}
	}
	if req.HS != nil {
		if l.kind == KindLight {
			return fmt.Errorf("%w: hs_color on single-channel light %q", ErrInvalidParameters, l.id)
		}
		if err := validateHS(*req.HS); err != nil {
			return err
		}
	}
	if err := validateTransition(req.Transition); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	brightness := l.brightness
	if req.Brightness != nil {
		brightness = *req.Brightness
	}
	hs := l.hs
	if req.HS != nil {
		hs = *req.HS
	}

	target := l.target(brightness, hs)
	if err := l.drive(ctx, target, req.Transition); err != nil {
		return err
	}

	l.on = true
	l.brightness = brightness
	l.hs = hs
	l.pwm = target
	return nil
}

// TurnOff switches the light off. Nothing is written when the light is
// already off.
func (l *Light) TurnOff(ctx context.Context, req Off) error {
	if err := validateTransition(req.Transition); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.on {
		return nil
	}

	target := make([]int, len(l.pins))
	if err := l.drive(ctx, target, req.Transition); err != nil {
		return err
	}

	l.on = false
	l.pwm = target
	return nil
}

// State returns the current state.
func (l *Light) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stateLocked()
}

func (l *Light) stateLocked() State {
	st := State{On: l.on, Brightness: l.brightness}
	if l.kind != KindLight {
		hs := l.hs
		st.HS = &hs
	}
	return st
}

// target computes the channel values for brightness and colour.
func (l *Light) target(brightness int, hs [2]float64) []int {
	level := brightnessToPWM(brightness)
	if l.kind == KindLight {
		return []int{level}
	}
	return ColorChannels(hs, level, len(l.pins))
}

// drive writes target directly, or ramps to it when a transition is given.
// A direct write cancels any running ramp first.
func (l *Light) drive(ctx context.Context, target []int, tr *time.Duration) error {
	if tr != nil && *tr > 0 {
		running, err := l.engine.Start(ctx, l.id, l.drv, l.pins, target, *tr)
		if err != nil {
			return fmt.Errorf("starting transition: %w", err)
		}
		l.ramping = running
		return nil
	}

	l.ramping = false
	l.engine.Cancel(l.id)
	for i, pin := range l.pins {
		if err := l.drv.SetChannel(ctx, pin, target[i]); err != nil {
			return err
		}
	}
	return nil
}

// restore applies a stored state and drives the hardware to match it.
// Without a stored state the light starts off at the default brightness.
func (l *Light) restore(ctx context.Context, st State, found bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if found {
		l.on = st.On
		if st.Brightness > 0 {
			l.brightness = min(st.Brightness, MaxBrightness)
		}
		if st.HS != nil && validateHS(*st.HS) == nil {
			l.hs = *st.HS
		}
	}

	target := make([]int, len(l.pins))
	if l.on {
		target = l.target(l.brightness, l.hs)
	}
	if err := l.drive(ctx, target, nil); err != nil {
		return err
	}
	l.pwm = target
	return nil
}

func (l *Light) execute(ctx context.Context, cmd Command) error {
	switch cmd.Action {
	case ActionTurnOn:
		return l.TurnOn(ctx, On{Brightness: cmd.Brightness, HS: cmd.HS, Transition: cmd.Transition})
	case ActionTurnOff:
		return l.TurnOff(ctx, Off{Transition: cmd.Transition})
	case ActionSetValue:
		return fmt.Errorf("%w: %s is not supported by %s %q", ErrInvalidCommand, cmd.Action, l.kind, l.id)
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidCommand, cmd.Action)
	}
}

// forceOffLocked records that every channel was switched off outside the
// light. The caller holds l.mu.
func (l *Light) forceOffLocked() {
	l.engine.Cancel(l.id)
	l.ramping = false
	l.on = false
	l.pwm = make([]int, len(l.pins))
}

// transitionAborted records the channel values a failed transition left on
// the bus. The light counts as on while any channel is lit; brightness and
// colour keep the requested values so a retry can reuse them. It reports
// false when a later command already replaced the transition.
func (l *Light) transitionAborted(written []int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.ramping || len(written) != len(l.pins) || l.engine.Running(l.id) {
		return false
	}
	l.ramping = false
	l.pwm = append([]int(nil), written...)
	l.on = false
	for _, v := range written {
		if v > 0 {
			l.on = true
			break
		}
	}
	return true
}

func (l *Light) snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Snapshot{
		OutputID: l.id,
		DeviceID: l.deviceID,
		Name:     l.name,
		Kind:     l.kind,
		Pins:     l.Pins(),
		PWM:      append([]int(nil), l.pwm...),
		State:    l.stateLocked(),
	}
}

func validateTransition(tr *time.Duration) error {
	if tr != nil && *tr < 0 {
		return fmt.Errorf("%w: transition %v must not be negative", ErrInvalidParameters, *tr)
	}
	return nil
}
