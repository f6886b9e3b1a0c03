package output

import (
	"context"
	"time"
)

// Kind identifies the type of an output.
type Kind string

// Output kinds.
const (
	KindLight     Kind = "light"
	KindRGBLight  Kind = "rgb_light"
	KindRGBWLight Kind = "rgbw_light"
	KindNumber    Kind = "number"
)

// IsLight reports whether k is one of the light kinds.
func (k Kind) IsLight() bool {
	return k == KindLight || k == KindRGBLight || k == KindRGBWLight
}

// Number display modes, passed through to UIs.
const (
	ModeSlider = "slider"
	ModeBox    = "box"
	ModeAuto   = "auto"
)

// Command actions.
const (
	ActionTurnOn   = "turn_on"
	ActionTurnOff  = "turn_off"
	ActionSetValue = "set_value"
)

// State change sources recorded in history.
const (
	SourceMQTT    = "mqtt"
	SourceAPI     = "api"
	SourceRestore = "restore"
	SourceAllOff  = "all_off"

	// SourceTransitionError marks the state left behind by a transition
	// that stopped on a bus error.
	SourceTransitionError = "transition_error"
)

// Light defaults applied when no state has been stored.
const (
	DefaultBrightness = 255
	MaxBrightness     = 255

	// brightnessMultiplier maps 0-255 onto the 12-bit range.
	brightnessMultiplier = 16
)

// DefaultHS is the colour used by RGB(W) lights without stored state.
var DefaultHS = [2]float64{0, 0}

// State is the persisted state of one output.
type State struct {
	On         bool        `json:"on"`
	Brightness int         `json:"brightness,omitempty"`
	HS         *[2]float64 `json:"hs_color,omitempty"`
	Value      *float64    `json:"value,omitempty"`
}

// Snapshot is the published view of one output.
type Snapshot struct {
	OutputID  string    `json:"output_id"`
	DeviceID  string    `json:"device_id"`
	Name      string    `json:"name,omitempty"`
	Kind      Kind      `json:"kind"`
	Pins      []int     `json:"pins"`
	PWM       []int     `json:"pwm"`
	State     State     `json:"state"`
	Source    string    `json:"source,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Command is a request to change an output.
type Command struct {
	// Action is one of ActionTurnOn, ActionTurnOff, ActionSetValue.
	Action string

	// Brightness 0-255 (turn_on).
	Brightness *int

	// HS is hue 0-360 and saturation 0-100 (turn_on, RGB(W) only).
	HS *[2]float64

	// Transition ramps lights over the duration (turn_on, turn_off).
	Transition *time.Duration

	// Value is the logical value of a number (set_value).
	Value *float64

	// Source is recorded in state history.
	Source string
}

// Driver is the PCA9685 capability an output needs. *pca9685.Driver
// satisfies it.
type Driver interface {
	SetChannel(ctx context.Context, channel, value int) error
	Channel(ctx context.Context, channel int) (int, error)
	SetAll(ctx context.Context, value int) error
	SetFrequency(ctx context.Context, hz int) error
	Frequency(ctx context.Context) (int, error)
}

// OutputEnabler switches the /OE pin of a device. *gpio.OutputEnable
// satisfies it.
type OutputEnabler interface {
	Enable() error
	Disable() error
}

// StateStore persists the last state of every output.
//
// Implementations must be thread-safe.
type StateStore interface {
	// Load returns the last saved state. found is false when nothing has
	// been saved for outputID.
	Load(ctx context.Context, outputID string) (state State, found bool, err error)

	// Save stores state as the last state and appends it to history.
	Save(ctx context.Context, outputID string, state State, source string) error
}

// Observer receives state and frequency changes. Calls are made
// synchronously after the hardware write; implementations must not block.
type Observer interface {
	OutputChanged(snap Snapshot)
	FrequencyChanged(deviceID string, hz int)
}

// DeviceInfo describes a configured device.
type DeviceInfo struct {
	ID        string   `json:"id"`
	Name      string   `json:"name,omitempty"`
	Bus       string   `json:"bus"`
	Address   int      `json:"address"`
	Frequency int      `json:"frequency"`
	Simulate  bool     `json:"simulate"`
	Outputs   []string `json:"outputs"`
}
