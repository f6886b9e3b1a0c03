package output

import (
	"fmt"
	"strings"

	"github.com/nerrad567/gray-logic-pwm/internal/gpio"
	"github.com/nerrad567/gray-logic-pwm/internal/i2c"
	"github.com/nerrad567/gray-logic-pwm/internal/normalize"
	"github.com/nerrad567/gray-logic-pwm/internal/pca9685"
)

// Output types accepted in configuration.
const (
	TypeLight  = "light"
	TypeNumber = "number"
)

// Number defaults, applied when minimum and maximum are both zero.
const (
	DefaultNumberMinimum = 0
	DefaultNumberMaximum = 100
	DefaultNumberStep    = 1
)

// DeviceConfig describes one PCA9685 and the outputs wired to it.
type DeviceConfig struct {
	ID           string         `yaml:"id" json:"id"`
	Name         string         `yaml:"name" json:"name,omitempty"`
	Backend      string         `yaml:"backend" json:"backend,omitempty"`
	Bus          string         `yaml:"bus" json:"bus"`
	Address      int            `yaml:"address" json:"address"`
	Frequency    int            `yaml:"frequency" json:"frequency"`
	Simulate     bool           `yaml:"simulate" json:"simulate"`
	OutputEnable *gpio.Config   `yaml:"output_enable,omitempty" json:"output_enable,omitempty"`
	Outputs      []OutputConfig `yaml:"outputs" json:"outputs"`
}

// OutputConfig describes one output.
//
// A light uses either Pin (single channel) or PinRed/PinGreen/PinBlue with
// an optional PinWhite. A number uses Pin and the normalization fields.
type OutputConfig struct {
	ID       string `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name,omitempty"`
	Type     string `yaml:"type" json:"type"`
	Pin      *int   `yaml:"pin,omitempty" json:"pin,omitempty"`
	PinRed   *int   `yaml:"pin_red,omitempty" json:"pin_red,omitempty"`
	PinGreen *int   `yaml:"pin_green,omitempty" json:"pin_green,omitempty"`
	PinBlue  *int   `yaml:"pin_blue,omitempty" json:"pin_blue,omitempty"`
	PinWhite *int   `yaml:"pin_white,omitempty" json:"pin_white,omitempty"`
	Mode     string `yaml:"mode,omitempty" json:"mode,omitempty"`

	normalize.Params `yaml:",inline"`
}

// Kind derives the output kind from the type and the pins present.
func (c OutputConfig) Kind() Kind {
	if c.Type == TypeNumber {
		return KindNumber
	}
	if c.Pin != nil {
		return KindLight
	}
	if c.PinWhite != nil {
		return KindRGBWLight
	}
	return KindRGBLight
}

// Pins returns the channels of the output in drive order (R, G, B, W for
// colour lights). Missing colour pins are returned as -1.
func (c OutputConfig) Pins() []int {
	switch c.Kind() {
	case KindLight, KindNumber:
		return []int{pinValue(c.Pin)}
	case KindRGBWLight:
		return []int{pinValue(c.PinRed), pinValue(c.PinGreen), pinValue(c.PinBlue), pinValue(c.PinWhite)}
	default:
		return []int{pinValue(c.PinRed), pinValue(c.PinGreen), pinValue(c.PinBlue)}
	}
}

func pinValue(p *int) int {
	if p == nil {
		return -1
	}
	return *p
}

// ApplyDefaults fills unset fields of the device and its outputs.
func (d *DeviceConfig) ApplyDefaults() {
	if d.Backend == "" {
		d.Backend = i2c.BackendDev
	}
	if d.Address == 0 {
		d.Address = pca9685.DefaultAddress
	}
	if d.Frequency == 0 {
		d.Frequency = pca9685.DefaultFrequency
	}
	for i := range d.Outputs {
		o := &d.Outputs[i]
		if o.Type == "" {
			o.Type = TypeLight
		}
		if o.Type != TypeNumber {
			continue
		}
		if o.Mode == "" {
			o.Mode = ModeSlider
		}
		if o.Minimum == 0 && o.Maximum == 0 {
			o.Minimum = DefaultNumberMinimum
			o.Maximum = DefaultNumberMaximum
		}
		if o.NormalizeLower == 0 && o.NormalizeUpper == 0 {
			o.NormalizeLower = o.Minimum
			o.NormalizeUpper = o.Maximum
		}
		if o.Step == 0 {
			o.Step = DefaultNumberStep
		}
	}
}

// ValidateDevices checks a full device list, collecting every problem.
//
// Checked: unique device and output IDs, backend, address, frequency,
// pin ranges, duplicated pins within an output, pins shared between outputs
// of one device, two devices at the same bus address, and number bounds.
//
// Returns:
//   - error: nil if valid, otherwise ErrInvalidConfig listing all problems
func ValidateDevices(devices []DeviceConfig) error {
	var errs []string

	deviceIDs := make(map[string]bool)
	outputIDs := make(map[string]string)
	busAddrs := make(map[string]string)

	for i, d := range devices {
		prefix := fmt.Sprintf("devices[%d]", i)
		if d.ID == "" {
			errs = append(errs, prefix+": id is required")
		} else {
			if deviceIDs[d.ID] {
				errs = append(errs, fmt.Sprintf("%s: duplicate device id %q", prefix, d.ID))
			}
			deviceIDs[d.ID] = true
			prefix = fmt.Sprintf("device %q", d.ID)
		}

		errs = append(errs, validateDevice(prefix, d)...)

		key := fmt.Sprintf("%s|%s|%d", d.Backend, d.Bus, d.Address)
		if other, ok := busAddrs[key]; ok {
			errs = append(errs, fmt.Sprintf("%s: address 0x%02X on bus %q already used by device %q", prefix, d.Address, d.Bus, other))
		} else {
			busAddrs[key] = d.ID
		}

		usedPins := make(map[int]string)
		for j, o := range d.Outputs {
			oprefix := fmt.Sprintf("%s outputs[%d]", prefix, j)
			if o.ID == "" {
				errs = append(errs, oprefix+": id is required")
			} else {
				if owner, ok := outputIDs[o.ID]; ok {
					errs = append(errs, fmt.Sprintf("%s: duplicate output id %q (also on device %q)", oprefix, o.ID, owner))
				}
				outputIDs[o.ID] = d.ID
				oprefix = fmt.Sprintf("%s output %q", prefix, o.ID)
			}

			pinErrs := validateOutput(oprefix, o)
			errs = append(errs, pinErrs...)
			if len(pinErrs) > 0 {
				continue
			}
			for _, pin := range o.Pins() {
				if owner, ok := usedPins[pin]; ok {
					errs = append(errs, fmt.Sprintf("%s: pin %d already used by output %q", oprefix, pin, owner))
					continue
				}
				usedPins[pin] = o.ID
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}

func validateDevice(prefix string, d DeviceConfig) []string {
	var errs []string

	switch strings.ToLower(d.Backend) {
	case i2c.BackendDev, i2c.BackendPeriph, i2c.BackendMemory:
	default:
		errs = append(errs, fmt.Sprintf("%s: unknown backend %q", prefix, d.Backend))
	}
	if d.Address < 1 || d.Address > 0x7F {
		errs = append(errs, fmt.Sprintf("%s: address %d must be a 7-bit address", prefix, d.Address))
	}
	if !pca9685.ValidFrequency(d.Frequency) {
		errs = append(errs, fmt.Sprintf("%s: frequency %d must be between %d and %d",
			prefix, d.Frequency, pca9685.MinFrequency, pca9685.MaxFrequency))
	}
	if d.OutputEnable != nil && d.OutputEnable.Name == "" && d.OutputEnable.Chip == "" {
		errs = append(errs, prefix+": output_enable needs a chip or a line name")
	}
	if len(d.Outputs) == 0 {
		errs = append(errs, prefix+": at least one output is required")
	}
	return errs
}

func validateOutput(prefix string, o OutputConfig) []string {
	var errs []string

	switch o.Type {
	case TypeLight:
		single := o.Pin != nil
		colour := o.PinRed != nil || o.PinGreen != nil || o.PinBlue != nil || o.PinWhite != nil
		switch {
		case single && colour:
			errs = append(errs, prefix+": pin cannot be combined with colour pins")
		case !single && !colour:
			errs = append(errs, prefix+": pin or pin_red/pin_green/pin_blue is required")
		case colour && (o.PinRed == nil || o.PinGreen == nil || o.PinBlue == nil):
			errs = append(errs, prefix+": pin_red, pin_green and pin_blue are all required")
		}
	case TypeNumber:
		if o.Pin == nil {
			errs = append(errs, prefix+": pin is required")
		}
		switch o.Mode {
		case ModeSlider, ModeBox, ModeAuto:
		default:
			errs = append(errs, fmt.Sprintf("%s: unknown mode %q", prefix, o.Mode))
		}
		if err := o.Params.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", prefix, err))
		}
	default:
		errs = append(errs, fmt.Sprintf("%s: unknown type %q", prefix, o.Type))
	}
	if len(errs) > 0 {
		return errs
	}

	seen := make(map[int]bool)
	for _, pin := range o.Pins() {
		if !pca9685.ValidChannel(pin) {
			errs = append(errs, fmt.Sprintf("%s: pin %d must be between 0 and %d", prefix, pin, pca9685.MaxChannel))
			continue
		}
		if seen[pin] {
			errs = append(errs, fmt.Sprintf("%s: pin %d used twice", prefix, pin))
		}
		seen[pin] = true
	}
	return errs
}
