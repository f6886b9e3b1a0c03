// Package normalize maps a logical numeric value onto the 12-bit PWM range.
//
// The mapping is affine: the value is clamped to [Minimum, Maximum],
// optionally inverted against NormalizeUpper, then scaled so that
// NormalizeLower lands on 0 and NormalizeUpper lands on 4095.
package normalize

import (
	"errors"
	"fmt"
	"math"
)

// MaxPWM is the largest 12-bit output value.
const MaxPWM = 4095

// ErrConfiguration is returned for degenerate parameters.
var ErrConfiguration = errors.New("normalize: invalid configuration")

// Params describes the logical range of a numeric output.
type Params struct {
	Minimum        float64 `json:"minimum" yaml:"minimum"`
	Maximum        float64 `json:"maximum" yaml:"maximum"`
	Invert         bool    `json:"invert" yaml:"invert"`
	NormalizeLower float64 `json:"normalize_lower" yaml:"normalize_lower"`
	NormalizeUpper float64 `json:"normalize_upper" yaml:"normalize_upper"`
	Step           float64 `json:"step" yaml:"step"`
}

// Validate rejects parameters that cannot be evaluated.
//
// Returns:
//   - error: ErrConfiguration if the normalization bounds are equal,
//     the minimum exceeds the maximum, or the step is negative
func (p Params) Validate() error {
	if p.NormalizeUpper == p.NormalizeLower {
		return fmt.Errorf("%w: normalize_upper equals normalize_lower (%g)", ErrConfiguration, p.NormalizeLower)
	}
	if p.Minimum > p.Maximum {
		return fmt.Errorf("%w: minimum %g greater than maximum %g", ErrConfiguration, p.Minimum, p.Maximum)
	}
	if p.Step < 0 {
		return fmt.Errorf("%w: negative step %g", ErrConfiguration, p.Step)
	}
	return nil
}

// Clamp limits value to [Minimum, Maximum].
func (p Params) Clamp(value float64) float64 {
	return math.Min(math.Max(value, p.Minimum), p.Maximum)
}

// Normalize converts value to a PWM value in [0, 4095].
//
//  1. clamp to [Minimum, Maximum]
//  2. when inverted, take NormalizeUpper - value
//  3. shift by NormalizeLower
//  4. scale by 4095 / (NormalizeUpper - NormalizeLower) and round
//  5. clamp to [0, 4095]
func (p Params) Normalize(value float64) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	used := p.Clamp(value)
	if p.Invert {
		used = p.NormalizeUpper - used
	}
	used -= p.NormalizeLower

	scaled := int(math.Round(used / (p.NormalizeUpper - p.NormalizeLower) * MaxPWM))
	return min(max(scaled, 0), MaxPWM), nil
}

// Quantize snaps value onto the step grid anchored at Minimum and clamps
// the result. A zero step only clamps.
func (p Params) Quantize(value float64) float64 {
	v := p.Clamp(value)
	if p.Step <= 0 {
		return v
	}
	steps := math.Round((v - p.Minimum) / p.Step)
	return p.Clamp(p.Minimum + steps*p.Step)
}
