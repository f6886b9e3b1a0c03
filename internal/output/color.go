package output

import (
	"fmt"
	"math"
)

// HSToRGB converts hue (0-360) and saturation (0-100) at full value to
// 8-bit RGB. Components are truncated, not rounded.
func HSToRGB(hue, saturation float64) [3]int {
	r, g, b := hsvToRGB(hue/360, saturation/100, 1)
	return [3]int{int(r * 255), int(g * 255), int(b * 255)}
}

func hsvToRGB(h, s, v float64) (float64, float64, float64) {
	if s == 0 {
		return v, v, v
	}
	i := int(h * 6)
	f := h*6 - float64(i)
	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))

	switch ((i % 6) + 6) % 6 {
	case 0:
		return v, t, p
	case 1:
		return q, v, p
	case 2:
		return p, v, t
	case 3:
		return p, q, v
	case 4:
		return t, p, v
	default:
		return v, p, q
	}
}

// RGBToRGBW moves the common part of r, g and b into a white channel, then
// scales the result so its largest component matches the largest input
// component.
func RGBToRGBW(r, g, b int) [4]int {
	w := min(r, g, b)
	out := [4]int{r - w, g - w, b - w, w}

	maxIn := max(r, g, b)
	maxOut := max(out[0], out[1], out[2], out[3])
	factor := 0.0
	if maxOut != 0 {
		factor = float64(maxIn) / float64(maxOut)
	}
	for i := range out {
		out[i] = int(math.RoundToEven(float64(out[i]) * factor))
	}
	return out
}

// ColorChannels returns the PWM value per channel of a colour light.
//
// The HS colour is converted to RGB (and to RGBW when channels is 4), then
// every component is scaled so the brightest one equals level.
//
// Parameters:
//   - hs: Hue 0-360, saturation 0-100
//   - level: Brightness on the 12-bit scale
//   - channels: 3 or 4
func ColorChannels(hs [2]float64, level, channels int) []int {
	rgb := HSToRGB(hs[0], hs[1])
	color := rgb[:]
	if channels == 4 {
		rgbw := RGBToRGBW(rgb[0], rgb[1], rgb[2])
		color = rgbw[:]
	}

	peak := 0
	for _, c := range color {
		peak = max(peak, c)
	}

	values := make([]int, len(color))
	if peak == 0 {
		return values
	}
	for i, c := range color {
		values[i] = int(float64(c) / float64(peak) * float64(level))
	}
	return values
}

// brightnessToPWM maps a 0-255 brightness onto the 12-bit range.
func brightnessToPWM(brightness int) int {
	return brightness * brightnessMultiplier
}

func validateBrightness(b int) error {
	if b < 0 || b > MaxBrightness {
		return fmt.Errorf("%w: brightness %d must be between 0 and %d", ErrInvalidParameters, b, MaxBrightness)
	}
	return nil
}

func validateHS(hs [2]float64) error {
	if hs[0] < 0 || hs[0] > 360 || math.IsNaN(hs[0]) {
		return fmt.Errorf("%w: hue %g must be between 0 and 360", ErrInvalidParameters, hs[0])
	}
	if hs[1] < 0 || hs[1] > 100 || math.IsNaN(hs[1]) {
		return fmt.Errorf("%w: saturation %g must be between 0 and 100", ErrInvalidParameters, hs[1])
	}
	return nil
}
