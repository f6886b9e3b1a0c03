package normalize

import (
	"errors"
	"testing"
)

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		params  Params
		wantErr bool
	}{
		{"valid", Params{Minimum: 0, Maximum: 100, NormalizeUpper: 100, Step: 1}, false},
		{"degenerate bounds", Params{Minimum: 0, Maximum: 100, NormalizeLower: 50, NormalizeUpper: 50}, true},
		{"min above max", Params{Minimum: 10, Maximum: 0, NormalizeUpper: 100}, true},
		{"negative step", Params{Maximum: 100, NormalizeUpper: 100, Step: -1}, true},
		{"reversed bounds allowed", Params{Maximum: 100, NormalizeLower: 100, NormalizeUpper: 0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrConfiguration) {
				t.Errorf("error = %v, want ErrConfiguration", err)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	percent := Params{Minimum: 0, Maximum: 100, NormalizeLower: 0, NormalizeUpper: 100, Step: 1}
	offset := Params{Minimum: 20, Maximum: 80, NormalizeLower: 20, NormalizeUpper: 80}
	partial := Params{Minimum: 0, Maximum: 100, NormalizeLower: 0, NormalizeUpper: 50}
	shifted := Params{Minimum: 10, Maximum: 110, NormalizeLower: 10, NormalizeUpper: 110}

	tests := []struct {
		name   string
		params Params
		invert bool
		value  float64
		want   int
	}{
		{"minimum", percent, false, 0, 0},
		{"maximum", percent, false, 100, 4095},
		{"half", percent, false, 50, 2048},
		{"below minimum clamps", percent, false, -10, 0},
		{"above maximum clamps", percent, false, 150, 4095},
		{"inverted minimum", percent, true, 0, 4095},
		{"inverted maximum", percent, true, 100, 0},
		{"inverted quarter", percent, true, 25, 3071},
		{"offset minimum", offset, false, 20, 0},
		{"offset maximum", offset, false, 80, 4095},
		// Inversion is taken against the upper bound before the lower
		// bound is subtracted, so a non-zero lower bound shifts the result.
		{"offset inverted minimum", offset, true, 20, 2730},
		{"offset inverted midpoint", offset, true, 30, 2048},
		{"offset inverted maximum", offset, true, 80, 0},
		{"shifted inverted minimum", shifted, true, 10, 3686},
		{"shifted inverted maximum", shifted, true, 110, 0},
		{"shifted minimum", shifted, false, 10, 0},
		{"shifted maximum", shifted, false, 110, 4095},
		{"saturates above normalize upper", partial, false, 75, 4095},
		{"partial range midpoint", partial, false, 25, 2048},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.params
			p.Invert = tt.invert
			got, err := p.Normalize(tt.value)
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Normalize(%g) = %d, want %d", tt.value, got, tt.want)
			}
		})
	}
}

func TestNormalize_DegenerateBounds(t *testing.T) {
	p := Params{Minimum: 0, Maximum: 10, NormalizeLower: 5, NormalizeUpper: 5}
	if _, err := p.Normalize(5); !errors.Is(err, ErrConfiguration) {
		t.Errorf("Normalize() error = %v, want ErrConfiguration", err)
	}
}

func TestNormalize_AlwaysInRange(t *testing.T) {
	p := Params{Minimum: -50, Maximum: 150, NormalizeLower: 0, NormalizeUpper: 100}
	for _, invert := range []bool{false, true} {
		p.Invert = invert
		for v := -100.0; v <= 200; v += 0.5 {
			got, err := p.Normalize(v)
			if err != nil {
				t.Fatalf("Normalize(%g) error = %v", v, err)
			}
			if got < 0 || got > MaxPWM {
				t.Fatalf("Normalize(%g, invert=%v) = %d, outside [0,%d]", v, invert, got, MaxPWM)
			}
		}
	}
}

func TestQuantize(t *testing.T) {
	p := Params{Minimum: 0, Maximum: 10, Step: 0.5, NormalizeUpper: 10}

	tests := []struct {
		value float64
		want  float64
	}{
		{0.2, 0},
		{0.3, 0.5},
		{7.74, 7.5},
		{12, 10},
		{-3, 0},
	}
	for _, tt := range tests {
		if got := p.Quantize(tt.value); got != tt.want {
			t.Errorf("Quantize(%g) = %g, want %g", tt.value, got, tt.want)
		}
	}

	p.Step = 0
	if got := p.Quantize(3.14); got != 3.14 {
		t.Errorf("Quantize() without step = %g, want 3.14", got)
	}
}
