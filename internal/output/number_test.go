package output

import (
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/gray-logic-pwm/internal/normalize"
)

func TestNumber_SetValue(t *testing.T) {
	tests := []struct {
		name      string
		params    normalize.Params
		value     float64
		wantPWM   int
		wantValue float64
	}{
		{"minimum", normalize.Params{Maximum: 100, NormalizeUpper: 100, Step: 1}, 0, 0, 0},
		{"maximum", normalize.Params{Maximum: 100, NormalizeUpper: 100, Step: 1}, 100, 4095, 100},
		{"half rounds up", normalize.Params{Maximum: 100, NormalizeUpper: 100, Step: 1}, 50, 2048, 50},
		{"clamped above", normalize.Params{Maximum: 100, NormalizeUpper: 100, Step: 1}, 150, 4095, 100},
		{"snapped to step", normalize.Params{Maximum: 100, NormalizeUpper: 100, Step: 10}, 24, 819, 20},
		{"inverted", normalize.Params{Maximum: 100, NormalizeUpper: 100, Invert: true, Step: 1}, 0, 4095, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testDevice()
			cfg.Outputs[3].Params = tt.params
			rig := newTestRig(t, cfg)

			fan, err := rig.mgr.Number("fan")
			if err != nil {
				t.Fatalf("Number() error = %v", err)
			}
			if err := fan.SetValue(context.Background(), tt.value); err != nil {
				t.Fatalf("SetValue() error = %v", err)
			}
			if got := rig.channel(8); got != tt.wantPWM {
				t.Errorf("channel 8 = %d, want %d", got, tt.wantPWM)
			}
			if got := fan.Value(); got != tt.wantValue {
				t.Errorf("Value() = %g, want %g", got, tt.wantValue)
			}
		})
	}
}

func TestNumber_Attributes(t *testing.T) {
	cfg := testDevice()
	cfg.Outputs[3].Invert = true
	cfg.Outputs[3].Mode = ModeBox
	cfg.Frequency = 50
	rig := newTestRig(t, cfg)
	ctx := context.Background()

	if err := rig.mgr.Restore(ctx); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	fan, _ := rig.mgr.Number("fan")
	if !fan.Invert() {
		t.Error("Invert() = false, want true")
	}
	if fan.Mode() != ModeBox {
		t.Errorf("Mode() = %q, want %q", fan.Mode(), ModeBox)
	}
	hz, err := fan.Frequency(ctx)
	if err != nil {
		t.Fatalf("Frequency() error = %v", err)
	}
	if hz != 50 {
		t.Errorf("Frequency() = %d, want 50", hz)
	}
}

func TestNumber_RejectsLightCommands(t *testing.T) {
	rig := newTestRig(t, testDevice())

	_, err := rig.mgr.Execute(context.Background(), "fan", Command{Action: ActionTurnOn})
	if !errors.Is(err, ErrInvalidCommand) {
		t.Errorf("Execute(turn_on) error = %v, want ErrInvalidCommand", err)
	}

	_, err = rig.mgr.Execute(context.Background(), "fan", Command{Action: ActionSetValue})
	if !errors.Is(err, ErrInvalidParameters) {
		t.Errorf("Execute(set_value without value) error = %v, want ErrInvalidParameters", err)
	}
}
