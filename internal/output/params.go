package output

import (
	"fmt"
	"math"
	"time"
)

// Parameter names accepted by ParseCommand.
const (
	ParamBrightness = "brightness"
	ParamHS         = "hs_color"
	ParamTransition = "transition"
	ParamValue      = "value"
)

// ParseCommand builds a Command from an action name and a decoded JSON
// parameter map, as received over MQTT or HTTP.
//
// transition is given in seconds. Unknown parameters are ignored.
//
// Returns:
//   - Command: Ready for Manager.Execute
//   - error: ErrInvalidCommand for an unknown action, ErrInvalidParameters
//     for a parameter of the wrong type
func ParseCommand(action string, params map[string]any) (Command, error) {
	cmd := Command{Action: action}

	switch action {
	case ActionTurnOn, ActionTurnOff, ActionSetValue:
	default:
		return Command{}, fmt.Errorf("%w: unknown action %q", ErrInvalidCommand, action)
	}

	if v, ok := params[ParamBrightness]; ok {
		n, err := integer(ParamBrightness, v)
		if err != nil {
			return Command{}, err
		}
		cmd.Brightness = &n
	}

	if v, ok := params[ParamHS]; ok {
		hs, err := hsPair(v)
		if err != nil {
			return Command{}, err
		}
		cmd.HS = &hs
	}

	if v, ok := params[ParamTransition]; ok {
		secs, err := number(ParamTransition, v)
		if err != nil {
			return Command{}, err
		}
		d := time.Duration(secs * float64(time.Second))
		cmd.Transition = &d
	}

	if v, ok := params[ParamValue]; ok {
		f, err := number(ParamValue, v)
		if err != nil {
			return Command{}, err
		}
		cmd.Value = &f
	}

	return cmd, nil
}

func number(name string, v any) (float64, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		return 0, fmt.Errorf("%w: %s must be a number, got %T", ErrInvalidParameters, name, v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %s must be finite", ErrInvalidParameters, name)
	}
	return f, nil
}

func integer(name string, v any) (int, error) {
	f, err := number(name, v)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: %s must be a whole number, got %g", ErrInvalidParameters, name, f)
	}
	return int(f), nil
}

func hsPair(v any) ([2]float64, error) {
	var items []any
	switch s := v.(type) {
	case []any:
		items = s
	case []float64:
		items = []any{}
		for _, f := range s {
			items = append(items, f)
		}
	default:
		return [2]float64{}, fmt.Errorf("%w: %s must be [hue, saturation]", ErrInvalidParameters, ParamHS)
	}
	if len(items) != 2 {
		return [2]float64{}, fmt.Errorf("%w: %s must have 2 elements, got %d", ErrInvalidParameters, ParamHS, len(items))
	}

	var hs [2]float64
	for i, item := range items {
		f, err := number(ParamHS, item)
		if err != nil {
			return [2]float64{}, err
		}
		hs[i] = f
	}
	return hs, nil
}
