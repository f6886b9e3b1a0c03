package output

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-pwm/internal/i2c"
	"github.com/nerrad567/gray-logic-pwm/internal/pca9685"
)

func TestManager_AddDeviceValidation(t *testing.T) {
	rig := newTestRig(t, testDevice())

	t.Run("duplicate device", func(t *testing.T) {
		err := rig.mgr.AddDevice(testDevice(), rig.drv, nil)
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("AddDevice() error = %v, want ErrInvalidConfig", err)
		}
	})

	t.Run("duplicate output on another device", func(t *testing.T) {
		cfg := testDevice()
		cfg.ID = "pca-2"
		cfg.Address = 0x41
		err := rig.mgr.AddDevice(cfg, rig.drv, nil)
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("AddDevice() error = %v, want ErrInvalidConfig", err)
		}
	})

	t.Run("nil driver", func(t *testing.T) {
		cfg := testDevice()
		cfg.ID = "pca-3"
		err := rig.mgr.AddDevice(cfg, nil, nil)
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("AddDevice() error = %v, want ErrInvalidConfig", err)
		}
	})
}

func TestManager_RestoreDefaults(t *testing.T) {
	rig := newTestRig(t, testDevice())

	if err := rig.mgr.Restore(context.Background()); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	if got := rig.bus.Register(testAddr, pca9685.RegPrescale); got != 30 {
		t.Errorf("prescale = %d, want 30 (200 Hz)", got)
	}
	if got := rig.channels(0, 1, 2, 3, 4, 5, 6, 7, 8); !equalInts(got, make([]int, 9)) {
		t.Errorf("channels = %v, want all zero", got)
	}

	lamp, _ := rig.mgr.Light("lamp")
	if st := lamp.State(); st.On || st.Brightness != DefaultBrightness {
		t.Errorf("lamp state = %+v, want off at default brightness", st)
	}
	fan, _ := rig.mgr.Number("fan")
	if fan.Value() != 0 {
		t.Errorf("fan value = %g, want minimum 0", fan.Value())
	}

	if !rig.oe.enabled {
		t.Error("/OE not enabled after restore")
	}
	if rig.obs.freqs["pca-1"] != 200 {
		t.Errorf("observed frequency = %d, want 200", rig.obs.freqs["pca-1"])
	}
}

func TestManager_RestoreStoredState(t *testing.T) {
	rig := newTestRig(t, testDevice())
	hs := [2]float64{120, 100}
	rig.store.states["lamp"] = State{On: true, Brightness: 100}
	rig.store.states["strip"] = State{On: true, Brightness: 255, HS: &hs}
	rig.store.states["wash"] = State{On: false, Brightness: 50}
	rig.store.states["fan"] = State{Value: floatPtr(50)}

	if err := rig.mgr.Restore(context.Background()); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	if got := rig.channel(0); got != 1600 {
		t.Errorf("lamp channel = %d, want 1600", got)
	}
	if got := rig.channels(1, 2, 3); !equalInts(got, []int{0, 4080, 0}) {
		t.Errorf("strip channels = %v, want [0 4080 0]", got)
	}
	if got := rig.channels(4, 5, 6, 7); !equalInts(got, []int{0, 0, 0, 0}) {
		t.Errorf("wash channels = %v, want off", got)
	}
	if got := rig.channel(8); got != 2048 {
		t.Errorf("fan channel = %d, want 2048", got)
	}

	wash, _ := rig.mgr.Light("wash")
	if st := wash.State(); st.Brightness != 50 || st.On {
		t.Errorf("wash state = %+v, want off with brightness 50", st)
	}

	// Restore publishes but does not rewrite the store.
	if len(rig.store.saves) != 0 {
		t.Errorf("store saves = %v, want none", rig.store.saves)
	}
	if snap, ok := rig.obs.last(); !ok || snap.Source != SourceRestore {
		t.Errorf("last snapshot = %+v, want source %q", snap, SourceRestore)
	}
}

func TestManager_RestoreLoadErrorFallsBack(t *testing.T) {
	rig := newTestRig(t, testDevice())
	rig.store.loadErr = errors.New("disk gone")

	if err := rig.mgr.Restore(context.Background()); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if !rig.oe.enabled {
		t.Error("/OE not enabled")
	}
}

func TestManager_RestoreBusFailureKeepsOutputsDisabled(t *testing.T) {
	rig := newTestRig(t, testDevice())
	rig.bus.Fail(errBusDown)

	err := rig.mgr.Restore(context.Background())
	if !errors.Is(err, pca9685.ErrBus) {
		t.Fatalf("Restore() error = %v, want ErrBus", err)
	}
	if rig.oe.enabled {
		t.Error("/OE enabled despite failed restore")
	}
}

func TestManager_RestoreMultipleDevices(t *testing.T) {
	sched := newManualScheduler()
	mgr := NewManager(ManagerOptions{Scheduler: sched, Now: sched.Now})
	t.Cleanup(func() { mgr.Close() })

	var locks i2c.Locks
	bus := i2c.NewMemoryBus()
	for i, addr := range []int{0x40, 0x41, 0x42} {
		drv, err := pca9685.New(bus, uint16(addr), pca9685.Options{Lock: locks.For("shared")})
		if err != nil {
			t.Fatalf("pca9685.New() error = %v", err)
		}
		cfg := DeviceConfig{
			ID:        string(rune('a' + i)),
			Backend:   i2c.BackendMemory,
			Bus:       "shared",
			Address:   addr,
			Frequency: 1000 + i,
			Outputs:   []OutputConfig{{ID: "out-" + string(rune('a'+i)), Type: TypeLight, Pin: intPtr(0)}},
		}
		cfg.ApplyDefaults()
		if err := mgr.AddDevice(cfg, drv, nil); err != nil {
			t.Fatalf("AddDevice() error = %v", err)
		}
	}

	if err := mgr.Restore(context.Background()); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	for i, addr := range []uint16{0x40, 0x41, 0x42} {
		want := byte(pca9685.PrescaleFromFrequency(1000 + i))
		if got := bus.Register(addr, pca9685.RegPrescale); got != want {
			t.Errorf("device 0x%02X prescale = %d, want %d", addr, got, want)
		}
	}
	if got := len(mgr.Devices()); got != 3 {
		t.Errorf("Devices() = %d, want 3", got)
	}
}

func TestManager_Execute(t *testing.T) {
	rig := newTestRig(t, testDevice())
	ctx := context.Background()

	snap, err := rig.mgr.Execute(ctx, "lamp", Command{
		Action:     ActionTurnOn,
		Brightness: intPtr(64),
		Source:     SourceMQTT,
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if !snap.State.On || snap.State.Brightness != 64 {
		t.Errorf("snapshot state = %+v, want on at 64", snap.State)
	}
	if !equalInts(snap.PWM, []int{1024}) {
		t.Errorf("snapshot PWM = %v, want [1024]", snap.PWM)
	}
	if snap.Source != SourceMQTT || snap.DeviceID != "pca-1" || snap.Kind != KindLight {
		t.Errorf("snapshot = %+v", snap)
	}
	if !snap.Timestamp.Equal(rig.sched.Now()) {
		t.Errorf("snapshot timestamp = %v, want %v", snap.Timestamp, rig.sched.Now())
	}

	st, ok := rig.store.get("lamp")
	if !ok || st.Brightness != 64 || !st.On {
		t.Errorf("stored state = %+v (found %v)", st, ok)
	}
	if got, ok := rig.obs.last(); !ok || got.OutputID != "lamp" {
		t.Errorf("observer last = %+v", got)
	}

	snap, err = rig.mgr.Execute(ctx, "fan", Command{Action: ActionSetValue, Value: floatPtr(25)})
	if err != nil {
		t.Fatalf("Execute(fan) error = %v", err)
	}
	if snap.State.Value == nil || *snap.State.Value != 25 || snap.Source != SourceAPI {
		t.Errorf("fan snapshot = %+v", snap)
	}
}

func TestManager_ExecuteErrors(t *testing.T) {
	rig := newTestRig(t, testDevice())
	ctx := context.Background()

	tests := []struct {
		name    string
		id      string
		cmd     Command
		wantErr error
	}{
		{"unknown output", "nope", Command{Action: ActionTurnOn}, ErrOutputNotFound},
		{"unknown action", "lamp", Command{Action: "explode"}, ErrInvalidCommand},
		{"set_value on light", "lamp", Command{Action: ActionSetValue, Value: floatPtr(1)}, ErrInvalidCommand},
		{"bad brightness", "lamp", Command{Action: ActionTurnOn, Brightness: intPtr(300)}, ErrInvalidParameters},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := rig.mgr.Execute(ctx, tt.id, tt.cmd)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Execute() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if len(rig.store.saves) != 0 {
		t.Errorf("failed commands saved state: %v", rig.store.saves)
	}
}

func TestManager_ExecuteSaveFailureStillSucceeds(t *testing.T) {
	rig := newTestRig(t, testDevice())
	rig.store.saveErr = errors.New("read-only")

	if _, err := rig.mgr.Execute(context.Background(), "lamp", Command{Action: ActionTurnOn}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := rig.channel(0); got != 4080 {
		t.Errorf("channel 0 = %d, want 4080", got)
	}
}

func TestManager_SetFrequency(t *testing.T) {
	rig := newTestRig(t, testDevice())
	ctx := context.Background()

	if err := rig.mgr.SetFrequency(ctx, "pca-1", 1000); err != nil {
		t.Fatalf("SetFrequency() error = %v", err)
	}
	hz, err := rig.mgr.Frequency(ctx, "pca-1")
	if err != nil {
		t.Fatalf("Frequency() error = %v", err)
	}
	if hz != 1017 {
		// prescale 5 reads back as 1017 Hz
		t.Errorf("Frequency() = %d, want 1017", hz)
	}
	info, _ := rig.mgr.Device("pca-1")
	if info.Frequency != 1000 {
		t.Errorf("Device().Frequency = %d, want 1000", info.Frequency)
	}
	if rig.obs.freqs["pca-1"] != 1000 {
		t.Errorf("observed frequency = %d, want 1000", rig.obs.freqs["pca-1"])
	}

	if err := rig.mgr.SetFrequency(ctx, "pca-1", 2000); !errors.Is(err, pca9685.ErrRange) {
		t.Errorf("SetFrequency(2000) error = %v, want ErrRange", err)
	}
	if err := rig.mgr.SetFrequency(ctx, "nope", 200); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("SetFrequency(unknown) error = %v, want ErrDeviceNotFound", err)
	}
}

func TestManager_AllOff(t *testing.T) {
	cfg := testDevice()
	cfg.Outputs[3].Invert = true
	rig := newTestRig(t, cfg)
	ctx := context.Background()

	if _, err := rig.mgr.Execute(ctx, "lamp", Command{Action: ActionTurnOn}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if _, err := rig.mgr.Execute(ctx, "strip", Command{Action: ActionTurnOn, Transition: durPtr(time.Second)}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	rig.sched.Advance(150 * time.Millisecond)

	snaps, err := rig.mgr.AllOff(ctx, "pca-1")
	if err != nil {
		t.Fatalf("AllOff() error = %v", err)
	}
	if len(snaps) != 4 {
		t.Fatalf("AllOff() snapshots = %d, want 4", len(snaps))
	}

	if rig.bus.Register(testAddr, pca9685.RegAllOffL) != 0 || rig.bus.Register(testAddr, pca9685.RegAllOffH) != 0 {
		t.Error("ALL_LED OFF registers not zero")
	}
	if rig.mgr.engine.Running("strip") {
		t.Error("strip transition still running after AllOff")
	}

	for _, snap := range snaps {
		if snap.State.On {
			t.Errorf("%s still on", snap.OutputID)
		}
		if snap.Source != SourceAllOff {
			t.Errorf("%s source = %q, want %q", snap.OutputID, snap.Source, SourceAllOff)
		}
	}

	fan, _ := rig.mgr.Number("fan")
	if fan.Value() != 100 {
		t.Errorf("inverted fan value = %g, want 100 (normalizes to 0)", fan.Value())
	}
}

func TestManager_AllOffThenRampedTurnOn(t *testing.T) {
	rig := newTestRig(t, testDevice())
	ctx := context.Background()

	if _, err := rig.mgr.Execute(ctx, "lamp", Command{Action: ActionTurnOn, Brightness: intPtr(255)}); err != nil {
		t.Fatalf("Execute(turn_on) error = %v", err)
	}
	if got := rig.channel(0); got != 4080 {
		t.Fatalf("channel 0 = %d, want 4080", got)
	}

	if _, err := rig.mgr.AllOff(ctx, "pca-1"); err != nil {
		t.Fatalf("AllOff() error = %v", err)
	}
	got, err := rig.drv.Channel(ctx, 0)
	if err != nil {
		t.Fatalf("Channel(0) error = %v", err)
	}
	if got != 0 {
		t.Fatalf("Channel(0) after AllOff = %d, want 0", got)
	}

	// The ramp starts from the zeroed channel, not the pre-AllOff value.
	if _, err := rig.mgr.Execute(ctx, "lamp", Command{Action: ActionTurnOn, Brightness: intPtr(255), Transition: durPtr(time.Second)}); err != nil {
		t.Fatalf("Execute(turn_on transition) error = %v", err)
	}
	if !rig.mgr.engine.Running("lamp") {
		t.Fatal("transition not running after AllOff")
	}

	rig.sched.Advance(150 * time.Millisecond)
	if got := rig.channel(0); got <= 0 || got >= 4080 {
		t.Errorf("channel 0 mid-ramp = %d, want strictly between 0 and 4080", got)
	}

	rig.sched.Advance(time.Second)
	if rig.mgr.engine.Running("lamp") {
		t.Error("transition still running after its duration")
	}
	if got := rig.channel(0); got != 4080 {
		t.Errorf("channel 0 after ramp = %d, want 4080", got)
	}
}

func TestManager_TransitionBusError(t *testing.T) {
	tests := []struct {
		name     string
		setup    []Command
		cmd      Command
		wantPWM  int
		wantOn   bool
		wantSave string
	}{
		{
			name:    "ramp up stops part way",
			cmd:     Command{Action: ActionTurnOn, Brightness: intPtr(255), Transition: durPtr(time.Second)},
			wantPWM: 612, // 4080 * 150ms/1s
			wantOn:  true,
		},
		{
			name:    "ramp down keeps light on",
			setup:   []Command{{Action: ActionTurnOn, Brightness: intPtr(255)}},
			cmd:     Command{Action: ActionTurnOff, Transition: durPtr(time.Second)},
			wantPWM: 3468, // 4080 - 612
			wantOn:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rig := newTestRig(t, testDevice())
			ctx := context.Background()

			for _, cmd := range tt.setup {
				if _, err := rig.mgr.Execute(ctx, "lamp", cmd); err != nil {
					t.Fatalf("Execute(setup) error = %v", err)
				}
			}
			if _, err := rig.mgr.Execute(ctx, "lamp", tt.cmd); err != nil {
				t.Fatalf("Execute() error = %v", err)
			}

			rig.sched.Advance(150 * time.Millisecond)
			rig.bus.Fail(errBusDown)
			rig.sched.Advance(150 * time.Millisecond)
			rig.bus.Fail(nil)

			if rig.mgr.engine.Running("lamp") {
				t.Fatal("transition still running after bus error")
			}

			snap, ok := rig.obs.last()
			if !ok {
				t.Fatal("no snapshot published")
			}
			if snap.Source != SourceTransitionError {
				t.Errorf("Source = %q, want %q", snap.Source, SourceTransitionError)
			}
			if len(snap.PWM) != 1 || snap.PWM[0] != tt.wantPWM {
				t.Errorf("PWM = %v, want [%d]", snap.PWM, tt.wantPWM)
			}
			if snap.State.On != tt.wantOn {
				t.Errorf("State.On = %v, want %v", snap.State.On, tt.wantOn)
			}
			if got := rig.channel(0); got != tt.wantPWM {
				t.Errorf("channel 0 = %d, want %d", got, tt.wantPWM)
			}

			rig.store.mu.Lock()
			lastSave := rig.store.saves[len(rig.store.saves)-1]
			rig.store.mu.Unlock()
			if lastSave != "lamp:"+SourceTransitionError {
				t.Errorf("last save = %q, want lamp:%s", lastSave, SourceTransitionError)
			}
		})
	}
}

func TestManager_TransitionBusErrorAfterNewCommand(t *testing.T) {
	rig := newTestRig(t, testDevice())
	ctx := context.Background()
	lamp, _ := rig.mgr.Light("lamp")

	if _, err := rig.mgr.Execute(ctx, "lamp", Command{Action: ActionTurnOn, Transition: durPtr(time.Second)}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	// A direct write takes over before any step fails.
	if _, err := rig.mgr.Execute(ctx, "lamp", Command{Action: ActionTurnOn, Brightness: intPtr(100)}); err != nil {
		t.Fatalf("Execute(direct) error = %v", err)
	}

	if lamp.transitionAborted([]int{0}) {
		t.Error("transitionAborted() = true after a direct write replaced the ramp")
	}
	if st := lamp.State(); !st.On || st.Brightness != 100 {
		t.Errorf("State() = %+v, want on at 100", st)
	}
}

func TestManager_Probe(t *testing.T) {
	rig := newTestRig(t, testDevice())

	if failed := rig.mgr.Probe(context.Background()); len(failed) != 0 {
		t.Errorf("Probe() = %v, want none", failed)
	}

	rig.bus.Fail(errBusDown)
	failed := rig.mgr.Probe(context.Background())
	if !errors.Is(failed["pca-1"], pca9685.ErrBus) {
		t.Errorf("Probe()[pca-1] = %v, want ErrBus", failed["pca-1"])
	}
}

func TestManager_OutputsAndClose(t *testing.T) {
	rig := newTestRig(t, testDevice())

	snaps := rig.mgr.Outputs()
	ids := make([]string, len(snaps))
	for i, s := range snaps {
		ids[i] = s.OutputID
	}
	want := []string{"lamp", "strip", "wash", "fan"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("Outputs() order = %v, want %v", ids, want)
		}
	}

	snap, err := rig.mgr.Output("wash")
	if err != nil {
		t.Fatalf("Output() error = %v", err)
	}
	if snap.Kind != KindRGBWLight || len(snap.Pins) != 4 {
		t.Errorf("wash snapshot = %+v", snap)
	}
	if _, err := rig.mgr.Output("nope"); !errors.Is(err, ErrOutputNotFound) {
		t.Errorf("Output(unknown) error = %v", err)
	}

	if err := rig.mgr.Restore(context.Background()); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if err := rig.mgr.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if rig.oe.enabled {
		t.Error("/OE still enabled after Close")
	}
}
