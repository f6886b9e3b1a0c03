package output

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-pwm/internal/i2c"
	"github.com/nerrad567/gray-logic-pwm/internal/pca9685"
	"github.com/nerrad567/gray-logic-pwm/internal/transition"
)

const testAddr = 0x40

// manualScheduler fires callbacks only when the test advances its clock.
type manualScheduler struct {
	mu      sync.Mutex
	now     time.Time
	entries []*manualEntry
}

type manualEntry struct {
	mu        sync.Mutex
	interval  time.Duration
	next      time.Time
	fn        func(time.Time)
	cancelled bool
}

func (e *manualEntry) Cancel() {
	e.mu.Lock()
	e.cancelled = true
	e.mu.Unlock()
}

func (e *manualEntry) isCancelled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelled
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (s *manualScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *manualScheduler) SchedulePeriodic(interval time.Duration, fn func(time.Time)) transition.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &manualEntry{interval: interval, next: s.now.Add(interval), fn: fn}
	s.entries = append(s.entries, e)
	return e
}

// Advance moves the clock forward by d, firing due callbacks in order.
func (s *manualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now.Add(d)
	s.mu.Unlock()

	for {
		s.mu.Lock()
		var due *manualEntry
		for _, e := range s.entries {
			if e.isCancelled() || e.next.After(target) {
				continue
			}
			if due == nil || e.next.Before(due.next) {
				due = e
			}
		}
		if due == nil {
			s.now = target
			s.mu.Unlock()
			return
		}
		s.now = due.next
		due.next = due.next.Add(due.interval)
		now := s.now
		s.mu.Unlock()

		due.fn(now)
	}
}

// memStore is an in-memory StateStore.
type memStore struct {
	mu      sync.Mutex
	states  map[string]State
	saves   []string
	loadErr error
	saveErr error
}

func newMemStore() *memStore {
	return &memStore{states: make(map[string]State)}
}

func (s *memStore) Load(_ context.Context, id string) (State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return State{}, false, s.loadErr
	}
	st, ok := s.states[id]
	return st, ok, nil
}

func (s *memStore) Save(_ context.Context, id string, st State, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.states[id] = st
	s.saves = append(s.saves, id+":"+source)
	return nil
}

func (s *memStore) get(id string) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[id]
	return st, ok
}

// recordingObserver keeps every notification.
type recordingObserver struct {
	mu    sync.Mutex
	snaps []Snapshot
	freqs map[string]int
}

func (o *recordingObserver) OutputChanged(snap Snapshot) {
	o.mu.Lock()
	o.snaps = append(o.snaps, snap)
	o.mu.Unlock()
}

func (o *recordingObserver) FrequencyChanged(deviceID string, hz int) {
	o.mu.Lock()
	if o.freqs == nil {
		o.freqs = make(map[string]int)
	}
	o.freqs[deviceID] = hz
	o.mu.Unlock()
}

func (o *recordingObserver) last() (Snapshot, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.snaps) == 0 {
		return Snapshot{}, false
	}
	return o.snaps[len(o.snaps)-1], true
}

// fakeEnabler records /OE changes.
type fakeEnabler struct {
	mu      sync.Mutex
	enabled bool
	calls   []string
	err     error
}

func (f *fakeEnabler) Enable() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "enable")
	if f.err != nil {
		return f.err
	}
	f.enabled = true
	return nil
}

func (f *fakeEnabler) Disable() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "disable")
	f.enabled = false
	return nil
}

var errBusDown = errors.New("bus down")

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func durPtr(d time.Duration) *time.Duration { return &d }

// testDevice returns a device with a simple light on pin 0, an RGB light
// on pins 1-3, an RGBW light on pins 4-7, and a 0-100 number on pin 8.
func testDevice() DeviceConfig {
	cfg := DeviceConfig{
		ID:      "pca-1",
		Backend: i2c.BackendMemory,
		Bus:     "test",
		Outputs: []OutputConfig{
			{ID: "lamp", Type: TypeLight, Pin: intPtr(0)},
			{ID: "strip", Type: TypeLight, PinRed: intPtr(1), PinGreen: intPtr(2), PinBlue: intPtr(3)},
			{ID: "wash", Type: TypeLight, PinRed: intPtr(4), PinGreen: intPtr(5), PinBlue: intPtr(6), PinWhite: intPtr(7)},
			{ID: "fan", Type: TypeNumber, Pin: intPtr(8)},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

type testRig struct {
	mgr   *Manager
	bus   *i2c.MemoryBus
	drv   *pca9685.Driver
	sched *manualScheduler
	store *memStore
	obs   *recordingObserver
	oe    *fakeEnabler
}

func newTestRig(t *testing.T, cfg DeviceConfig) *testRig {
	t.Helper()

	bus := i2c.NewMemoryBus()
	drv, err := pca9685.New(bus, testAddr, pca9685.Options{BusID: "memory:test"})
	if err != nil {
		t.Fatalf("pca9685.New() error = %v", err)
	}

	sched := newManualScheduler()
	store := newMemStore()
	mgr := NewManager(ManagerOptions{Store: store, Scheduler: sched, Now: sched.Now})
	obs := &recordingObserver{}
	mgr.AddObserver(obs)
	oe := &fakeEnabler{}

	if err := mgr.AddDevice(cfg, drv, oe); err != nil {
		t.Fatalf("AddDevice() error = %v", err)
	}
	t.Cleanup(func() { mgr.Close() })

	return &testRig{mgr: mgr, bus: bus, drv: drv, sched: sched, store: store, obs: obs, oe: oe}
}

// channel reads a channel's OFF registers straight from the bus.
func (r *testRig) channel(ch int) int {
	reg := pca9685.ChannelRegister(ch)
	return int(r.bus.Register(testAddr, reg)) + int(r.bus.Register(testAddr, reg+1))*256
}

func (r *testRig) channels(chs ...int) []int {
	out := make([]int, len(chs))
	for i, ch := range chs {
		out[i] = r.channel(ch)
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
