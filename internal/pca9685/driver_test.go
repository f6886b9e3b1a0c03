package pca9685

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// fakeBus is a register file that records every transaction.
type fakeBus struct {
	mu        sync.Mutex
	regs      map[byte]byte
	writes    []busWrite
	reads     int
	writeErr  error
	readErr   error
	failAfter int // fail writes after this many succeed (0 = never)
}

type busWrite struct {
	Addr  uint16
	Reg   byte
	Value byte
}

func newFakeBus() *fakeBus {
	return &fakeBus{regs: make(map[byte]byte)}
}

func (b *fakeBus) ReadByteData(_ uint16, reg byte) (byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reads++
	if b.readErr != nil {
		return 0, b.readErr
	}
	return b.regs[reg], nil
}

func (b *fakeBus) WriteByteData(addr uint16, reg, value byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.writeErr != nil {
		return b.writeErr
	}
	if b.failAfter > 0 && len(b.writes) >= b.failAfter {
		return errors.New("nack")
	}
	b.writes = append(b.writes, busWrite{Addr: addr, Reg: reg, Value: value})
	b.regs[reg] = value
	return nil
}

func (b *fakeBus) GetWrites() []busWrite {
	b.mu.Lock()
	defer b.mu.Unlock()
	result := make([]busWrite, len(b.writes))
	copy(result, b.writes)
	return result
}

func (b *fakeBus) GetReads() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reads
}

func newTestDriver(t *testing.T, bus Bus) *Driver {
	t.Helper()
	d, err := New(bus, DefaultAddress, Options{BusID: "1"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return d
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		bus     Bus
		address uint16
		opts    Options
		wantErr bool
	}{
		{"valid", newFakeBus(), 0x40, Options{}, false},
		{"highest address", newFakeBus(), 0x7F, Options{}, false},
		{"zero address", newFakeBus(), 0x00, Options{}, true},
		{"ten-bit address", newFakeBus(), 0x80, Options{}, true},
		{"nil bus", nil, 0x40, Options{}, true},
		{"nil bus simulated", nil, 0x40, Options{Simulate: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.bus, tt.address, tt.opts)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrConfiguration) {
				t.Errorf("New() error = %v, want ErrConfiguration", err)
			}
		})
	}
}

func TestSetChannelWritesLowThenHigh(t *testing.T) {
	bus := newFakeBus()
	d := newTestDriver(t, bus)

	if err := d.SetChannel(context.Background(), 0, 2048); err != nil {
		t.Fatalf("SetChannel() error = %v", err)
	}

	want := []busWrite{
		{Addr: 0x40, Reg: 0x08, Value: 0x00},
		{Addr: 0x40, Reg: 0x09, Value: 0x08},
	}
	got := bus.GetWrites()
	if len(got) != len(want) {
		t.Fatalf("writes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("write[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestSetChannelRoundTrip(t *testing.T) {
	bus := newFakeBus()
	d := newTestDriver(t, bus)
	ctx := context.Background()

	for ch := 0; ch <= MaxChannel; ch++ {
		for _, v := range []int{0, 1, 255, 256, 2048, 4094, MaxValue} {
			if err := d.SetChannel(ctx, ch, v); err != nil {
				t.Fatalf("SetChannel(%d, %d) error = %v", ch, v, err)
			}
			got, err := d.Channel(ctx, ch)
			if err != nil {
				t.Fatalf("Channel(%d) error = %v", ch, err)
			}
			if got != v {
				t.Errorf("Channel(%d) = %d, want %d", ch, got, v)
			}
		}
	}
}

func TestRangeErrorsPerformNoIO(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		call func(d *Driver) error
	}{
		{"negative channel", func(d *Driver) error { return d.SetChannel(ctx, -1, 0) }},
		{"channel 16", func(d *Driver) error { return d.SetChannel(ctx, 16, 0) }},
		{"negative value", func(d *Driver) error { return d.SetChannel(ctx, 0, -1) }},
		{"value 4096", func(d *Driver) error { return d.SetChannel(ctx, 0, 4096) }},
		{"read channel 16", func(d *Driver) error { _, err := d.Channel(ctx, 16); return err }},
		{"frequency too low", func(d *Driver) error { return d.SetFrequency(ctx, MinFrequency-1) }},
		{"frequency too high", func(d *Driver) error { return d.SetFrequency(ctx, MaxFrequency+1) }},
		{"register byte 256", func(d *Driver) error { return d.Write(ctx, RegMode1, 256) }},
		{"register byte negative", func(d *Driver) error { return d.Write(ctx, RegMode1, -1) }},
		{"set all 4096", func(d *Driver) error { return d.SetAll(ctx, 4096) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := newFakeBus()
			d := newTestDriver(t, bus)

			err := tt.call(d)
			if !errors.Is(err, ErrRange) {
				t.Fatalf("error = %v, want ErrRange", err)
			}
			if n := len(bus.GetWrites()); n != 0 {
				t.Errorf("bus writes = %d, want 0", n)
			}
			if n := bus.GetReads(); n != 0 {
				t.Errorf("bus reads = %d, want 0", n)
			}
		})
	}
}

func TestSetFrequencySequence(t *testing.T) {
	bus := newFakeBus()
	bus.regs[RegMode1] = Bit(Mode1AllCall)
	d := newTestDriver(t, bus)
	ctx := context.Background()

	if err := d.SetFrequency(ctx, 200); err != nil {
		t.Fatalf("SetFrequency() error = %v", err)
	}

	want := []busWrite{
		{Addr: 0x40, Reg: RegMode1, Value: Bit(Mode1AllCall) | Bit(Mode1Sleep)},
		{Addr: 0x40, Reg: RegPrescale, Value: 30},
		{Addr: 0x40, Reg: RegMode1, Value: Bit(Mode1AllCall)},
	}
	got := bus.GetWrites()
	if len(got) != len(want) {
		t.Fatalf("writes = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("write[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}

	hz, err := d.Frequency(ctx)
	if err != nil {
		t.Fatalf("Frequency() error = %v", err)
	}
	if hz != FrequencyFromPrescale(30) {
		t.Errorf("Frequency() = %d, want %d", hz, FrequencyFromPrescale(30))
	}
}

func TestSleepWake(t *testing.T) {
	bus := newFakeBus()
	bus.regs[RegMode1] = Bit(Mode1AI) | Bit(Mode1AllCall)
	d := newTestDriver(t, bus)
	ctx := context.Background()

	if err := d.Sleep(ctx); err != nil {
		t.Fatalf("Sleep() error = %v", err)
	}
	if got := bus.regs[RegMode1]; got != Bit(Mode1AI)|Bit(Mode1AllCall)|Bit(Mode1Sleep) {
		t.Errorf("mode1 after sleep = 0x%02X", got)
	}

	if err := d.Wake(ctx); err != nil {
		t.Fatalf("Wake() error = %v", err)
	}
	if got := bus.regs[RegMode1]; got != Bit(Mode1AI)|Bit(Mode1AllCall) {
		t.Errorf("mode1 after wake = 0x%02X", got)
	}
}

func TestSetAll(t *testing.T) {
	bus := newFakeBus()
	d := newTestDriver(t, bus)

	if err := d.SetAll(context.Background(), 0x0ABC); err != nil {
		t.Fatalf("SetAll() error = %v", err)
	}
	if bus.regs[RegAllOffL] != 0xBC || bus.regs[RegAllOffH] != 0x0A {
		t.Errorf("all off = (0x%02X, 0x%02X), want (0xBC, 0x0A)", bus.regs[RegAllOffL], bus.regs[RegAllOffH])
	}
}

func TestBusErrorsPropagate(t *testing.T) {
	ctx := context.Background()

	t.Run("write failure", func(t *testing.T) {
		bus := newFakeBus()
		bus.writeErr = errors.New("no ack")
		d := newTestDriver(t, bus)

		err := d.SetChannel(ctx, 3, 100)
		if !errors.Is(err, ErrBus) {
			t.Errorf("SetChannel() error = %v, want ErrBus", err)
		}
	})

	t.Run("read failure", func(t *testing.T) {
		bus := newFakeBus()
		bus.readErr = errors.New("timeout")
		d := newTestDriver(t, bus)

		if _, err := d.Channel(ctx, 3); !errors.Is(err, ErrBus) {
			t.Errorf("Channel() error = %v, want ErrBus", err)
		}
		if err := d.SetFrequency(ctx, 100); !errors.Is(err, ErrBus) {
			t.Errorf("SetFrequency() error = %v, want ErrBus", err)
		}
	})

	t.Run("high byte failure leaves low byte", func(t *testing.T) {
		bus := newFakeBus()
		bus.failAfter = 1
		d := newTestDriver(t, bus)

		if err := d.SetChannel(ctx, 0, 0x0102); !errors.Is(err, ErrBus) {
			t.Fatalf("SetChannel() error = %v, want ErrBus", err)
		}
		if n := len(bus.GetWrites()); n != 1 {
			t.Errorf("writes = %d, want 1", n)
		}
	})
}

func TestCancelledContext(t *testing.T) {
	bus := newFakeBus()
	d := newTestDriver(t, bus)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := d.SetChannel(ctx, 0, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("SetChannel() error = %v, want context.Canceled", err)
	}
	if n := len(bus.GetWrites()); n != 0 {
		t.Errorf("writes = %d, want 0", n)
	}
}

func TestSimulateMode(t *testing.T) {
	d, err := New(nil, 0x41, Options{Simulate: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	if err := d.SetChannel(ctx, 5, 1234); err != nil {
		t.Fatalf("SetChannel() error = %v", err)
	}
	v, err := d.Channel(ctx, 5)
	if err != nil {
		t.Fatalf("Channel() error = %v", err)
	}
	if v != 0 {
		t.Errorf("Channel() = %d, want 0 in simulation", v)
	}

	hz, _ := d.Frequency(ctx)
	if hz != DefaultFrequency {
		t.Errorf("Frequency() = %d, want %d", hz, DefaultFrequency)
	}
	if err := d.SetFrequency(ctx, 1000); err != nil {
		t.Fatalf("SetFrequency() error = %v", err)
	}
	hz, _ = d.Frequency(ctx)
	if hz != 1000 {
		t.Errorf("Frequency() = %d, want 1000", hz)
	}

	if err := d.SetChannel(ctx, 16, 0); !errors.Is(err, ErrRange) {
		t.Errorf("simulated SetChannel(16) error = %v, want ErrRange", err)
	}
}

// lockRecorder counts lock acquisitions to prove multi-register operations
// take the shared lock exactly once.
type lockRecorder struct {
	mu    sync.Mutex
	held  bool
	count int
}

func (l *lockRecorder) Lock() {
	l.mu.Lock()
	l.held = true
	l.count++
}

func (l *lockRecorder) Unlock() {
	l.held = false
	l.mu.Unlock()
}

func TestSharedLockHeldPerOperation(t *testing.T) {
	lock := &lockRecorder{}
	bus := newFakeBus()
	d, err := New(bus, 0x40, Options{Lock: lock})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	if err := d.SetFrequency(ctx, 500); err != nil {
		t.Fatalf("SetFrequency() error = %v", err)
	}
	if err := d.SetChannel(ctx, 1, 10); err != nil {
		t.Fatalf("SetChannel() error = %v", err)
	}
	if lock.count != 2 {
		t.Errorf("lock acquisitions = %d, want 2", lock.count)
	}
	if lock.held {
		t.Error("lock still held after operations returned")
	}
}

func TestConcurrentDriversShareBus(t *testing.T) {
	var lock sync.Mutex
	bus := newFakeBus()
	a, _ := New(bus, 0x40, Options{Lock: &lock})
	b, _ := New(bus, 0x41, Options{Lock: &lock})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(v int) {
			defer wg.Done()
			_ = a.SetChannel(ctx, 0, v)
		}(i)
		go func() {
			defer wg.Done()
			_ = b.SetFrequency(ctx, 300)
		}()
	}
	wg.Wait()

	// Writes of a single SetChannel must be adjacent.
	writes := bus.GetWrites()
	for i, w := range writes {
		if w.Addr == 0x40 && w.Reg == ChannelRegister(0) {
			if i+1 >= len(writes) || writes[i+1].Reg != ChannelRegister(0)+1 || writes[i+1].Addr != 0x40 {
				t.Fatalf("SetChannel writes interleaved at %d: %+v", i, writes[i:])
			}
		}
	}
}
