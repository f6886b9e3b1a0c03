package i2c

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestParseBusNumber(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"1", 1, false},
		{"/dev/i2c-1", 1, false},
		{"/DEV/I2C-10", 10, false},
		{" 3 ", 3, false},
		{"i2c-0", 0, false},
		{"", 0, true},
		{"/dev/spidev0.0", 0, true},
		{"-1", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseBusNumber(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseBusNumber(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidBusName) {
				t.Errorf("error = %v, want ErrInvalidBusName", err)
			}
			if got != tt.want {
				t.Errorf("ParseBusNumber(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func useDevGlob(t *testing.T, dir string) {
	t.Helper()
	old := devGlob
	devGlob = filepath.Join(dir, "i2c-*")
	t.Cleanup(func() { devGlob = old })
}

func TestDiscoverBuses(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"i2c-10", "i2c-1", "i2c-3", "i2c-bogus"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	useDevGlob(t, dir)

	got, err := DiscoverBuses()
	if err != nil {
		t.Fatalf("DiscoverBuses() error = %v", err)
	}
	if want := []int{1, 3, 10}; !reflect.DeepEqual(got, want) {
		t.Errorf("DiscoverBuses() = %v, want %v", got, want)
	}
}

func TestResolveDevPath(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "i2c-4"), nil, 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	useDevGlob(t, dir)

	tests := []struct {
		bus     string
		want    string
		wantErr bool
	}{
		{"", "/dev/i2c-4", false},
		{"1", "/dev/i2c-1", false},
		{"/dev/i2c-2", "/dev/i2c-2", false},
		{"i2c-7", "/dev/i2c-7", false},
		{"abc", "", true},
	}

	for _, tt := range tests {
		got, err := ResolveDevPath(tt.bus)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ResolveDevPath(%q) error = %v, wantErr %v", tt.bus, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ResolveDevPath(%q) = %q, want %q", tt.bus, got, tt.want)
		}
	}
}

func TestResolveDevPath_NoBus(t *testing.T) {
	useDevGlob(t, t.TempDir())

	if _, err := ResolveDevPath(""); !errors.Is(err, ErrNoBus) {
		t.Errorf("ResolveDevPath(\"\") error = %v, want ErrNoBus", err)
	}
}

func TestOpen(t *testing.T) {
	t.Run("memory backend", func(t *testing.T) {
		bus, id, err := Open(Config{Backend: "memory", Bus: "sim"})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer bus.Close()
		if id != "memory:sim" {
			t.Errorf("id = %q, want memory:sim", id)
		}
		if _, ok := bus.(*MemoryBus); !ok {
			t.Errorf("bus type = %T, want *MemoryBus", bus)
		}
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, _, err := Open(Config{Backend: "smbus"})
		if !errors.Is(err, ErrUnknownBackend) {
			t.Errorf("Open() error = %v, want ErrUnknownBackend", err)
		}
	})

	t.Run("dev backend missing device", func(t *testing.T) {
		_, _, err := Open(Config{Backend: "dev", Bus: filepath.Join(t.TempDir(), "i2c-9")})
		if err == nil {
			t.Error("Open() expected error for missing device, got nil")
		}
	})
}

func TestMemoryBus(t *testing.T) {
	bus := NewMemoryBus()

	if err := bus.WriteByteData(0x40, 0x08, 0xAB); err != nil {
		t.Fatalf("WriteByteData() error = %v", err)
	}
	v, err := bus.ReadByteData(0x40, 0x08)
	if err != nil {
		t.Fatalf("ReadByteData() error = %v", err)
	}
	if v != 0xAB {
		t.Errorf("ReadByteData() = 0x%02X, want 0xAB", v)
	}

	// Devices are independent.
	if v, _ := bus.ReadByteData(0x41, 0x08); v != 0 {
		t.Errorf("other device register = 0x%02X, want 0", v)
	}

	if _, err := bus.ReadByteData(0x80, 0x00); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("ReadByteData(0x80) error = %v, want ErrInvalidAddress", err)
	}

	boom := errors.New("nack")
	bus.Fail(boom)
	if err := bus.WriteByteData(0x40, 0x08, 1); !errors.Is(err, boom) {
		t.Errorf("WriteByteData() error = %v, want injected error", err)
	}
	bus.Fail(nil)

	reads, writes := bus.Counts()
	if reads != 2 || writes != 1 {
		t.Errorf("Counts() = (%d, %d), want (2, 1)", reads, writes)
	}

	_ = bus.Close()
	if err := bus.WriteByteData(0x40, 0x08, 1); !errors.Is(err, ErrClosed) {
		t.Errorf("WriteByteData() after Close error = %v, want ErrClosed", err)
	}
}

func TestMemoryBus_AllLEDFansOut(t *testing.T) {
	bus := NewMemoryBus()

	// Channel 3 OFF pair (0x14, 0x15) holds 4080 before the broadcast.
	bus.SetRegister(0x40, 0x14, 0xF0)
	bus.SetRegister(0x40, 0x15, 0x0F)

	// ALL_LED_OFF_L, ALL_LED_OFF_H
	for _, reg := range []byte{0xFC, 0xFD} {
		if err := bus.WriteByteData(0x40, reg, 0); err != nil {
			t.Fatalf("WriteByteData(0x%02X) error = %v", reg, err)
		}
	}
	if lo, hi := bus.Register(0x40, 0x14), bus.Register(0x40, 0x15); lo != 0 || hi != 0 {
		t.Errorf("channel 3 OFF = (0x%02X, 0x%02X), want zero after ALL_LED write", lo, hi)
	}

	if err := bus.WriteByteData(0x40, 0xFB, 0x10); err != nil {
		t.Fatalf("WriteByteData(ALL_LED_ON_H) error = %v", err)
	}
	for ch := range 16 {
		if got := bus.Register(0x40, byte(0x06+ch*4+1)); got != 0x10 {
			t.Fatalf("LED%d_ON_H = 0x%02X, want 0x10", ch, got)
		}
	}
	if got := bus.Register(0x40, 0xFB); got != 0x10 {
		t.Errorf("ALL_LED_ON_H = 0x%02X, want 0x10", got)
	}

	// Other devices are untouched.
	if got := bus.Register(0x41, 0x07); got != 0 {
		t.Errorf("other device LED0_ON_H = 0x%02X, want 0", got)
	}
}

func TestLocks(t *testing.T) {
	var locks Locks

	a := locks.For("/dev/i2c-1")
	b := locks.For("/dev/i2c-1")
	c := locks.For("/dev/i2c-2")

	if a != b {
		t.Error("For() returned different mutexes for the same bus")
	}
	if a == c {
		t.Error("For() returned the same mutex for different buses")
	}
	if locks.Len() != 2 {
		t.Errorf("Len() = %d, want 2", locks.Len())
	}
}
