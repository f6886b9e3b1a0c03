package gpio

import (
	"errors"
	"sync"
	"testing"
)

type fakeLine struct {
	mu     sync.Mutex
	values []int
	closed bool
	err    error
}

func (l *fakeLine) SetValue(v int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.values = append(l.values, v)
	return nil
}

func (l *fakeLine) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

func (l *fakeLine) GetValues() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int(nil), l.values...)
}

func withFakeLine(t *testing.T, line *fakeLine) {
	t.Helper()
	old := openLineFn
	openLineFn = func(Config) (Line, error) { return line, nil }
	t.Cleanup(func() { openLineFn = old })
}

func TestOpen_InvalidConfig(t *testing.T) {
	if _, err := Open(Config{}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Open() error = %v, want ErrInvalidConfig", err)
	}
	if _, err := Open(Config{Chip: "/dev/gpiochip0", Offset: -1}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Open() error = %v, want ErrInvalidConfig", err)
	}
}

func TestOutputEnable_ActiveLow(t *testing.T) {
	line := &fakeLine{}
	withFakeLine(t, line)

	oe, err := Open(Config{Name: "GPIO17"})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if oe.Enabled() {
		t.Error("outputs enabled before Enable()")
	}

	if err := oe.Enable(); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	if !oe.Enabled() {
		t.Error("Enabled() = false after Enable()")
	}
	if err := oe.Disable(); err != nil {
		t.Fatalf("Disable() error = %v", err)
	}
	if err := oe.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	want := []int{0, 1, 1}
	got := line.GetValues()
	if len(got) != len(want) {
		t.Fatalf("values = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("values[%d] = %d, want %d", i, got[i], want[i])
		}
	}
	if !line.closed {
		t.Error("line not closed")
	}
	if err := oe.Enable(); err == nil {
		t.Error("Enable() after Close expected error")
	}
}

func TestOutputEnable_SetError(t *testing.T) {
	line := &fakeLine{err: errors.New("ebusy")}
	withFakeLine(t, line)

	oe, err := Open(Config{Chip: "/dev/gpiochip0", Offset: 17})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := oe.Enable(); err == nil {
		t.Error("Enable() expected error")
	}
	if oe.Enabled() {
		t.Error("Enabled() = true after failed Enable()")
	}
}
