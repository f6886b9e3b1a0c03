package i2c

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const devPrefix = "/dev/i2c-"

// devGlob is the pattern used to find bus devices. Tests point it at a
// temporary directory.
var devGlob = devPrefix + "*"

// DiscoverBuses returns the numbers of every /dev/i2c-N device, sorted.
func DiscoverBuses() ([]int, error) {
	matches, err := filepath.Glob(devGlob)
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", devGlob, err)
	}

	buses := make([]int, 0, len(matches))
	for _, m := range matches {
		n, err := ParseBusNumber(m)
		if err != nil {
			continue
		}
		buses = append(buses, n)
	}
	sort.Ints(buses)
	return buses, nil
}

// ParseBusNumber extracts the bus number from "1", "/dev/i2c-1", or any
// path ending in "i2c-N".
func ParseBusNumber(bus string) (int, error) {
	s := strings.ToLower(strings.TrimSpace(bus))
	if i := strings.LastIndex(s, "i2c-"); i >= 0 {
		s = s[i+len("i2c-"):]
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidBusName, bus)
	}
	return n, nil
}

// ResolveDevPath turns a bus identifier into a device path. An empty
// identifier selects the lowest-numbered bus found by DiscoverBuses.
func ResolveDevPath(bus string) (string, error) {
	if bus == "" {
		buses, err := DiscoverBuses()
		if err != nil {
			return "", err
		}
		if len(buses) == 0 {
			return "", ErrNoBus
		}
		return DevPath(buses[0]), nil
	}

	if strings.HasPrefix(bus, "/") {
		return filepath.Clean(bus), nil
	}

	n, err := ParseBusNumber(bus)
	if err != nil {
		return "", err
	}
	return DevPath(n), nil
}

// DevPath returns the character device path of bus n.
func DevPath(n int) string {
	return devPrefix + strconv.Itoa(n)
}
