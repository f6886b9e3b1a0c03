//go:build linux

package gpio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/warthog618/go-gpiocdev"
)

type cdevLine struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

func (l *cdevLine) SetValue(value int) error {
	return l.line.SetValue(value)
}

func (l *cdevLine) Close() error {
	err := l.line.Close()
	_ = l.chip.Close()
	return err
}

// chipCandidates lists the chips to search, the configured one first.
func chipCandidates(preferred string) []string {
	if preferred != "" {
		return []string{preferred}
	}
	var chips []string
	entries, _ := os.ReadDir("/dev")
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "gpiochip") {
			chips = append(chips, filepath.Join("/dev", e.Name()))
		}
	}
	return chips
}

func openLine(cfg Config) (Line, error) {
	for _, chipPath := range chipCandidates(cfg.Chip) {
		chip, err := gpiocdev.NewChip(chipPath)
		if err != nil {
			continue
		}

		offset := cfg.Offset
		if cfg.Name != "" {
			offset, err = chip.FindLine(cfg.Name)
			if err != nil {
				_ = chip.Close()
				continue
			}
		}

		line, err := chip.RequestLine(offset, gpiocdev.AsOutput(1), gpiocdev.WithConsumer(consumer))
		if err != nil {
			_ = chip.Close()
			continue
		}
		return &cdevLine{chip: chip, line: line}, nil
	}

	name := cfg.Name
	if name == "" {
		name = fmt.Sprintf("%s:%d", cfg.Chip, cfg.Offset)
	}
	return nil, fmt.Errorf("%w: %q", ErrLineNotFound, name)
}
