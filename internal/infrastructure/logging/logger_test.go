package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nerrad567/gray-logic-pwm/internal/infrastructure/config"
)

func TestNew_Outputs(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.LoggingConfig
	}{
		{"json stdout", config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}},
		{"text stderr", config.LoggingConfig{Level: "debug", Format: "text", Output: "stderr"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(tt.cfg, "1.0.0")
			if logger == nil {
				t.Fatal("expected non-nil logger")
			}
			if err := logger.Close(); err != nil {
				t.Errorf("Close() error = %v", err)
			}
		})
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pwm.log")
	logger := New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "file",
		File:   config.FileLoggingConfig{Path: path, MaxSize: 1, MaxBackups: 1},
	}, "1.0.0")

	logger.Info("frequency changed", "device_id", "pca-1", "frequency", 500)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), `"device_id":"pca-1"`) {
		t.Errorf("log file = %q, want entry with device_id", data)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"DEBUG", slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if result := parseLevel(tt.input); result != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, config.LoggingConfig{Level: "info", Format: "json"}, "1.0.0")

	child := logger.With("component", "mqtt")
	if child == logger {
		t.Error("expected child logger to be different from parent")
	}
	child.Info("connected")

	if !strings.Contains(buf.String(), `"component":"mqtt"`) {
		t.Errorf("output = %q, want component attribute", buf.String())
	}
}

func TestDefault(t *testing.T) {
	if Default() == nil {
		t.Fatal("expected non-nil default logger")
	}
}

func TestLogger_OutputContainsDefaultFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, config.LoggingConfig{Level: "warn", Format: "json"}, "test")

	logger.Info("dropped by level")
	logger.Warn("transition failed", "output_id", "lamp")

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse JSON output %q: %v", buf.String(), err)
	}

	if logEntry["service"] != ServiceName || logEntry["version"] != "test" {
		t.Errorf("default fields = %v, %v", logEntry["service"], logEntry["version"])
	}
	if logEntry["msg"] != "transition failed" {
		t.Errorf("expected msg='transition failed', got %v", logEntry["msg"])
	}
	if logEntry["output_id"] != "lamp" {
		t.Errorf("expected output_id='lamp', got %v", logEntry["output_id"])
	}
}
