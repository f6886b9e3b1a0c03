package pwm

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-logic-pwm/internal/output"
)

// DefaultHealthInterval is how often health is published when unset.
const DefaultHealthInterval = 30

// Config is the root configuration for the PWM bridge.
// Loaded from YAML with environment variable overrides.
type Config struct {
	Bridge  BridgeConfig          `yaml:"bridge"`
	Devices []output.DeviceConfig `yaml:"devices"`
}

// BridgeConfig contains bridge identity and operational settings.
type BridgeConfig struct {
	// ID uniquely identifies this bridge instance in health reports.
	ID string `yaml:"id"`

	// HealthInterval is how often to publish health status (seconds).
	// Default: 30 seconds.
	HealthInterval int `yaml:"health_interval"`

	// HistoryRetentionDays bounds output state history. Zero keeps
	// everything.
	HistoryRetentionDays int `yaml:"history_retention_days"`
}

// LoadConfig reads the bridge configuration from a YAML file.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Device defaults (backend, address, frequency, number bounds) are applied
// before validation.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			ID:             "pwm-bridge-01",
			HealthInterval: DefaultHealthInterval,
		},
	}
}

// applyEnvOverrides applies PWM_BRIDGE_* environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PWM_BRIDGE_ID"); v != "" {
		cfg.Bridge.ID = v
	}
	if v := os.Getenv("PWM_BRIDGE_HEALTH_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Bridge.HealthInterval = n
		}
	}
}

// ApplyDefaults fills unset device and output fields.
func (c *Config) ApplyDefaults() {
	for i := range c.Devices {
		c.Devices[i].ApplyDefaults()
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Bridge.ID == "" {
		errs = append(errs, "bridge.id is required")
	}
	if c.Bridge.HealthInterval < 1 {
		errs = append(errs, "bridge.health_interval must be at least 1 second")
	}
	if c.Bridge.HistoryRetentionDays < 0 {
		errs = append(errs, "bridge.history_retention_days must not be negative")
	}
	if len(c.Devices) == 0 {
		errs = append(errs, "at least one device is required")
	} else if err := output.ValidateDevices(c.Devices); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// GetHealthInterval returns the health reporting interval as a Duration.
func (c *Config) GetHealthInterval() time.Duration {
	return time.Duration(c.Bridge.HealthInterval) * time.Second
}

// GetHistoryRetention returns the history retention, or zero to keep all.
func (c *Config) GetHistoryRetention() time.Duration {
	return time.Duration(c.Bridge.HistoryRetentionDays) * 24 * time.Hour
}
