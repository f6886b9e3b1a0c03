// Package config handles loading and validating the PWM service configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with GRAYLOGIC_PWM_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Device and output definitions live in the bridge configuration file named
// by protocols.pwm.config_file, not here.
//
// Security Considerations:
//   - Sensitive values (passwords, tokens) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//   - With an empty security.jwt.secret the HTTP API is unauthenticated
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Protocols.PWM.ConfigFile)
package config
