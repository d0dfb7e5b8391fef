// Package config handles loading and validating Gray Logic Things configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// The default configuration exposes a BME680 temperature and humidity pair
// in multiple-thing mode backed by the simulated sensor, so the service runs
// without any external infrastructure.
//
// Security Considerations:
//   - Sensitive values (passwords, tokens) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Exposition.Mode)
package config
