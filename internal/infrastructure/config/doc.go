// Package config handles loading and validating authgate configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (signing keys, passwords, tokens) should be set via
//     environment variables
//   - The config file should have restricted permissions (0600)
//   - The two JWT signing keys are required at startup and must differ;
//     the process fails fast when either is absent
//
// Performance Characteristics:
//   - Configuration is loaded once at startup
//   - No runtime overhead after initial load
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.API.Port)
package config
