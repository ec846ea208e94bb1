// Package config loads and validates ClassPower Core configuration.
//
// Configuration is YAML-first with environment variable overrides for
// deployment-specific secrets (database path, MQTT credentials, JWT secret).
// See configs/config.yaml for a documented example.
package config
