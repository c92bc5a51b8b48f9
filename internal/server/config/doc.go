// Package config provides agent configuration for the snapshot engine.
//
// This package defines the configuration structure and validation:
//
//   - spec.go: Config struct definition
//   - default.go: Default configuration values
//   - verify.go: Business validation (paths, retention bounds, schedules)
//   - sanitize.go: Log sanitization (hide API tokens and sealing keys)
//
// Configuration is loaded via internal/infra/confloader and supports
// YAML files plus CFSM_-prefixed environment variables.
package config
