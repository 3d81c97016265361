// Package config provides configuration management for Cadence.
//
// This package handles loading, validating, and managing configuration from
// YAML files with environment variable overrides.
//
// # Configuration Loading
//
//	cfg, err := config.LoadConfig("cadence.yaml")
//	cfg, err := config.LoadConfigWithEnvOverrides("cadence.yaml")
//	cfg, err := config.Load("cadence.yaml") // also makes cfg Current()
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention CADENCE_SECTION_FIELD:
//
//   - CADENCE_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - CADENCE_LEDGER_SQLITE_PATH overrides ledger.sqlite.path
//   - CADENCE_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//   - CADENCE_SERVER_API_KEYS="ana:key1,ben:key2" enables API key auth
//
// # Configuration Precedence
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Hot Reload
//
// Watcher observes the configuration file with fsnotify and, after a
// debounce interval, reloads and validates it. The serve command uses it
// to swap guardrail thresholds without restarting.
package config
