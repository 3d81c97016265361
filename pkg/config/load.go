package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// envPrefix prefixes every environment override.
const envPrefix = "CADENCE_"

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration file %q: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML configuration, applies defaults and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := newConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention CADENCE_SECTION_FIELD (e.g., CADENCE_SERVER_LISTEN_ADDRESS).
// Environment variables always take precedence over file-based configuration.
// An empty path starts from the defaults.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = Default()
	} else {
		var err error
		if cfg, err = LoadConfig(path); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	envString("SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	envDuration("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	envDuration("SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	if val := os.Getenv(envPrefix + "SERVER_API_KEYS"); val != "" {
		cfg.Server.Auth.Enabled = true
		cfg.Server.Auth.Keys = parseAPIKeys(val)
	}

	// Brand overrides
	envString("BRAND_NAME", &cfg.Brand.Name)
	envString("BRAND_FROM_ADDRESS", &cfg.Brand.FromAddress)
	envString("BRAND_UNSUBSCRIBE_URL", &cfg.Brand.UnsubscribeURL)
	envString("BRAND_PHYSICAL_ADDRESS", &cfg.Brand.PhysicalAddress)
	envString("BRAND_CTA_URL", &cfg.Brand.CTAURL)

	envString("CUSTOMERS_FILE", &cfg.Customers.File)

	// Guardrail overrides
	envDuration("GUARDRAILS_FREQUENCY_WINDOW", &cfg.Guardrails.FrequencyWindow)
	envFloat("GUARDRAILS_SPAM_THRESHOLD", &cfg.Guardrails.Spam.Threshold)
	envFloat("GUARDRAILS_MIN_ENGAGEMENT", &cfg.Guardrails.MinEngagement)
	envFloat("GUARDRAILS_TONE_THRESHOLD", &cfg.Guardrails.Tone.Threshold)
	if val := os.Getenv(envPrefix + "GUARDRAILS_REGULATED_REGIONS"); val != "" {
		cfg.Guardrails.RegulatedRegions = splitList(val)
	}

	// Experiment overrides
	envString("EXPERIMENTS_BACKEND", &cfg.Experiments.Backend)
	envString("EXPERIMENTS_SQLITE_PATH", &cfg.Experiments.SQLite.Path)
	envString("EXPERIMENTS_EVALUATION_SCHEDULE", &cfg.Experiments.EvaluationSchedule)
	if val := os.Getenv(envPrefix + "EXPERIMENTS_SCORER_SEED"); val != "" {
		if n, err := strconv.ParseUint(val, 10, 64); err == nil {
			cfg.Experiments.ScorerSeed = n
		}
	}

	// Dispatch overrides
	envDuration("DISPATCH_TIMEOUT", &cfg.Dispatch.Timeout)
	if val := os.Getenv(envPrefix + "DISPATCH_CHANNELS"); val != "" {
		cfg.Dispatch.Channels = splitList(val)
	}

	// Ledger overrides
	envString("LEDGER_BACKEND", &cfg.Ledger.Backend)
	envString("LEDGER_SQLITE_PATH", &cfg.Ledger.SQLite.Path)
	envBool("LEDGER_SQLITE_WAL_MODE", &cfg.Ledger.SQLite.WALMode)

	// Pipeline overrides
	envBool("PIPELINE_HOLD_FOR_REVIEW", &cfg.Pipeline.HoldForReview)
	envDuration("PIPELINE_TIMEOUT", &cfg.Pipeline.Timeout)

	// Telemetry overrides
	envString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("TELEMETRY_LOGGING_ADD_SOURCE", &cfg.Telemetry.Logging.AddSource)
	envBool("TELEMETRY_LOGGING_REDACT_PII", &cfg.Telemetry.Logging.RedactPII)
	envBool("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	envBool("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("TELEMETRY_TRACING_SAMPLER", &cfg.Telemetry.Tracing.Sampler)
	envFloat("TELEMETRY_TRACING_SAMPLE_RATIO", &cfg.Telemetry.Tracing.SampleRatio)
	envString("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	envString("TELEMETRY_TRACING_SERVICE_NAME", &cfg.Telemetry.Tracing.ServiceName)
}

// parseAPIKeys reads "operator:key" pairs separated by commas. A pair
// without an operator is kept with an empty operator so validation reports
// it.
func parseAPIKeys(val string) []APIKeyConfig {
	var keys []APIKeyConfig
	for _, pair := range splitList(val) {
		operator, key, ok := strings.Cut(pair, ":")
		if !ok {
			operator, key = "", pair
		}
		keys = append(keys, APIKeyConfig{Key: key, Operator: operator})
	}
	return keys
}

// Malformed values are ignored and the file value is kept.

func envString(key string, dst *string) {
	if val := os.Getenv(envPrefix + key); val != "" {
		*dst = val
	}
}

func envDuration(key string, dst *time.Duration) {
	if val := os.Getenv(envPrefix + key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

func envBool(key string, dst *bool) {
	if val := os.Getenv(envPrefix + key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envFloat(key string, dst *float64) {
	if val := os.Getenv(envPrefix + key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*dst = f
		}
	}
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
