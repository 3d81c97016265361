package config

import (
	"fmt"
	"strings"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

var (
	validBackends  = map[string]bool{"memory": true, "sqlite": true}
	validChannels  = map[string]bool{"email": true, "sms": true, "whatsapp": true, "web": true, "push": true}
	validSamplers  = map[string]bool{"always": true, "never": true, "ratio": true}
	validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validFormats   = map[string]bool{"json": true, "text": true}
)

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateGuardrails(&cfg.Guardrails)...)
	errs = append(errs, validateExperiments(&cfg.Experiments)...)
	errs = append(errs, validateDispatch(&cfg.Dispatch)...)
	errs = append(errs, validateLedger(&cfg.Ledger)...)
	errs = append(errs, validatePipeline(&cfg.Pipeline)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validateServer validates HTTP server configuration.
func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	}

	timeouts := []struct {
		field string
		neg   bool
	}{
		{"server.read_timeout", cfg.ReadTimeout < 0},
		{"server.write_timeout", cfg.WriteTimeout < 0},
		{"server.idle_timeout", cfg.IdleTimeout < 0},
		{"server.shutdown_timeout", cfg.ShutdownTimeout < 0},
	}
	for _, t := range timeouts {
		if t.neg {
			errs = append(errs, FieldError{Field: t.field, Message: "timeout must be positive"})
		}
	}

	if cfg.MaxBodyBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_body_bytes",
			Message: "max body bytes must be non-negative",
		})
	}

	if cfg.Auth.Enabled && len(cfg.Auth.Keys) == 0 {
		errs = append(errs, FieldError{
			Field:   "server.auth.keys",
			Message: "at least one key is required when auth is enabled",
		})
	}
	seen := make(map[string]bool, len(cfg.Auth.Keys))
	for i, k := range cfg.Auth.Keys {
		field := fmt.Sprintf("server.auth.keys[%d]", i)
		switch {
		case k.Key == "":
			errs = append(errs, FieldError{Field: field + ".key", Message: "key is required"})
		case seen[k.Key]:
			errs = append(errs, FieldError{Field: field + ".key", Message: "duplicate key"})
		}
		if k.Operator == "" {
			errs = append(errs, FieldError{Field: field + ".operator", Message: "operator is required"})
		}
		seen[k.Key] = true
	}

	return errs
}

// validateGuardrails validates gate thresholds.
func validateGuardrails(cfg *GuardrailsConfig) []FieldError {
	var errs []FieldError

	if _, ok := cfg.FrequencyCaps[DefaultMarketingMessageType]; !ok {
		errs = append(errs, FieldError{
			Field:   "guardrails.frequency_caps",
			Message: fmt.Sprintf("a cap for %q is required", DefaultMarketingMessageType),
		})
	}
	for msgType, limit := range cfg.FrequencyCaps {
		if limit < 0 {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("guardrails.frequency_caps.%s", msgType),
				Message: "cap must be non-negative",
			})
		}
	}
	if cfg.FrequencyWindow < 0 {
		errs = append(errs, FieldError{
			Field:   "guardrails.frequency_window",
			Message: "window must be positive",
		})
	}

	if cfg.Spam.Divisor <= 0 {
		errs = append(errs, FieldError{
			Field:   "guardrails.spam.divisor",
			Message: "divisor must be positive",
		})
	}
	if cfg.Spam.Threshold <= 0 || cfg.Spam.Threshold > 1 {
		errs = append(errs, FieldError{
			Field:   "guardrails.spam.threshold",
			Message: "threshold must be in (0.0, 1.0]",
		})
	}
	if cfg.MinEngagement < 0 || cfg.MinEngagement > 1 {
		errs = append(errs, FieldError{
			Field:   "guardrails.min_engagement",
			Message: "minimum engagement must be between 0.0 and 1.0",
		})
	}
	if cfg.Tone.Threshold < 0 || cfg.Tone.Threshold > 1 {
		errs = append(errs, FieldError{
			Field:   "guardrails.tone.threshold",
			Message: "threshold must be between 0.0 and 1.0",
		})
	}
	if cfg.Tone.ForbiddenPenalty < 0 || cfg.Tone.MarkerPenalty < 0 {
		errs = append(errs, FieldError{
			Field:   "guardrails.tone",
			Message: "penalties must be non-negative",
		})
	}

	return errs
}

// validateExperiments validates experiment engine configuration.
func validateExperiments(cfg *ExperimentsConfig) []FieldError {
	var errs []FieldError

	if !validBackends[cfg.Backend] {
		errs = append(errs, FieldError{
			Field:   "experiments.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'memory' or 'sqlite'", cfg.Backend),
		})
	}
	if cfg.Backend == "sqlite" && cfg.SQLite.Path == "" {
		errs = append(errs, FieldError{
			Field:   "experiments.sqlite.path",
			Message: "SQLite path is required when backend is 'sqlite'",
		})
	}

	return errs
}

// validateDispatch validates dispatch configuration.
func validateDispatch(cfg *DispatchConfig) []FieldError {
	var errs []FieldError

	if cfg.Timeout < 0 {
		errs = append(errs, FieldError{
			Field:   "dispatch.timeout",
			Message: "timeout must be positive",
		})
	}
	for i, ch := range cfg.Channels {
		if !validChannels[ch] {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("dispatch.channels[%d]", i),
				Message: fmt.Sprintf("unknown channel %q", ch),
			})
		}
	}

	return errs
}

// validateLedger validates ledger storage configuration.
func validateLedger(cfg *LedgerConfig) []FieldError {
	var errs []FieldError

	if !validBackends[cfg.Backend] {
		errs = append(errs, FieldError{
			Field:   "ledger.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'memory' or 'sqlite'", cfg.Backend),
		})
	}
	if cfg.Backend == "sqlite" && cfg.SQLite.Path == "" {
		errs = append(errs, FieldError{
			Field:   "ledger.sqlite.path",
			Message: "SQLite path is required when backend is 'sqlite'",
		})
	}

	return errs
}

// validatePipeline validates orchestrator configuration.
func validatePipeline(cfg *PipelineConfig) []FieldError {
	if cfg.Timeout < 0 {
		return []FieldError{{
			Field:   "pipeline.timeout",
			Message: "timeout must be positive",
		}}
	}
	return nil
}

// validateTelemetry validates telemetry configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	// Validate logging level
	if cfg.Logging.Level == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: "logging level is required",
		})
	} else if !validLogLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	// Validate logging format
	if cfg.Logging.Format == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: "logging format is required",
		})
	} else if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with '/' when metrics are enabled",
		})
	}

	// Validate tracing configuration
	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "tracing endpoint is required when tracing is enabled",
		})
	}
	if !validSamplers[cfg.Tracing.Sampler] {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', or 'ratio'", cfg.Tracing.Sampler),
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}

	return errs
}
