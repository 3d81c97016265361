package config

import "time"

// Config is the root configuration structure for Cadence.
// It contains every section needed to assemble the decision pipeline, the
// HTTP server and the telemetry stack.
type Config struct {
	// Server contains HTTP API server configuration.
	Server ServerConfig `yaml:"server"`

	// Brand holds the sender identity used when composing messages.
	Brand BrandConfig `yaml:"brand"`

	// Customers selects where customer records come from.
	Customers CustomersConfig `yaml:"customers"`

	// Guardrails contains the tunable parameters of the guardrail gate.
	Guardrails GuardrailsConfig `yaml:"guardrails"`

	// Experiments contains experiment engine storage and evaluation settings.
	Experiments ExperimentsConfig `yaml:"experiments"`

	// Dispatch contains channel fan-out settings.
	Dispatch DispatchConfig `yaml:"dispatch"`

	// Ledger contains audit ledger storage settings.
	Ledger LedgerConfig `yaml:"ledger"`

	// Pipeline contains orchestrator settings.
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Telemetry contains configuration for logging, metrics and tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP API server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxBodyBytes limits request body size.
	// Default: 1MB
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// Auth protects the /v1 API with operator API keys. Health and metrics
	// endpoints stay open.
	Auth AuthConfig `yaml:"auth"`
}

// AuthConfig configures API key authentication.
type AuthConfig struct {
	// Enabled requires a valid key on every /v1 request.
	// Default: false
	Enabled bool `yaml:"enabled"`

	Keys []APIKeyConfig `yaml:"keys"`
}

// APIKeyConfig is one operator credential.
type APIKeyConfig struct {
	Key string `yaml:"key"`

	// Operator identifies the key holder in logs and override records.
	Operator string `yaml:"operator"`

	Disabled bool `yaml:"disabled"`
}

// BrandConfig holds the sender identity and legally required footer data.
type BrandConfig struct {
	Name            string `yaml:"name"`
	FromAddress     string `yaml:"from_address"`
	UnsubscribeURL  string `yaml:"unsubscribe_url"`
	PhysicalAddress string `yaml:"physical_address"`
	CTAURL          string `yaml:"cta_url"`
}

// CustomersConfig selects the customer record source.
type CustomersConfig struct {
	// File is a YAML fixture file of customer records. When empty the
	// built-in demo customers are used.
	File string `yaml:"file"`
}

// GuardrailsConfig contains guardrail thresholds. Empty lists keep the
// built-in keyword and marker sets.
type GuardrailsConfig struct {
	// FrequencyCaps maps message type to the maximum sends per window.
	FrequencyCaps map[string]int `yaml:"frequency_caps"`

	// FrequencyWindow is the sliding window sends are counted over.
	// Default: 168h
	FrequencyWindow time.Duration `yaml:"frequency_window"`

	Spam SpamConfig `yaml:"spam"`

	// MinEngagement is the engagement score floor.
	// Default: 0.3
	MinEngagement float64 `yaml:"min_engagement"`

	// RegulatedRegions require explicit GDPR consent.
	// Default: ["EU"]
	RegulatedRegions []string `yaml:"regulated_regions"`

	Tone ToneConfig `yaml:"tone"`
}

// SpamConfig configures the spam score check.
type SpamConfig struct {
	Keywords []string `yaml:"keywords"`

	// Divisor turns keyword hits into a score.
	// Default: 5
	Divisor float64 `yaml:"divisor"`

	// Threshold is the score at or above which content is rejected.
	// Default: 0.7
	Threshold float64 `yaml:"threshold"`
}

// ToneConfig configures the brand tone check.
type ToneConfig struct {
	Forbidden       []string `yaml:"forbidden"`
	RequiredMarkers []string `yaml:"required_markers"`

	// ForbiddenPenalty is subtracted per forbidden word found.
	// Default: 0.1
	ForbiddenPenalty float64 `yaml:"forbidden_penalty"`

	// MarkerPenalty is subtracted when no required marker is present.
	// Default: 0.2
	MarkerPenalty float64 `yaml:"marker_penalty"`

	// Threshold is the minimum passing tone score.
	// Default: 0.85
	Threshold float64 `yaml:"threshold"`
}

// ExperimentsConfig contains experiment engine configuration.
type ExperimentsConfig struct {
	// Backend is the experiment store.
	// Options: "memory", "sqlite"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite contains SQLite store settings.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// EvaluationSchedule is the cron expression for periodic winner
	// evaluation. An empty schedule disables the scheduler.
	// Default: "@every 5m"
	EvaluationSchedule string `yaml:"evaluation_schedule"`

	// ScorerSeed seeds creative variant scoring.
	// Default: 0
	ScorerSeed uint64 `yaml:"scorer_seed"`
}

// DispatchConfig contains channel dispatch configuration.
type DispatchConfig struct {
	// Timeout bounds a single channel send.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// Channels lists the enabled channels. Empty enables all of them.
	Channels []string `yaml:"channels"`
}

// LedgerConfig contains audit ledger configuration.
type LedgerConfig struct {
	// Backend is the storage backend.
	// Options: "memory", "sqlite"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite contains SQLite storage settings.
	SQLite SQLiteConfig `yaml:"sqlite"`
}

// SQLiteConfig contains SQLite database settings.
type SQLiteConfig struct {
	// Path is the database file.
	Path string `yaml:"path"`

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// PipelineConfig contains orchestrator configuration.
type PipelineConfig struct {
	// HoldForReview withholds dispatch of decisions that require human
	// review.
	// Default: true
	HoldForReview bool `yaml:"hold_for_review"`

	// Timeout bounds one trigger run.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactPII masks e-mail addresses and phone numbers in log output.
	// Default: true
	RedactPII bool `yaml:"redact_pii"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "cadence"
	Namespace string `yaml:"namespace"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Only used when Sampler is "ratio".
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "cadence"
	ServiceName string `yaml:"service_name"`

	// Insecure disables TLS for the OTLP connection.
	// Default: true
	Insecure bool `yaml:"insecure"`

	// Timeout is the timeout for OTLP exports.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}
