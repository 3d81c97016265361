package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxBodyBytes    = 1048576 // 1MB

	// Brand defaults
	DefaultBrandName = "YourBrand"

	// Guardrail defaults
	DefaultFrequencyWindow      = 7 * 24 * time.Hour
	DefaultSpamDivisor          = 5.0
	DefaultSpamThreshold        = 0.7
	DefaultMinEngagement        = 0.3
	DefaultToneForbiddenPenalty = 0.1
	DefaultToneMarkerPenalty    = 0.2
	DefaultToneThreshold        = 0.85

	DefaultMarketingMessageType   = "marketing"
	DefaultMarketingFrequencyCap  = 3
	DefaultTransactionalFrequency = 999

	// Storage defaults
	DefaultExperimentsBackend    = "sqlite"
	DefaultExperimentsSQLitePath = "data/experiments.db"
	DefaultEvaluationSchedule    = "@every 5m"
	DefaultLedgerBackend         = "sqlite"
	DefaultLedgerSQLitePath      = "data/ledger.db"
	DefaultSQLiteBusyTimeout     = 5 * time.Second
	DefaultSQLiteWALMode         = true

	// Pipeline defaults
	DefaultDispatchTimeout       = 10 * time.Second
	DefaultPipelineTimeout       = 30 * time.Second
	DefaultPipelineHoldForReview = true

	// Telemetry defaults
	DefaultLoggingLevel        = "info"
	DefaultLoggingFormat       = "json"
	DefaultLoggingRedactPII    = true
	DefaultMetricsEnabled      = true
	DefaultPrometheusPath      = "/metrics"
	DefaultMetricsNamespace    = "cadence"
	DefaultTracingEnabled      = false
	DefaultTracingSampler      = "ratio"
	DefaultTracingSamplingRate = 1.0
	DefaultTracingEndpoint     = "localhost:4317"
	DefaultTracingServiceName  = "cadence"
	DefaultTracingInsecure     = true
	DefaultTracingTimeout      = 10 * time.Second
)

// newConfig returns a Config with the boolean defaults that are true
// already set. YAML decoding leaves absent keys untouched, so an explicit
// "false" in the file still wins.
func newConfig() *Config {
	return &Config{
		Experiments: ExperimentsConfig{
			SQLite:             SQLiteConfig{WALMode: DefaultSQLiteWALMode},
			EvaluationSchedule: DefaultEvaluationSchedule,
		},
		Ledger: LedgerConfig{
			SQLite: SQLiteConfig{WALMode: DefaultSQLiteWALMode},
		},
		Pipeline: PipelineConfig{HoldForReview: DefaultPipelineHoldForReview},
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{RedactPII: DefaultLoggingRedactPII},
			Metrics: MetricsConfig{Enabled: DefaultMetricsEnabled},
			Tracing: TracingConfig{Insecure: DefaultTracingInsecure},
		},
	}
}

// Default returns a fully defaulted configuration, as if loaded from an
// empty file.
func Default() *Config {
	cfg := newConfig()
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}

	if cfg.Brand.Name == "" {
		cfg.Brand.Name = DefaultBrandName
	}

	applyGuardrailDefaults(&cfg.Guardrails)

	// Experiment defaults
	if cfg.Experiments.Backend == "" {
		cfg.Experiments.Backend = DefaultExperimentsBackend
	}
	if cfg.Experiments.SQLite.Path == "" {
		cfg.Experiments.SQLite.Path = DefaultExperimentsSQLitePath
	}
	if cfg.Experiments.SQLite.BusyTimeout == 0 {
		cfg.Experiments.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}

	if cfg.Dispatch.Timeout == 0 {
		cfg.Dispatch.Timeout = DefaultDispatchTimeout
	}

	// Ledger defaults
	if cfg.Ledger.Backend == "" {
		cfg.Ledger.Backend = DefaultLedgerBackend
	}
	if cfg.Ledger.SQLite.Path == "" {
		cfg.Ledger.SQLite.Path = DefaultLedgerSQLitePath
	}
	if cfg.Ledger.SQLite.BusyTimeout == 0 {
		cfg.Ledger.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}

	if cfg.Pipeline.Timeout == 0 {
		cfg.Pipeline.Timeout = DefaultPipelineTimeout
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultPrometheusPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSamplingRate
	}
	if cfg.Telemetry.Tracing.Endpoint == "" {
		cfg.Telemetry.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Telemetry.Tracing.Timeout == 0 {
		cfg.Telemetry.Tracing.Timeout = DefaultTracingTimeout
	}
}

// applyGuardrailDefaults fills scalar thresholds. Keyword and marker lists
// stay empty so the gate uses its built-in sets.
func applyGuardrailDefaults(g *GuardrailsConfig) {
	if len(g.FrequencyCaps) == 0 {
		g.FrequencyCaps = map[string]int{
			DefaultMarketingMessageType: DefaultMarketingFrequencyCap,
			"transactional":             DefaultTransactionalFrequency,
			"promotional":               2,
			"newsletter":                1,
		}
	}
	if g.FrequencyWindow == 0 {
		g.FrequencyWindow = DefaultFrequencyWindow
	}
	if g.Spam.Divisor == 0 {
		g.Spam.Divisor = DefaultSpamDivisor
	}
	if g.Spam.Threshold == 0 {
		g.Spam.Threshold = DefaultSpamThreshold
	}
	if g.MinEngagement == 0 {
		g.MinEngagement = DefaultMinEngagement
	}
	if len(g.RegulatedRegions) == 0 {
		g.RegulatedRegions = []string{"EU"}
	}
	if g.Tone.ForbiddenPenalty == 0 {
		g.Tone.ForbiddenPenalty = DefaultToneForbiddenPenalty
	}
	if g.Tone.MarkerPenalty == 0 {
		g.Tone.MarkerPenalty = DefaultToneMarkerPenalty
	}
	if g.Tone.Threshold == 0 {
		g.Tone.Threshold = DefaultToneThreshold
	}
}
