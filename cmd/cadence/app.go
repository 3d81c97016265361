package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"mercator-hq/cadence/pkg/cli"
	"mercator-hq/cadence/pkg/config"
	"mercator-hq/cadence/pkg/content"
	"mercator-hq/cadence/pkg/customer"
	"mercator-hq/cadence/pkg/decision"
	"mercator-hq/cadence/pkg/dispatch"
	"mercator-hq/cadence/pkg/experiment"
	"mercator-hq/cadence/pkg/frequency"
	"mercator-hq/cadence/pkg/guardrail"
	"mercator-hq/cadence/pkg/ledger"
	"mercator-hq/cadence/pkg/pipeline"
	"mercator-hq/cadence/pkg/telemetry/logging"
	"mercator-hq/cadence/pkg/telemetry/metrics"
	"mercator-hq/cadence/pkg/telemetry/tracing"
)

// app holds the components shared by the commands, built from one
// configuration.
type app struct {
	cfg *config.Config

	customers   *customer.StaticProvider
	scorer      *experiment.Scorer
	expStore    experiment.Store
	experiments *experiment.Engine
	ledger      *ledger.Ledger
	frequency   *frequency.Tracker
	gate        *guardrail.Gate
	pipeline    *pipeline.Orchestrator
	metrics     *metrics.Collector
	tracer      *tracing.Tracer
}

// loadConfig reads --config with CADENCE_* overrides and sets up logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, cli.WithExitCode(cli.ExitUsage, err)
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	if _, err := logging.Setup(cfg.Telemetry.Logging, os.Stderr); err != nil {
		return nil, cli.WithExitCode(cli.ExitUsage, err)
	}
	return cfg, nil
}

// newApp opens the stores and wires the pipeline. The caller must Close
// the app.
func newApp(ctx context.Context, cfg *config.Config) (a *app, err error) {
	a = &app{
		cfg:     cfg,
		scorer:  experiment.NewScorer(cfg.Experiments.ScorerSeed),
		metrics: metrics.NewCollector(&cfg.Telemetry.Metrics, nil),
	}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	tracing.Version = Version
	if a.tracer, err = tracing.New(&cfg.Telemetry.Tracing); err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	if cfg.Customers.File != "" {
		if a.customers, err = customer.LoadFile(cfg.Customers.File); err != nil {
			return nil, fmt.Errorf("load customers: %w", err)
		}
	} else {
		a.customers = customer.NewDemoProvider()
	}

	if a.expStore, err = openExperimentStore(cfg.Experiments); err != nil {
		return nil, err
	}
	a.experiments = experiment.NewEngine(a.expStore, experiment.WithObserver(a.metrics))
	if err = a.experiments.Load(ctx); err != nil {
		return nil, fmt.Errorf("load experiments: %w", err)
	}

	storage, err := openLedgerStorage(cfg.Ledger)
	if err != nil {
		return nil, err
	}
	a.ledger = ledger.New(storage)
	if err = a.metrics.TrackLedgerSize(a.ledgerSize); err != nil {
		return nil, fmt.Errorf("register ledger gauge: %w", err)
	}

	a.frequency = frequency.NewTracker(cfg.Guardrails.FrequencyWindow)
	thresholds := guardrailThresholds(cfg.Guardrails)
	if err = thresholds.Validate(); err != nil {
		return nil, cli.WithExitCode(cli.ExitUsage, fmt.Errorf("guardrail thresholds: %w", err))
	}
	a.gate = guardrail.NewGate(guardrail.Checkers(thresholds, a.frequency)...)

	senders, err := dispatch.Senders(dispatch.NewLogTransport(), cfg.Dispatch.Channels...)
	if err != nil {
		return nil, cli.WithExitCode(cli.ExitUsage, err)
	}
	dispatcher := dispatch.New(senders,
		dispatch.WithTimeout(cfg.Dispatch.Timeout),
		dispatch.WithObserver(a.metrics),
	)

	a.pipeline, err = pipeline.New(pipeline.Deps{
		Customers:   a.customers,
		Router:      decision.NewDefaultRouter(a.scorer),
		Gate:        a.gate,
		Dispatcher:  dispatcher,
		Ledger:      a.ledger,
		Experiments: a.experiments,
		Frequency:   a.frequency,
	}, pipeline.Config{
		Brand:         content.Brand(cfg.Brand),
		HoldForReview: cfg.Pipeline.HoldForReview,
		Timeout:       cfg.Pipeline.Timeout,
	},
		pipeline.WithObserver(a.metrics),
		pipeline.WithTracer(a.tracer.Named("pipeline")),
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// reloadGuardrails swaps the gate's checks for thresholds from cfg. It is
// the config watcher callback; other settings need a restart.
func (a *app) reloadGuardrails(cfg *config.Config) error {
	t := guardrailThresholds(cfg.Guardrails)
	if err := t.Validate(); err != nil {
		return fmt.Errorf("guardrail thresholds: %w", err)
	}
	a.gate.SetCheckers(guardrail.Checkers(t, a.frequency)...)
	slog.Info("guardrail thresholds reloaded",
		"spam_threshold", t.SpamThreshold,
		"min_engagement", t.MinEngagement,
		"tone_threshold", t.ToneThreshold,
	)
	return nil
}

func (a *app) ledgerSize() float64 {
	n, err := a.ledger.Len(context.Background())
	if err != nil {
		return 0
	}
	return float64(n)
}

// Close flushes traces and closes the stores.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.tracer != nil {
		errs = append(errs, a.tracer.Shutdown(ctx))
	}
	if a.ledger != nil {
		errs = append(errs, a.ledger.Close())
	}
	if a.expStore != nil {
		errs = append(errs, a.expStore.Close())
	}
	return errors.Join(errs...)
}

// guardrailThresholds overlays the configured values on the built-in
// thresholds. Empty lists and zero values keep the built-in setting.
func guardrailThresholds(g config.GuardrailsConfig) guardrail.Thresholds {
	t := guardrail.DefaultThresholds()

	caps := make(map[string]int, len(t.FrequencyCaps)+len(g.FrequencyCaps))
	for k, v := range t.FrequencyCaps {
		caps[k] = v
	}
	for k, v := range g.FrequencyCaps {
		caps[k] = v
	}
	t.FrequencyCaps = caps

	if len(g.Spam.Keywords) > 0 {
		t.SpamKeywords = g.Spam.Keywords
	}
	if g.Spam.Divisor > 0 {
		t.SpamDivisor = g.Spam.Divisor
	}
	if g.Spam.Threshold > 0 {
		t.SpamThreshold = g.Spam.Threshold
	}
	if g.MinEngagement > 0 {
		t.MinEngagement = g.MinEngagement
	}
	if len(g.RegulatedRegions) > 0 {
		t.RegulatedRegions = g.RegulatedRegions
	}
	if len(g.Tone.Forbidden) > 0 {
		t.ToneForbidden = g.Tone.Forbidden
	}
	if len(g.Tone.RequiredMarkers) > 0 {
		t.ToneRequiredMarkers = g.Tone.RequiredMarkers
	}
	if g.Tone.ForbiddenPenalty > 0 {
		t.ToneForbiddenPenalty = g.Tone.ForbiddenPenalty
	}
	if g.Tone.MarkerPenalty > 0 {
		t.ToneMarkerPenalty = g.Tone.MarkerPenalty
	}
	if g.Tone.Threshold > 0 {
		t.ToneThreshold = g.Tone.Threshold
	}
	return t
}

func openExperimentStore(cfg config.ExperimentsConfig) (experiment.Store, error) {
	switch cfg.Backend {
	case "memory":
		return experiment.NewMemoryStore(), nil
	case "sqlite":
		if err := ensureDir(cfg.SQLite.Path); err != nil {
			return nil, err
		}
		store, err := experiment.NewSQLiteStore(cfg.SQLite.Path, cfg.SQLite.BusyTimeout)
		if err != nil {
			return nil, fmt.Errorf("open experiment store: %w", err)
		}
		return store, nil
	default:
		return nil, cli.WithExitCode(cli.ExitUsage, fmt.Errorf("unsupported experiments backend: %s", cfg.Backend))
	}
}

func openLedgerStorage(cfg config.LedgerConfig) (ledger.Storage, error) {
	switch cfg.Backend {
	case "memory":
		return ledger.NewMemoryStorage(), nil
	case "sqlite":
		if err := ensureDir(cfg.SQLite.Path); err != nil {
			return nil, err
		}
		storage, err := ledger.NewSQLiteStorage(&ledger.SQLiteConfig{
			Path:        cfg.SQLite.Path,
			WALMode:     cfg.SQLite.WALMode,
			BusyTimeout: cfg.SQLite.BusyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("open ledger storage: %w", err)
		}
		return storage, nil
	default:
		return nil, cli.WithExitCode(cli.ExitUsage, fmt.Errorf("unsupported ledger backend: %s", cfg.Backend))
	}
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data directory %s: %w", dir, err)
	}
	return nil
}

// exitError maps domain errors to process exit codes.
func exitError(err error) error {
	var integrity *ledger.IntegrityError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, customer.ErrNotFound),
		errors.Is(err, experiment.ErrNotFound),
		errors.Is(err, ledger.ErrNotFound):
		return cli.WithExitCode(cli.ExitNotFound, err)
	case errors.As(err, &integrity):
		return cli.WithExitCode(cli.ExitIntegrity, err)
	case errors.Is(err, ledger.ErrInvalidOverride):
		return cli.WithExitCode(cli.ExitUsage, err)
	}
	return err
}

// withApp loads the configuration, builds the app, runs fn and closes the
// app.
func withApp(ctx context.Context, fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	runErr := fn(ctx, a)
	closeErr := a.Close(context.Background())
	if runErr != nil {
		return exitError(runErr)
	}
	return closeErr
}
