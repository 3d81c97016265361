package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/cadence/pkg/cli"
	"mercator-hq/cadence/pkg/config"
	"mercator-hq/cadence/pkg/experiment"
	"mercator-hq/cadence/pkg/server"
	"mercator-hq/cadence/pkg/telemetry/health"
)

// pruneInterval is how often expired frequency buckets are dropped.
const pruneInterval = 10 * time.Minute

var serveFlags struct {
	listen  string
	noWatch bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the Cadence HTTP API until interrupted.

The server exposes trigger processing, ledger queries and overrides,
experiment management, health endpoints and Prometheus metrics. When a
config file is given, guardrail thresholds are reloaded when it changes.`,
	Example: `  cadence serve --config cadence.yaml
  cadence serve --listen 0.0.0.0:9090 --no-watch`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.listen, "listen", "", "listen address (overrides server.listen_address)")
	serveCmd.Flags().BoolVar(&serveFlags.noWatch, "no-watch", false, "do not reload the config file on change")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := cli.SetupSignalHandler()
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveFlags.listen != "" {
		cfg.Server.ListenAddress = serveFlags.listen
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := a.Close(ctx); err != nil {
			slog.Error("close failed", "error", err)
		}
	}()

	srv, err := a.newServer()
	if err != nil {
		return err
	}

	scheduler := experiment.NewScheduler(a.experiments, cfg.Experiments.EvaluationSchedule)
	if err := scheduler.Start(ctx); err != nil {
		return cli.WithExitCode(cli.ExitUsage, err)
	}
	defer scheduler.Stop()
	if next := scheduler.NextRun(); next != nil {
		slog.Info("next experiment evaluation", "at", next.Format(time.RFC3339))
	}

	go a.pruneFrequency(ctx, pruneInterval)

	if cfgFile != "" && !serveFlags.noWatch {
		watcher, err := config.NewWatcher(cfgFile, 0)
		if err != nil {
			return err
		}
		go func() {
			if err := watcher.Watch(ctx, a.reloadGuardrails); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("config watcher stopped", "error", err)
			}
		}()
		defer func() { _ = watcher.Close() }()
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Cadence %s listening on %s\n", Version, cfg.Server.ListenAddress)
	return srv.Start(ctx)
}

// newServer builds the HTTP server with health checks and metrics.
func (a *app) newServer() (*server.Server, error) {
	checker := health.New(0)
	checker.Register("ledger", func(ctx context.Context) error {
		_, err := a.ledger.Len(ctx)
		return err
	})
	checker.Register("experiments", func(ctx context.Context) error {
		_, err := a.expStore.List(ctx)
		return err
	})

	deps := server.Deps{
		Pipeline:    a.pipeline,
		Ledger:      a.ledger,
		Experiments: a.experiments,
		Scorer:      a.scorer,
		Health:      checker,
		Version:     versionInfo(),
	}
	if a.cfg.Telemetry.Metrics.Enabled {
		deps.Metrics = a.metrics.Handler()
		deps.MetricsPath = a.cfg.Telemetry.Metrics.Path
	}
	return server.New(&a.cfg.Server, deps)
}

// pruneFrequency drops expired send counts until ctx is done.
func (a *app) pruneFrequency(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.frequency.Prune(); n > 0 {
				slog.Debug("pruned frequency counters", "removed", n)
			}
		}
	}
}
