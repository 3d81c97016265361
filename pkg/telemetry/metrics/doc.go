// Package metrics exposes Cadence's Prometheus metrics.
//
// A Collector implements pipeline.Observer, dispatch.Observer and
// experiment.Observer:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	engine := experiment.NewEngine(store, experiment.WithObserver(collector))
//	dispatcher := dispatch.NewDefault(transport, dispatch.WithObserver(collector))
//	orch, _ := pipeline.New(deps, pcfg, pipeline.WithObserver(collector))
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// Exported series, with the default "cadence" namespace:
//
//   - cadence_pipeline_runs_total{status}
//   - cadence_pipeline_run_duration_seconds{status}
//   - cadence_decisions_total{policy,action}
//   - cadence_guardrail_evaluations_total{result}
//   - cadence_guardrail_check_failures_total{check,severity}
//   - cadence_dispatch_attempts_total{channel,status}
//   - cadence_dispatch_duration_seconds{channel}
//   - cadence_experiment_events_total{event}
//   - cadence_experiment_winners_total
//   - cadence_ledger_entries
package metrics
