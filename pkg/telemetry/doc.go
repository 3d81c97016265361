// Package telemetry groups Cadence's observability packages.
//
//   - logging: process slog logger with contact-data redaction
//   - metrics: Prometheus collector for pipeline, guardrail, dispatch and experiment outcomes
//   - tracing: OpenTelemetry tracer provider and HTTP trace propagation
//   - health: liveness, readiness and version endpoints
package telemetry
