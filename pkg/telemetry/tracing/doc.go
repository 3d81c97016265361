// Package tracing sets up OpenTelemetry tracing for Cadence.
//
// New installs an SDK tracer provider exporting over OTLP gRPC as the
// global provider, together with the W3C TraceContext and Baggage
// propagators. Components get their tracer from Named and close spans with
// End. When tracing is disabled nothing is installed and spans are no-ops.
//
// Span hierarchy for one trigger received over HTTP:
//
//	POST /v1/triggers                (HTTPMiddleware, server span)
//	└── pipeline.process_trigger
//	    ├── pipeline.guardrails
//	    └── pipeline.dispatch
package tracing
