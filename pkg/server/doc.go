// Package server exposes the cadence HTTP API.
//
// Routes:
//
//   - POST /v1/triggers                     run one customer trigger through the pipeline
//   - GET  /v1/ledger                       query ledger entries (JSON or CSV)
//   - POST /v1/ledger/overrides             record a human override
//   - POST /v1/experiments                  create an experiment
//   - GET  /v1/experiments                  list experiments
//   - GET  /v1/experiments/{id}             show one experiment
//   - POST /v1/experiments/{id}/events      record an impression, conversion or revenue
//   - GET  /v1/experiments/{id}/winner      evaluate the experiment
//   - POST /v1/experiments/{id}/close       running -> completed
//   - POST /v1/experiments/{id}/archive     completed -> archived
//   - POST /v1/experiments/{id}/reset       clear counters and winner
//   - GET  /health, /ready, /version        see package health
//   - GET  /metrics                         Prometheus exposition
//
// Request bodies are validated against embedded JSON schemas before they
// are decoded. Errors are returned as
//
//	{"error": {"message": "...", "type": "not_found", "code": "experiment_not_found"}}
//
// When server.auth is enabled, /v1 routes require an operator key in
// "Authorization: Bearer <key>" or X-API-Key; other routes stay open.
//
// Middleware, outermost first: recovery, request ID, logging, auth,
// tracing, body limit, timeout.
package server
