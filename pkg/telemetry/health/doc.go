// Package health implements the liveness, readiness and version endpoints.
//
//   - GET /health  always 200 while the process runs
//   - GET /ready   runs registered component checks; 503 when any fails
//   - GET /version build information
//
// The serve command registers checks for the ledger and experiment stores.
package health
