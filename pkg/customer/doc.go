// Package customer defines the enriched customer record consumed by the
// decision pipeline and the providers that supply it.
//
// Records are produced upstream (ingestion, enrichment) and are treated as
// read-only here. Normalize enforces the value ranges the rest of the
// pipeline relies on: scores in [0,1], monetary values and counters >= 0.
package customer
