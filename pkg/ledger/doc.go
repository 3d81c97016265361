// Package ledger provides the append-only audit trail of marketing
// decisions.
//
// Every decision that reaches the end of a pipeline run is appended as a
// snapshot together with its guardrail pass/fail map and human-review flag.
// Human overrides are separate entries that reference the decision by id.
// There is no update or delete operation, and the SQLite backend installs
// triggers that reject both.
//
// # Integrity
//
// Each entry carries the SHA-256 of its own JSON form and the hash of its
// predecessor. Verify walks the chain and reports the first entry whose
// contents or link do not match.
//
// # Storage Backends
//
//   - MemoryStorage: in-process slice, used by tests and the default server
//   - SQLiteStorage: durable file-backed storage
//
// # Export
//
// JSONExporter and CSVExporter serialize entries for compliance review.
package ledger
