// Package guardrail validates rendered marketing content before dispatch.
//
// Seven independent checks make up the default battery: frequency cap,
// spam score, minimum engagement, region-conditioned consent, required
// disclosures, tone consistency and personalization presence. Each check is
// a Checker with no shared state, so a Gate runs them concurrently.
//
// Aggregation is deliberately permissive: the gate passes unless a check
// with severity critical failed. Error and warning failures are recorded
// in the Outcome but do not block. Only consent (inside regulated regions)
// and disclosure failures are critical.
package guardrail
