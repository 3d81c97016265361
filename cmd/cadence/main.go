// Cadence decides, gates and dispatches automated customer-marketing
// actions, and keeps an append-only audit ledger of every decision.
//
// Usage:
//
//	# Start the HTTP API with the default configuration
//	cadence serve
//
//	# Run one trigger through the pipeline
//	cadence trigger cust_003 cart_abandoned
//
//	# Inspect the audit ledger
//	cadence ledger history --customer cust_003
//	cadence ledger verify
//
//	# Manage creative experiments
//	cadence experiment create --name subject-test --baseline-subject "Hello {{first_name}}"
//	cadence experiment winner <id>
//
//	# Check a configuration file
//	cadence config validate --config cadence.yaml
package main

func main() {
	Execute()
}
