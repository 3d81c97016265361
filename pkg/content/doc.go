// Package content turns a decision's copy into the two shapes the pipeline
// needs: the templated guardrail.Content the gate inspects, and the
// personalized dispatch.Message channels deliver.
package content
