// Package frequency tracks how many messages each customer received,
// per message type, over a rolling window (seven days by default).
//
// The guardrail frequency-cap check reads counts from a Tracker; the
// pipeline records a send after a dispatch reaches at least one channel.
package frequency
