// Package experiment implements creative experiments: variant generation,
// scoring and traffic allocation, event tracking, and significance testing.
//
// # Lifecycle
//
//	running --Close--> completed --Archive--> archived
//
// A winner can only be declared while running. Once declared it does not
// change until the experiment is Reset, which also zeroes all counters.
//
// # Significance
//
// Each challenger is compared to the control with a pooled-proportion
// chi-square statistic over the conversion cells, mapped to a p-value by a
// coarse step table (see PValue). A challenger wins when the p-value is
// below 1-confidence and its conversion rate exceeds the control's. The
// test is a reproducible approximation, not a rigorous statistical model.
//
// # Concurrency
//
// Engine serializes all mutations behind one lock and writes each change
// through to its Store, so concurrent RecordEvent calls never lose an
// increment.
package experiment
