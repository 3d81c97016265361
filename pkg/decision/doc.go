// Package decision turns a customer record and a trigger into one proposed
// action.
//
// Four policies implement the Policy interface: Campaign, Lifecycle,
// CreativeTest and CartWinback. A Router maps trigger labels to policies
// through a table and falls back to Campaign for anything unlisted.
//
// Policies are pure apart from the generated id and timestamp. Ineligible
// input produces a Decision with Action == ActionSkip and confidence 0.9;
// it is never an error. Human review flags are forced on above fixed value
// thresholds that are not exposed as configuration.
package decision
