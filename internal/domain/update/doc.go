// Package update contains core domain types for the update reconciliation
// engine.
//
// It defines the per-path Classification, the ordered Plan derived from it,
// the ApplyReport describing what a run changed, the orchestrator Status and
// the error kinds every failure wraps.
package update
