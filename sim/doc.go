// Package sim provides the agent-based population evolution engine.
//
// # Reading Guide
//
// Start with these three files to understand the engine:
//   - table.go: the columnar agent table (one row per agent)
//   - population.go: construction, the step controller and the history
//   - index.go: per-disease-state spatial indices rebuilt every step
//
// # Architecture
//
// The sim package owns the table and the step loop; helpers live in
// sub-packages:
//   - sim/spatial/: bucketed 2-D k-d tree used by the per-state indices
//   - sim/scenario/: YAML scenario loading and validation
//   - sim/trace/: per-step index trace recording
//
// A step removes dead agents, advances the clock, runs the transition and
// quarantine stages, rebuilds one index per alive disease state from agents
// that are neither hospitalized nor dead, then runs the neighbor-tracing,
// alertness, contagion and movement stages against those indices. Every step
// works on a copy of the table that replaces the current one only after all
// stages succeed.
//
// # Key Interfaces
//
// The extension points are small:
//   - Stage: one slot of the step pipeline (see Stages for the slot order)
//   - ArrangementFunc: an initial-arrangement routine, selected by name
//   - StateIndex: either a *BuiltIndex or the EmptyIndex marker
//
// Catalogs are read-only inputs; the tracing radius and the alive states are
// derived from them once, at construction.
package sim
