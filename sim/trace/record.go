// Package trace provides step-trace recording for spatial-index analysis.
// It has no dependencies on sim/ and stores pure data types.
package trace

import (
	"sort"
	"time"
)

// StepRecord captures the spatial indices built during one step.
type StepRecord struct {
	Step     int
	Datetime time.Time
	// Eligible maps disease state to the number of indexed agents
	// (0 for states that got no index).
	Eligible map[string]int
	// LeafSizes maps disease state to the k-d tree leaf size used.
	// States without an index are absent.
	LeafSizes map[string]int
}

// EmptyStates returns the states that had no eligible agent this step, sorted.
func (r StepRecord) EmptyStates() []string {
	var out []string
	for state, n := range r.Eligible {
		if n == 0 {
			out = append(out, state)
		}
	}
	sort.Strings(out)
	return out
}
