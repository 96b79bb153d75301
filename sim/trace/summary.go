package trace

// TraceSummary aggregates statistics from a PopulationTrace.
type TraceSummary struct {
	RunID        string             `json:"run_id,omitempty"`
	TotalSteps   int                `json:"total_steps"`
	MeanEligible map[string]float64 `json:"mean_eligible"` // state → mean indexed agents per step
	MaxEligible  map[string]int     `json:"max_eligible"`
	EmptySteps   map[string]int     `json:"empty_steps"` // state → steps with no index
}

// Summarize computes aggregate statistics from a PopulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(pt *PopulationTrace) *TraceSummary {
	summary := &TraceSummary{
		MeanEligible: make(map[string]float64),
		MaxEligible:  make(map[string]int),
		EmptySteps:   make(map[string]int),
	}
	if pt == nil {
		return summary
	}
	summary.RunID = pt.Config.RunID
	summary.TotalSteps = len(pt.Steps)
	if summary.TotalSteps == 0 {
		return summary
	}

	totals := make(map[string]int)
	for _, rec := range pt.Steps {
		for state, n := range rec.Eligible {
			totals[state] += n
			if n > summary.MaxEligible[state] {
				summary.MaxEligible[state] = n
			} else if _, seen := summary.MaxEligible[state]; !seen {
				summary.MaxEligible[state] = n
			}
			if n == 0 {
				summary.EmptySteps[state]++
			}
		}
	}
	for state, total := range totals {
		summary.MeanEligible[state] = float64(total) / float64(summary.TotalSteps)
	}
	return summary
}
