package sim

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/episim/episim/sim/spatial"
)

// LeafSizePolicy chooses the k-d tree leaf size from the number of indexed
// points: max(floor(Fraction*n), Min).
type LeafSizePolicy struct {
	Fraction float64 `yaml:"fraction"`
	Min      int     `yaml:"min"`
}

// DefaultLeafSizePolicy is 1% of the points, never below 10.
func DefaultLeafSizePolicy() LeafSizePolicy {
	return LeafSizePolicy{Fraction: 0.01, Min: 10}
}

// LeafSize returns the leaf size for n points.
func (p LeafSizePolicy) LeafSize(n int) int {
	return max(int(math.Floor(p.Fraction*float64(n))), p.Min)
}

// Validate rejects policies that cannot produce a positive leaf size.
func (p LeafSizePolicy) Validate() error {
	if math.IsNaN(p.Fraction) || math.IsInf(p.Fraction, 0) || p.Fraction < 0 {
		return fmt.Errorf("leaf size fraction must be finite and non-negative, got %v: %w", p.Fraction, ErrConfiguration)
	}
	if p.Min < 1 {
		return fmt.Errorf("leaf size minimum must be >= 1, got %d: %w", p.Min, ErrConfiguration)
	}
	return nil
}

// StateIndex is the spatial index of one disease state for one step. It is
// either a *BuiltIndex or EmptyIndex; callers type-switch on it:
//
//	switch idx := m["I"].(type) {
//	case *sim.BuiltIndex:
//		ids := idx.Neighbors(p, radius)
//	case sim.EmptyIndex:
//		// nobody to query
//	}
type StateIndex interface {
	// Size returns the number of indexed agents (0 for EmptyIndex).
	Size() int
	isStateIndex()
}

// EmptyIndex marks a disease state with no eligible agent this step.
type EmptyIndex struct{}

func (EmptyIndex) Size() int     { return 0 }
func (EmptyIndex) isStateIndex() {}

// BuiltIndex pairs a k-d tree with the agent identifiers it was built from.
// Labels[i] is the agent whose position is the tree's offset i.
type BuiltIndex struct {
	Tree   *spatial.KDTree
	Labels []int
}

func (b *BuiltIndex) Size() int   { return len(b.Labels) }
func (*BuiltIndex) isStateIndex() {}

// Neighbors returns the identifiers of indexed agents within radius of p,
// ordered as the agents were indexed.
func (b *BuiltIndex) Neighbors(p r2.Vec, radius float64) []int {
	offsets := b.Tree.WithinRadius(p, radius)
	ids := make([]int, len(offsets))
	for i, off := range offsets {
		ids[i] = b.Labels[off]
	}
	return ids
}

// Nearest returns the identifier of the indexed agent closest to p and its distance.
func (b *BuiltIndex) Nearest(p r2.Vec) (int, float64) {
	off, d := b.Tree.Nearest(p)
	return b.Labels[off], d
}

// IndexMap holds one StateIndex per alive disease state. A map is valid only
// for the step that built it.
type IndexMap map[string]StateIndex

// Summary returns the number of indexed agents per disease state.
func (m IndexMap) Summary() map[string]int {
	out := make(map[string]int, len(m))
	for state, idx := range m {
		out[state] = idx.Size()
	}
	return out
}

// Labels returns the agent-label map: disease state to the identifiers fed to
// its index, or nil for states with an EmptyIndex.
func (m IndexMap) Labels() map[string][]int {
	out := make(map[string][]int, len(m))
	for state, idx := range m {
		if b, ok := idx.(*BuiltIndex); ok {
			out[state] = b.Labels
		} else {
			out[state] = nil
		}
	}
	return out
}

// Eligible reports whether row may take part in spatial queries for state:
// it carries the state and is neither hospitalized nor dead.
func Eligible(t *Table, row int, state string) bool {
	return t.DiseaseState[row] == state && !t.IsHospitalized[row] && !t.IsDead[row]
}

// BuildIndices builds a fresh spatial index for each alive disease state from
// the eligible rows of t. Nothing is reused from earlier calls.
func BuildIndices(t *Table, alive []string, policy LeafSizePolicy) IndexMap {
	rowsByState := make(map[string][]int, len(alive))
	for _, state := range alive {
		rowsByState[state] = nil
	}
	for row := 0; row < t.Len(); row++ {
		state := t.DiseaseState[row]
		if _, ok := rowsByState[state]; ok && Eligible(t, row, state) {
			rowsByState[state] = append(rowsByState[state], row)
		}
	}

	m := make(IndexMap, len(alive))
	for _, state := range alive {
		rows := rowsByState[state]
		if len(rows) == 0 {
			m[state] = EmptyIndex{}
			continue
		}
		labels := make([]int, len(rows))
		for i, row := range rows {
			labels[i] = t.Agent[row]
		}
		m[state] = &BuiltIndex{
			Tree:   spatial.New(t.Positions(rows), policy.LeafSize(len(rows))),
			Labels: labels,
		}
	}
	return m
}
