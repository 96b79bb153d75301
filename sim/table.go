package sim

import (
	"fmt"
	"math"
	"slices"
	"time"

	"gonum.org/v1/gonum/spatial/r2"
)

// Table is the population record set stored column by column. Row i of every
// column describes the same agent; rows keep their creation order. The
// remove-dead stage may drop rows but never reorders them.
//
// Labels and Values carry domain columns owned by collaborators (group
// memberships, velocities, ...). Every column, fixed or open, has Len() rows.
type Table struct {
	Agent          []int
	Step           []int
	Datetime       []time.Time
	X              []float64
	Y              []float64
	DiseaseState   []string
	IsHospitalized []bool
	IsDead         []bool

	Labels map[string][]string
	Values map[string][]float64
}

// NewTable allocates n rows with agent identifiers 0..n-1 and zero-valued
// columns everywhere else.
func NewTable(n int) *Table {
	t := &Table{
		Agent:          make([]int, n),
		Step:           make([]int, n),
		Datetime:       make([]time.Time, n),
		X:              make([]float64, n),
		Y:              make([]float64, n),
		DiseaseState:   make([]string, n),
		IsHospitalized: make([]bool, n),
		IsDead:         make([]bool, n),
		Labels:         make(map[string][]string),
		Values:         make(map[string][]float64),
	}
	for i := range t.Agent {
		t.Agent[i] = i
	}
	return t
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Agent)
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	c := &Table{
		Agent:          slices.Clone(t.Agent),
		Step:           slices.Clone(t.Step),
		Datetime:       slices.Clone(t.Datetime),
		X:              slices.Clone(t.X),
		Y:              slices.Clone(t.Y),
		DiseaseState:   slices.Clone(t.DiseaseState),
		IsHospitalized: slices.Clone(t.IsHospitalized),
		IsDead:         slices.Clone(t.IsDead),
		Labels:         make(map[string][]string, len(t.Labels)),
		Values:         make(map[string][]float64, len(t.Values)),
	}
	for name, col := range t.Labels {
		c.Labels[name] = slices.Clone(col)
	}
	for name, col := range t.Values {
		c.Values[name] = slices.Clone(col)
	}
	return c
}

// Append concatenates the rows of other after the rows of t. Open columns
// present on only one side are back-filled for the rows that lack them: ""
// for labels, NaN for values. Agent identifiers are not required to be
// unique across the result: an appended table is a history, not a population.
func (t *Table) Append(other *Table) error {
	if err := other.checkColumnLengths(); err != nil {
		return fmt.Errorf("appending table: %w", err)
	}
	n, m := t.Len(), other.Len()
	if t.Labels == nil {
		t.Labels = make(map[string][]string)
	}
	if t.Values == nil {
		t.Values = make(map[string][]float64)
	}
	for name := range other.Labels {
		if _, ok := t.Labels[name]; !ok {
			t.Labels[name] = make([]string, n)
		}
	}
	for name := range other.Values {
		if _, ok := t.Values[name]; !ok {
			t.Values[name] = nanColumn(n)
		}
	}

	t.Agent = append(t.Agent, other.Agent...)
	t.Step = append(t.Step, other.Step...)
	t.Datetime = append(t.Datetime, other.Datetime...)
	t.X = append(t.X, other.X...)
	t.Y = append(t.Y, other.Y...)
	t.DiseaseState = append(t.DiseaseState, other.DiseaseState...)
	t.IsHospitalized = append(t.IsHospitalized, other.IsHospitalized...)
	t.IsDead = append(t.IsDead, other.IsDead...)
	for name, col := range t.Labels {
		if src, ok := other.Labels[name]; ok {
			t.Labels[name] = append(col, src...)
		} else {
			t.Labels[name] = append(col, make([]string, m)...)
		}
	}
	for name, col := range t.Values {
		if src, ok := other.Values[name]; ok {
			t.Values[name] = append(col, src...)
		} else {
			t.Values[name] = append(col, nanColumn(m)...)
		}
	}
	return nil
}

// Select returns a copy of the given rows, in the order given. Removal stages
// use it to drop agents.
func (t *Table) Select(rows []int) *Table {
	out := &Table{
		Agent:          make([]int, len(rows)),
		Step:           make([]int, len(rows)),
		Datetime:       make([]time.Time, len(rows)),
		X:              make([]float64, len(rows)),
		Y:              make([]float64, len(rows)),
		DiseaseState:   make([]string, len(rows)),
		IsHospitalized: make([]bool, len(rows)),
		IsDead:         make([]bool, len(rows)),
		Labels:         make(map[string][]string, len(t.Labels)),
		Values:         make(map[string][]float64, len(t.Values)),
	}
	for i, row := range rows {
		out.Agent[i] = t.Agent[row]
		out.Step[i] = t.Step[row]
		out.Datetime[i] = t.Datetime[row]
		out.X[i], out.Y[i] = t.X[row], t.Y[row]
		out.DiseaseState[i] = t.DiseaseState[row]
		out.IsHospitalized[i] = t.IsHospitalized[row]
		out.IsDead[i] = t.IsDead[row]
	}
	for name, col := range t.Labels {
		sel := make([]string, len(rows))
		for i, row := range rows {
			sel[i] = col[row]
		}
		out.Labels[name] = sel
	}
	for name, col := range t.Values {
		sel := make([]float64, len(rows))
		for i, row := range rows {
			sel[i] = col[row]
		}
		out.Values[name] = sel
	}
	return out
}

func nanColumn(n int) []float64 {
	col := make([]float64, n)
	for i := range col {
		col[i] = math.NaN()
	}
	return col
}

// Validate checks that every column has Len() rows and that agent identifiers
// are unique.
func (t *Table) Validate() error {
	if err := t.checkColumnLengths(); err != nil {
		return err
	}
	seen := make(map[int]struct{}, t.Len())
	for _, id := range t.Agent {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("duplicate agent id %d: %w", id, ErrInvalidState)
		}
		seen[id] = struct{}{}
	}
	return nil
}

func (t *Table) checkColumnLengths() error {
	n := t.Len()
	lengths := map[string]int{
		"step":            len(t.Step),
		"datetime":        len(t.Datetime),
		"x":               len(t.X),
		"y":               len(t.Y),
		"disease_state":   len(t.DiseaseState),
		"is_hospitalized": len(t.IsHospitalized),
		"is_dead":         len(t.IsDead),
	}
	for name, col := range t.Labels {
		lengths[name] = len(col)
	}
	for name, col := range t.Values {
		lengths[name] = len(col)
	}
	for _, name := range sortedKeys(lengths) {
		if lengths[name] != n {
			return fmt.Errorf("column %q has %d rows, want %d: %w", name, lengths[name], n, ErrInvalidState)
		}
	}
	return nil
}

// Positions returns the (x, y) positions of the given rows, in the order given.
func (t *Table) Positions(rows []int) []r2.Vec {
	pts := make([]r2.Vec, len(rows))
	for i, row := range rows {
		pts[i] = r2.Vec{X: t.X[row], Y: t.Y[row]}
	}
	return pts
}

// SetLabelColumn creates or overwrites a label column.
func (t *Table) SetLabelColumn(name string, col []string) error {
	if len(col) != t.Len() {
		return fmt.Errorf("label column %q has %d rows, want %d: %w", name, len(col), t.Len(), ErrConfiguration)
	}
	if t.Labels == nil {
		t.Labels = make(map[string][]string)
	}
	t.Labels[name] = col
	return nil
}

// SetValueColumn creates or overwrites a numeric column.
func (t *Table) SetValueColumn(name string, col []float64) error {
	if len(col) != t.Len() {
		return fmt.Errorf("value column %q has %d rows, want %d: %w", name, len(col), t.Len(), ErrConfiguration)
	}
	if t.Values == nil {
		t.Values = make(map[string][]float64)
	}
	t.Values[name] = col
	return nil
}

// LabelColumn returns the named label column, or false if absent.
func (t *Table) LabelColumn(name string) ([]string, bool) {
	col, ok := t.Labels[name]
	return col, ok
}

// ValueColumn returns the named numeric column, or false if absent.
func (t *Table) ValueColumn(name string) ([]float64, bool) {
	col, ok := t.Values[name]
	return col, ok
}
