package sim

import (
	"fmt"
	"math"
	"math/rand"
	"slices"
	"sort"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// ArrangementSpec names an initial-arrangement routine and its keyword
// parameters, e.g. {Routine: "uniform_positions", Params: {"x_max": 100}}.
type ArrangementSpec struct {
	Routine string         `yaml:"routine"`
	Params  map[string]any `yaml:"params,omitempty"`
}

// ArrangementContext is what a routine may draw on besides the table.
type ArrangementContext struct {
	RNG      *rand.Rand
	Seed     int64 // seed of RNG, for libraries that want a seed
	Catalogs Catalogs
}

// ArrangementFunc consumes the table being initialized and returns it with
// its columns populated.
type ArrangementFunc func(t *Table, params map[string]any, ctx ArrangementContext) (*Table, error)

// Well-known label columns and the catalog that defines their values.
const (
	ColumnAgeGroup                = "age_group"
	ColumnVulnerabilityGroup      = "vulnerability_group"
	ColumnMRGroup                 = "mr_group"
	ColumnSusceptibilityGroup     = "susceptibility_group"
	ColumnMobilityGroup           = "mobility_group"
	ColumnIsolationAdherenceGroup = "isolation_adherence_group"
	ColumnDiseaseState            = "disease_state"
	ColumnIsHospitalized          = "is_hospitalized"
	ColumnIsDead                  = "is_dead"
	ColumnVX                      = "vx"
	ColumnVY                      = "vy"
)

var arrangementRoutines = map[string]ArrangementFunc{
	"uniform_positions": uniformPositions,
	"noise_positions":   noisePositions,
	"assign_labels":     assignLabels,
	"assign_flag":       assignFlag,
	"assign_velocity":   assignVelocity,
}

// ArrangementRoutines returns the registered routine names, sorted.
func ArrangementRoutines() []string {
	return sortedKeys(arrangementRoutines)
}

// IsValidArrangementRoutine returns true if name is a registered routine.
func IsValidArrangementRoutine(name string) bool {
	_, ok := arrangementRoutines[name]
	return ok
}

// ApplyArrangement runs the routine named by spec on t.
func ApplyArrangement(t *Table, spec ArrangementSpec, ctx ArrangementContext) (*Table, error) {
	fn, ok := arrangementRoutines[spec.Routine]
	if !ok {
		return nil, fmt.Errorf("unknown arrangement routine %q; valid: %v: %w", spec.Routine, ArrangementRoutines(), ErrConfiguration)
	}
	out, err := fn(t, spec.Params, ctx)
	if err != nil {
		return nil, fmt.Errorf("arrangement %s: %w", spec.Routine, err)
	}
	return out, nil
}

// === Parameter helpers ===

func floatParam(params map[string]any, key string, def float64) (float64, error) {
	v, ok := params[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	}
	return 0, fmt.Errorf("parameter %q must be a number, got %T: %w", key, v, ErrConfiguration)
}

func stringParam(params map[string]any, key string) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", fmt.Errorf("parameter %q is required: %w", key, ErrConfiguration)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("parameter %q must be a string, got %T: %w", key, v, ErrConfiguration)
	}
	return s, nil
}

type box struct{ xMin, xMax, yMin, yMax float64 }

func boxParams(params map[string]any) (box, error) {
	var b box
	var err error
	if b.xMin, err = floatParam(params, "x_min", 0); err != nil {
		return b, err
	}
	if b.xMax, err = floatParam(params, "x_max", 1); err != nil {
		return b, err
	}
	if b.yMin, err = floatParam(params, "y_min", 0); err != nil {
		return b, err
	}
	if b.yMax, err = floatParam(params, "y_max", 1); err != nil {
		return b, err
	}
	if !(b.xMax > b.xMin) || !(b.yMax > b.yMin) {
		return b, fmt.Errorf("box [%v,%v]x[%v,%v] is empty: %w", b.xMin, b.xMax, b.yMin, b.yMax, ErrConfiguration)
	}
	return b, nil
}

func (b box) sample(rng *rand.Rand) (float64, float64) {
	return b.xMin + rng.Float64()*(b.xMax-b.xMin), b.yMin + rng.Float64()*(b.yMax-b.yMin)
}

// === Routines ===

// uniformPositions scatters agents uniformly over a box.
func uniformPositions(t *Table, params map[string]any, ctx ArrangementContext) (*Table, error) {
	b, err := boxParams(params)
	if err != nil {
		return nil, err
	}
	for i := range t.Agent {
		t.X[i], t.Y[i] = b.sample(ctx.RNG)
	}
	return t, nil
}

// maxNoiseAttempts bounds rejection sampling per agent.
const maxNoiseAttempts = 10_000

// noisePositions scatters agents over a box with density following 2-D
// simplex noise, which yields clustered settlements instead of a flat spread.
// A candidate is kept with probability noise^sharpness.
func noisePositions(t *Table, params map[string]any, ctx ArrangementContext) (*Table, error) {
	b, err := boxParams(params)
	if err != nil {
		return nil, err
	}
	freq, err := floatParam(params, "frequency", 0.05)
	if err != nil {
		return nil, err
	}
	sharpness, err := floatParam(params, "sharpness", 2)
	if err != nil {
		return nil, err
	}
	if freq <= 0 || sharpness < 0 {
		return nil, fmt.Errorf("frequency must be > 0 and sharpness >= 0, got %v and %v: %w", freq, sharpness, ErrConfiguration)
	}

	noise := opensimplex.NewNormalized(ctx.Seed)
	for i := range t.Agent {
		placed := false
		for attempt := 0; attempt < maxNoiseAttempts; attempt++ {
			x, y := b.sample(ctx.RNG)
			if ctx.RNG.Float64() <= math.Pow(noise.Eval2(x*freq, y*freq), sharpness) {
				t.X[i], t.Y[i] = x, y
				placed = true
				break
			}
		}
		if !placed {
			return nil, fmt.Errorf("could not place agent %d after %d attempts; lower sharpness: %w", t.Agent[i], maxNoiseAttempts, ErrConfiguration)
		}
	}
	return t, nil
}

// catalogLabels returns the labels a well-known column may take, or nil when
// the column is free-form.
func catalogLabels(column string, c Catalogs) []string {
	switch column {
	case ColumnDiseaseState:
		return sortedKeys(c.DiseaseStates)
	case ColumnAgeGroup:
		return sortedKeys(c.Age)
	case ColumnVulnerabilityGroup:
		return sortedKeys(c.Vulnerability)
	case ColumnMRGroup:
		return sortedKeys(c.MobilityRestriction)
	case ColumnSusceptibilityGroup:
		return sortedKeys(c.Susceptibility)
	case ColumnMobilityGroup:
		return sortedKeys(c.Mobility)
	case ColumnIsolationAdherenceGroup:
		return sortedKeys(c.IsolationAdherence)
	}
	return nil
}

// assignLabels draws one label per agent from a categorical distribution.
// Assigning disease_state also sets is_dead from the catalog.
func assignLabels(t *Table, params map[string]any, ctx ArrangementContext) (*Table, error) {
	column, err := stringParam(params, "column")
	if err != nil {
		return nil, err
	}
	rawWeights, ok := params["weights"].(map[string]any)
	if !ok || len(rawWeights) == 0 {
		return nil, fmt.Errorf("parameter \"weights\" must be a non-empty map of label to weight: %w", ErrConfiguration)
	}

	allowed := catalogLabels(column, ctx.Catalogs)
	labels := make([]string, 0, len(rawWeights))
	for label := range rawWeights {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	cumulative := make([]float64, len(labels))
	total := 0.0
	for i, label := range labels {
		if allowed != nil && !slices.Contains(allowed, label) {
			return nil, fmt.Errorf("label %q is not defined for column %s: %w", label, column, ErrConfiguration)
		}
		w, err := floatParam(rawWeights, label, 0)
		if err != nil {
			return nil, err
		}
		if w < 0 || math.IsNaN(w) {
			return nil, fmt.Errorf("weight of %q must be non-negative, got %v: %w", label, w, ErrConfiguration)
		}
		total += w
		cumulative[i] = total
	}
	if total <= 0 {
		return nil, fmt.Errorf("weights of column %s sum to zero: %w", column, ErrConfiguration)
	}

	col := make([]string, t.Len())
	for i := range col {
		u := ctx.RNG.Float64() * total
		// Strict > never lands on a zero-weight label.
		j := sort.Search(len(cumulative), func(k int) bool { return cumulative[k] > u })
		col[i] = labels[j]
	}

	if column == ColumnDiseaseState {
		copy(t.DiseaseState, col)
		for i, state := range col {
			t.IsDead[i] = ctx.Catalogs.DiseaseStates[state].IsDead
		}
		return t, nil
	}
	if err := t.SetLabelColumn(column, col); err != nil {
		return nil, err
	}
	return t, nil
}

// assignFlag sets a boolean column to true with the given probability.
func assignFlag(t *Table, params map[string]any, ctx ArrangementContext) (*Table, error) {
	column, err := stringParam(params, "column")
	if err != nil {
		return nil, err
	}
	p, err := floatParam(params, "probability", 0)
	if err != nil {
		return nil, err
	}
	if p < 0 || p > 1 || math.IsNaN(p) {
		return nil, fmt.Errorf("probability must be in [0, 1], got %v: %w", p, ErrConfiguration)
	}
	var flags []bool
	switch column {
	case ColumnIsHospitalized:
		flags = t.IsHospitalized
	case ColumnIsDead:
		flags = t.IsDead
	default:
		return nil, fmt.Errorf("unknown flag column %q; valid: is_hospitalized, is_dead: %w", column, ErrConfiguration)
	}
	for i := range flags {
		flags[i] = ctx.RNG.Float64() < p
	}
	return t, nil
}

// assignVelocity gives every agent a random heading and a speed drawn
// uniformly in [0, max_speed]. When max_speed is omitted the agent's
// mobility_group decides it.
func assignVelocity(t *Table, params map[string]any, ctx ArrangementContext) (*Table, error) {
	fixed, hasFixed := params["max_speed"]
	var speedOf func(row int) (float64, error)
	if hasFixed {
		s, err := floatParam(params, "max_speed", 0)
		if err != nil {
			return nil, err
		}
		if s < 0 {
			return nil, fmt.Errorf("max_speed must be non-negative, got %v: %w", fixed, ErrConfiguration)
		}
		speedOf = func(int) (float64, error) { return s, nil }
	} else {
		groups, ok := t.LabelColumn(ColumnMobilityGroup)
		if !ok {
			return nil, fmt.Errorf("max_speed omitted and column %s not assigned yet: %w", ColumnMobilityGroup, ErrConfiguration)
		}
		speedOf = func(row int) (float64, error) {
			g, ok := ctx.Catalogs.Mobility[groups[row]]
			if !ok {
				return 0, fmt.Errorf("mobility group %q not in catalog: %w", groups[row], ErrConfiguration)
			}
			return g.MaxSpeed, nil
		}
	}

	vx := make([]float64, t.Len())
	vy := make([]float64, t.Len())
	for i := range vx {
		maxSpeed, err := speedOf(i)
		if err != nil {
			return nil, err
		}
		speed := ctx.RNG.Float64() * maxSpeed
		theta := ctx.RNG.Float64() * 2 * math.Pi
		vx[i] = speed * math.Cos(theta)
		vy[i] = speed * math.Sin(theta)
	}
	if err := t.SetValueColumn(ColumnVX, vx); err != nil {
		return nil, err
	}
	if err := t.SetValueColumn(ColumnVY, vy); err != nil {
		return nil, err
	}
	return t, nil
}
