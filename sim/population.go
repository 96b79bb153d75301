package sim

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/episim/episim/sim/trace"
)

// ExecutionMode tells downstream stages whether to update agents one by one
// or column-wise. The population itself behaves the same in both modes.
type ExecutionMode string

const (
	ExecutionIterative  ExecutionMode = "iterative"
	ExecutionVectorized ExecutionMode = "vectorized"
)

// EvolutionMode decides whether the population keeps every step's table.
type EvolutionMode string

const (
	// EvolutionSteps keeps only the current table.
	EvolutionSteps EvolutionMode = "steps"
	// EvolutionCumulative appends every step's table to a history.
	EvolutionCumulative EvolutionMode = "cumulative"
)

var (
	validExecutionModes = map[ExecutionMode]bool{ExecutionIterative: true, ExecutionVectorized: true}
	validEvolutionModes = map[EvolutionMode]bool{EvolutionSteps: true, EvolutionCumulative: true}
)

// IsValidExecutionMode returns true if mode is a recognized execution mode.
func IsValidExecutionMode(mode string) bool { return validExecutionModes[ExecutionMode(mode)] }

// IsValidEvolutionMode returns true if mode is a recognized evolution mode.
func IsValidEvolutionMode(mode string) bool { return validEvolutionModes[EvolutionMode(mode)] }

// Config is the population-level configuration.
type Config struct {
	PopulationNumber int           `yaml:"population_number"`
	InitialDate      time.Time     `yaml:"initial_date"`
	IterationTime    time.Duration `yaml:"iteration_time"`
}

// Validate checks the configuration values.
func (c Config) Validate() error {
	if c.PopulationNumber < 1 {
		return fmt.Errorf("population_number must be positive, got %d: %w", c.PopulationNumber, ErrConfiguration)
	}
	if c.IterationTime <= 0 {
		return fmt.Errorf("iteration_time must be positive, got %v: %w", c.IterationTime, ErrConfiguration)
	}
	return nil
}

// Option customizes a Population at construction.
type Option func(*Population)

// WithPolicies sets the mobility-restriction policies.
func WithPolicies(p Policies) Option {
	return func(pop *Population) { pop.policies = p }
}

// WithHealthSystem sets the health system description.
func WithHealthSystem(h HealthSystem) Option {
	return func(pop *Population) { pop.health = &h }
}

// WithExecutionMode sets the execution mode. Default iterative.
func WithExecutionMode(m ExecutionMode) Option {
	return func(pop *Population) { pop.execMode = m }
}

// WithEvolutionMode sets the evolution mode. Default steps.
func WithEvolutionMode(m EvolutionMode) Option {
	return func(pop *Population) { pop.evolMode = m }
}

// WithStages replaces pipeline stages. Nil slots stay no-ops.
func WithStages(s Stages) Option {
	return func(pop *Population) { pop.stages = s }
}

// WithLeafSizePolicy overrides the k-d tree leaf-size policy.
func WithLeafSizePolicy(l LeafSizePolicy) Option {
	return func(pop *Population) { pop.leafPolicy = l }
}

// WithSeed sets the seed for initial-arrangement randomness. Default 42.
func WithSeed(seed int64) Option {
	return func(pop *Population) { pop.rng = NewPartitionedRNG(NewSimulationKey(seed)) }
}

// WithTraceLevel enables step tracing.
func WithTraceLevel(level trace.TraceLevel) Option {
	return func(pop *Population) { pop.traceLevel = level }
}

// WithArrangementRoutine makes a custom routine available to this population
// under name, shadowing any built-in of the same name.
func WithArrangementRoutine(name string, fn ArrangementFunc) Option {
	return func(pop *Population) { pop.routines[name] = fn }
}

// Population owns the agent table and evolves it step by step. It is the only
// writer of the table: accessors hand out copies.
//
// Thread-safety: NOT thread-safe. Must be used from a single goroutine.
type Population struct {
	cfg        Config
	catalogs   Catalogs
	setup      []ArrangementSpec
	policies   Policies
	health     *HealthSystem
	execMode   ExecutionMode
	evolMode   EvolutionMode
	stages     Stages
	leafPolicy LeafSizePolicy
	rng        *PartitionedRNG
	routines   map[string]ArrangementFunc
	traceLevel trace.TraceLevel

	runID string
	log   *logrus.Entry
	trace *trace.PopulationTrace

	deadState     string
	aliveStates   []string
	tracingRadius float64

	step    int
	table   *Table
	history *Table   // nil unless cumulative
	indices IndexMap // built during the last completed step
}

// NewPopulation validates the configuration, derives the alive disease states
// and the tracing radius, then creates one row per agent and runs the initial
// arrangement routines in order.
func NewPopulation(cfg Config, catalogs Catalogs, setup []ArrangementSpec, opts ...Option) (*Population, error) {
	p := &Population{
		cfg:        cfg,
		catalogs:   catalogs,
		setup:      setup,
		execMode:   ExecutionIterative,
		evolMode:   EvolutionSteps,
		stages:     DefaultStages(),
		leafPolicy: DefaultLeafSizePolicy(),
		rng:        NewPartitionedRNG(NewSimulationKey(42)),
		routines:   make(map[string]ArrangementFunc),
		traceLevel: trace.TraceLevelNone,
		runID:      uuid.NewString(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.stages = p.stages.withDefaults()
	p.log = logrus.WithField("run_id", p.runID)
	p.trace = trace.NewPopulationTrace(trace.TraceConfig{Level: p.traceLevel, RunID: p.runID})

	if err := p.validate(); err != nil {
		return nil, err
	}

	var err error
	if p.deadState, p.aliveStates, err = ResolveAliveStates(catalogs.DiseaseStates); err != nil {
		return nil, err
	}
	if p.tracingRadius, err = ChooseTracingRadius(catalogs.DiseaseStates, catalogs.NaturalHistory); err != nil {
		return nil, err
	}
	if err := p.initializeTable(); err != nil {
		return nil, err
	}

	p.log.Infof("population initialized: agents=%d, alive_states=%v, dead_state=%s, tracing_radius=%g, evolution_mode=%s",
		cfg.PopulationNumber, p.aliveStates, p.deadState, p.tracingRadius, p.evolMode)
	return p, nil
}

func (p *Population) validate() error {
	if err := p.cfg.Validate(); err != nil {
		return err
	}
	if !validExecutionModes[p.execMode] {
		return fmt.Errorf("unknown execution mode %q; valid: iterative, vectorized: %w", p.execMode, ErrConfiguration)
	}
	if !validEvolutionModes[p.evolMode] {
		return fmt.Errorf("unknown evolution mode %q; valid: steps, cumulative: %w", p.evolMode, ErrConfiguration)
	}
	if !trace.IsValidTraceLevel(string(p.traceLevel)) {
		return fmt.Errorf("unknown trace level %q: %w", p.traceLevel, ErrConfiguration)
	}
	return p.leafPolicy.Validate()
}

func (p *Population) initializeTable() error {
	t := NewTable(p.cfg.PopulationNumber)

	for i, spec := range p.setup {
		name := SubsystemArrangement(i)
		ctx := ArrangementContext{
			RNG:      p.rng.ForSubsystem(name),
			Seed:     p.rng.DerivedSeed(name),
			Catalogs: p.catalogs,
		}
		var err error
		if fn, ok := p.routines[spec.Routine]; ok {
			t, err = fn(t, spec.Params, ctx)
			if err != nil {
				err = fmt.Errorf("arrangement %s: %w", spec.Routine, err)
			}
		} else {
			t, err = ApplyArrangement(t, spec, ctx)
		}
		if err != nil {
			return fmt.Errorf("initial arrangement %d: %w", i, err)
		}
		if t == nil {
			return fmt.Errorf("initial arrangement %d (%s) returned no table: %w", i, spec.Routine, ErrConfiguration)
		}
		p.log.Debugf("applied initial arrangement %d: %s", i, spec.Routine)
	}

	if t.Len() != p.cfg.PopulationNumber {
		return fmt.Errorf("initial arrangement changed row count to %d, want %d: %w", t.Len(), p.cfg.PopulationNumber, ErrConfiguration)
	}
	if err := t.Validate(); err != nil {
		return fmt.Errorf("initial arrangement: %w", err)
	}
	for row, state := range t.DiseaseState {
		if _, ok := p.catalogs.DiseaseStates[state]; !ok {
			return fmt.Errorf("agent %d has disease state %q not in catalog: %w", t.Agent[row], state, ErrConfiguration)
		}
	}

	p.step = 0
	for i := range t.Agent {
		t.Step[i] = p.step
		t.Datetime[i] = p.cfg.InitialDate
	}
	p.table = t

	if p.evolMode == EvolutionCumulative {
		p.history = t.Clone()
	}
	return nil
}

// Evolve runs iterations steps. A failing step aborts the remaining ones;
// steps completed before it stay committed, the failing one leaves no trace.
func (p *Population) Evolve(iterations int) error {
	if iterations < 1 {
		return fmt.Errorf("iterations must be positive, got %d: %w", iterations, ErrConfiguration)
	}
	for i := 0; i < iterations; i++ {
		if err := p.evolveSingleStep(); err != nil {
			return fmt.Errorf("evolving step %d: %w", p.step+1, err)
		}
	}
	return nil
}

// evolveSingleStep works on a copy of the table and commits it, together with
// the new indices and the history append, only when every stage succeeded.
func (p *Population) evolveSingleStep() error {
	work := p.table.Clone()
	var err error

	if work, err = p.runStage(p.stages.RemoveDead, work, nil, true); err != nil {
		return err
	}

	step := p.step + 1
	for i := range work.Agent {
		work.Step[i] = step
		work.Datetime[i] = work.Datetime[i].Add(p.cfg.IterationTime)
	}

	for _, s := range p.stages.beforeIndexing() {
		if work, err = p.runStage(s, work, nil, false); err != nil {
			return err
		}
	}

	indices := BuildIndices(work, p.aliveStates, p.leafPolicy)

	for _, s := range p.stages.afterIndexing() {
		if work, err = p.runStage(s, work, indices, false); err != nil {
			return err
		}
	}

	if err := work.Validate(); err != nil {
		return err
	}
	if p.evolMode == EvolutionCumulative {
		if err := p.history.Append(work); err != nil {
			return err
		}
	}

	p.step = step
	p.table = work
	p.indices = indices
	p.recordStep()
	return nil
}

// runStage applies s and checks its output. Only the remove-dead stage
// (mayShrink) may return fewer rows; no stage may add rows.
func (p *Population) runStage(s Stage, t *Table, indices IndexMap, mayShrink bool) (*Table, error) {
	out, err := s.Apply(t, indices)
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", s.Name(), err)
	}
	if out == nil {
		return nil, fmt.Errorf("stage %s returned no table: %w", s.Name(), ErrInvalidState)
	}
	if out.Len() > t.Len() || (!mayShrink && out.Len() != t.Len()) {
		return nil, fmt.Errorf("stage %s changed row count from %d to %d: %w", s.Name(), t.Len(), out.Len(), ErrInvalidState)
	}
	return out, nil
}

func (p *Population) recordStep() {
	eligible := p.indices.Summary()
	leafSizes := make(map[string]int, len(p.indices))
	for state, idx := range p.indices {
		if b, ok := idx.(*BuiltIndex); ok {
			leafSizes[state] = b.Tree.LeafSize()
		}
	}
	now := p.Datetime()
	p.log.Debugf("[step %05d] %s agents=%d indexed=%v", p.step, now.Format(time.RFC3339), p.table.Len(), eligible)
	p.trace.RecordStep(trace.StepRecord{
		Step:      p.step,
		Datetime:  now,
		Eligible:  eligible,
		LeafSizes: leafSizes,
	})
}

// === Accessors ===

// Snapshot returns a copy of the current table.
func (p *Population) Snapshot() *Table {
	return p.table.Clone()
}

// History returns a copy of every table since initialization, concatenated
// in step order. Only available in cumulative evolution mode.
func (p *Population) History() (*Table, error) {
	if p.evolMode != EvolutionCumulative {
		return nil, fmt.Errorf("history denied: evolution mode is %q: %w", p.evolMode, ErrInvalidState)
	}
	return p.history.Clone(), nil
}

// HistoryLen returns the number of rows in the history (0 outside cumulative mode).
func (p *Population) HistoryLen() int {
	if p.history == nil {
		return 0
	}
	return p.history.Len()
}

// TracingRadius returns the radius bounding every spatial query.
func (p *Population) TracingRadius() float64 { return p.tracingRadius }

// DeadState returns the disease-state label flagged dead.
func (p *Population) DeadState() string { return p.deadState }

// AliveStates returns the disease-state labels other than the dead one, sorted.
func (p *Population) AliveStates() []string { return append([]string(nil), p.aliveStates...) }

// Indices returns a copy of the spatial indices built during the last step,
// or nil before the first step. The trees are shared and read-only; the map
// and the agent labels are copied.
func (p *Population) Indices() IndexMap {
	if p.indices == nil {
		return nil
	}
	out := make(IndexMap, len(p.indices))
	for state, idx := range p.indices {
		if b, ok := idx.(*BuiltIndex); ok {
			idx = &BuiltIndex{Tree: b.Tree, Labels: slices.Clone(b.Labels)}
		}
		out[state] = idx
	}
	return out
}

// Datetime returns the simulated time of the current step. Every row of the
// table carries it.
func (p *Population) Datetime() time.Time {
	return p.cfg.InitialDate.Add(time.Duration(p.step) * p.cfg.IterationTime)
}

// Step returns the number of completed steps.
func (p *Population) Step() int { return p.step }

// Config returns the population configuration.
func (p *Population) Config() Config { return p.cfg }

// Catalogs returns the group catalogs.
func (p *Population) Catalogs() Catalogs { return p.catalogs }

// Policies returns the mobility-restriction policies.
func (p *Population) Policies() Policies { return p.policies }

// HealthSystem returns the health system, or nil if none was configured.
func (p *Population) HealthSystem() *HealthSystem { return p.health }

// ExecutionMode returns the execution mode.
func (p *Population) ExecutionMode() ExecutionMode { return p.execMode }

// EvolutionMode returns the evolution mode.
func (p *Population) EvolutionMode() EvolutionMode { return p.evolMode }

// RunID returns the identifier attached to this population's logs and trace.
func (p *Population) RunID() string { return p.runID }

// Trace returns the step trace. Empty unless tracing was enabled.
func (p *Population) Trace() *trace.PopulationTrace { return p.trace }
