package sim

// Stage is one update of the step pipeline. It receives the step's working
// table and the index map built for this step (nil for stages that run before
// indexing) and returns the table the next stage sees. A stage may return the
// table it was given after mutating it in place.
type Stage interface {
	Name() string
	Apply(t *Table, indices IndexMap) (*Table, error)
}

// NoopStage passes the table through unchanged.
type NoopStage struct {
	Label string
}

func (n NoopStage) Name() string { return n.Label }

func (NoopStage) Apply(t *Table, _ IndexMap) (*Table, error) {
	return t, nil
}

// StageFunc adapts a function to the Stage interface.
type StageFunc struct {
	Label string
	Fn    func(t *Table, indices IndexMap) (*Table, error)
}

func (s StageFunc) Name() string { return s.Label }

func (s StageFunc) Apply(t *Table, indices IndexMap) (*Table, error) {
	return s.Fn(t, indices)
}

// Stage slot names, in pipeline order.
const (
	StageRemoveDead      = "remove-dead"
	StageTransition      = "transition"
	StageQuarantine      = "quarantine"
	StageNeighborTracing = "neighbor-tracing"
	StageAlertness       = "alertness"
	StageContagion       = "contagion"
	StageMovement        = "movement"
)

// Stages holds one implementation per pipeline slot. The step controller runs
// RemoveDead before the clock advances, Transition and Quarantine before
// spatial indexing, and the rest after it.
type Stages struct {
	RemoveDead      Stage
	Transition      Stage
	Quarantine      Stage
	NeighborTracing Stage
	Alertness       Stage
	Contagion       Stage
	Movement        Stage
}

// DefaultStages returns a pipeline where every slot is a NoopStage.
func DefaultStages() Stages {
	return Stages{
		RemoveDead:      NoopStage{Label: StageRemoveDead},
		Transition:      NoopStage{Label: StageTransition},
		Quarantine:      NoopStage{Label: StageQuarantine},
		NeighborTracing: NoopStage{Label: StageNeighborTracing},
		Alertness:       NoopStage{Label: StageAlertness},
		Contagion:       NoopStage{Label: StageContagion},
		Movement:        NoopStage{Label: StageMovement},
	}
}

// beforeIndexing returns the stages run after the clock advances and before
// indices are rebuilt.
func (s Stages) beforeIndexing() []Stage {
	return []Stage{s.Transition, s.Quarantine}
}

// afterIndexing returns the stages that consume the step's index map.
func (s Stages) afterIndexing() []Stage {
	return []Stage{s.NeighborTracing, s.Alertness, s.Contagion, s.Movement}
}

// withDefaults fills nil slots with NoopStage.
func (s Stages) withDefaults() Stages {
	d := DefaultStages()
	if s.RemoveDead == nil {
		s.RemoveDead = d.RemoveDead
	}
	if s.Transition == nil {
		s.Transition = d.Transition
	}
	if s.Quarantine == nil {
		s.Quarantine = d.Quarantine
	}
	if s.NeighborTracing == nil {
		s.NeighborTracing = d.NeighborTracing
	}
	if s.Alertness == nil {
		s.Alertness = d.Alertness
	}
	if s.Contagion == nil {
		s.Contagion = d.Contagion
	}
	if s.Movement == nil {
		s.Movement = d.Movement
	}
	return s
}

// SetStage replaces the stage in the named slot. Unknown slot names panic.
func (s *Stages) SetStage(slot string, stage Stage) {
	switch slot {
	case StageRemoveDead:
		s.RemoveDead = stage
	case StageTransition:
		s.Transition = stage
	case StageQuarantine:
		s.Quarantine = stage
	case StageNeighborTracing:
		s.NeighborTracing = stage
	case StageAlertness:
		s.Alertness = stage
	case StageContagion:
		s.Contagion = stage
	case StageMovement:
		s.Movement = stage
	default:
		panic("unknown stage slot " + slot)
	}
}
