package trace

// TraceLevel controls the verbosity of step tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelSteps captures one record per evolved step.
	TraceLevelSteps TraceLevel = "steps"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:  true,
	TraceLevelSteps: true,
	"":              true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
	RunID string // copied into every summary, identifies the population run
}

// Enabled reports whether records should be collected.
func (c TraceConfig) Enabled() bool {
	return c.Level == TraceLevelSteps
}

// PopulationTrace collects step records during a population run.
type PopulationTrace struct {
	Config TraceConfig
	Steps  []StepRecord
}

// NewPopulationTrace creates a PopulationTrace ready for recording.
func NewPopulationTrace(config TraceConfig) *PopulationTrace {
	return &PopulationTrace{
		Config: config,
		Steps:  make([]StepRecord, 0),
	}
}

// RecordStep appends a step record. No-op unless the level is steps.
func (pt *PopulationTrace) RecordStep(record StepRecord) {
	if !pt.Config.Enabled() {
		return
	}
	pt.Steps = append(pt.Steps, record)
}
