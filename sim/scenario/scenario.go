// Package scenario loads population scenarios from YAML: configuration,
// group catalogs, policies and the initial-arrangement list.
package scenario

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/episim/episim/sim"
	"github.com/episim/episim/sim/trace"
)

// Scenario is the top-level scenario file.
// Loaded from YAML via LoadScenario(path).
type Scenario struct {
	Version            string                `yaml:"version"`
	Seed               int64                 `yaml:"seed"`
	Population         sim.Config            `yaml:"population"`
	ExecutionMode      string                `yaml:"execution_mode,omitempty"`
	EvolutionMode      string                `yaml:"evolution_mode,omitempty"`
	TraceLevel         string                `yaml:"trace_level,omitempty"`
	LeafSize           *sim.LeafSizePolicy   `yaml:"leaf_size,omitempty"`
	HealthSystem       *sim.HealthSystem     `yaml:"health_system,omitempty"`
	Policies           sim.Policies          `yaml:"policies,omitempty"`
	Catalogs           CatalogSpec           `yaml:"catalogs"`
	InitialArrangement []sim.ArrangementSpec `yaml:"initial_arrangement"`
}

// CatalogSpec mirrors sim.Catalogs with YAML keys.
type CatalogSpec struct {
	AgeGroups                sim.SimpleGroups             `yaml:"age_groups,omitempty"`
	VulnerabilityGroups      sim.SimpleGroups             `yaml:"vulnerability_groups,omitempty"`
	MRGroups                 sim.SimpleGroups             `yaml:"mr_groups,omitempty"`
	SusceptibilityGroups     sim.SusceptibilityGroups     `yaml:"susceptibility_groups,omitempty"`
	MobilityGroups           sim.MobilityGroups           `yaml:"mobility_groups,omitempty"`
	DiseaseStates            sim.DiseaseStates            `yaml:"disease_states"`
	NaturalHistory           sim.NaturalHistory           `yaml:"natural_history"`
	IsolationAdherenceGroups sim.IsolationAdherenceGroups `yaml:"isolation_adherence_groups,omitempty"`
}

// Catalogs converts the YAML catalogs to sim.Catalogs.
func (c CatalogSpec) Catalogs() sim.Catalogs {
	return sim.Catalogs{
		Age:                 c.AgeGroups,
		Vulnerability:       c.VulnerabilityGroups,
		MobilityRestriction: c.MRGroups,
		Susceptibility:      c.SusceptibilityGroups,
		Mobility:            c.MobilityGroups,
		DiseaseStates:       c.DiseaseStates,
		NaturalHistory:      c.NaturalHistory,
		IsolationAdherence:  c.IsolationAdherenceGroups,
	}
}

// LoadScenario reads and parses a YAML scenario file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field checking.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w: %w", err, sim.ErrConfiguration)
	}
	return &s, nil
}

// Validate checks that all fields in the scenario are valid. Checks that need
// the full population (dead-state uniqueness, tracing radius) run again in
// sim.NewPopulation; they are repeated here so `validate` reports them early.
func (s *Scenario) Validate() error {
	if err := s.Population.Validate(); err != nil {
		return fmt.Errorf("population: %w", err)
	}
	if s.ExecutionMode != "" && !sim.IsValidExecutionMode(s.ExecutionMode) {
		return fmt.Errorf("unknown execution_mode %q; valid: iterative, vectorized: %w", s.ExecutionMode, sim.ErrConfiguration)
	}
	if s.EvolutionMode != "" && !sim.IsValidEvolutionMode(s.EvolutionMode) {
		return fmt.Errorf("unknown evolution_mode %q; valid: steps, cumulative: %w", s.EvolutionMode, sim.ErrConfiguration)
	}
	if !trace.IsValidTraceLevel(s.TraceLevel) {
		return fmt.Errorf("unknown trace_level %q; valid: none, steps: %w", s.TraceLevel, sim.ErrConfiguration)
	}
	if s.LeafSize != nil {
		if err := s.LeafSize.Validate(); err != nil {
			return fmt.Errorf("leaf_size: %w", err)
		}
	}
	if err := s.validateCatalogs(); err != nil {
		return err
	}
	for i, a := range s.InitialArrangement {
		if !sim.IsValidArrangementRoutine(a.Routine) {
			return fmt.Errorf("initial_arrangement[%d]: unknown routine %q; valid: %v: %w",
				i, a.Routine, sim.ArrangementRoutines(), sim.ErrConfiguration)
		}
	}
	return nil
}

func (s *Scenario) validateCatalogs() error {
	c := s.Catalogs
	if _, _, err := sim.ResolveAliveStates(c.DiseaseStates); err != nil {
		return fmt.Errorf("catalogs.disease_states: %w", err)
	}
	if _, err := sim.ChooseTracingRadius(c.DiseaseStates, c.NaturalHistory); err != nil {
		return fmt.Errorf("catalogs: %w", err)
	}
	for _, key := range c.NaturalHistory.Keys() {
		entry := c.NaturalHistory[key]
		if _, ok := c.DiseaseStates[entry.DiseaseState]; !ok {
			return fmt.Errorf("catalogs.natural_history[%s]: unknown disease_state %q: %w", key, entry.DiseaseState, sim.ErrConfiguration)
		}
		if len(c.VulnerabilityGroups) > 0 {
			if _, ok := c.VulnerabilityGroups[entry.VulnerabilityGroup]; !ok {
				return fmt.Errorf("catalogs.natural_history[%s]: unknown vulnerability_group %q: %w",
					key, entry.VulnerabilityGroup, sim.ErrConfiguration)
			}
		}
	}
	for label, g := range c.SusceptibilityGroups {
		if g.ImmunizationLevel < 0 || g.ImmunizationLevel > 1 {
			return fmt.Errorf("catalogs.susceptibility_groups[%s]: immunization_level must be in [0, 1], got %v: %w",
				label, g.ImmunizationLevel, sim.ErrConfiguration)
		}
	}
	for label, g := range c.MobilityGroups {
		if g.MaxSpeed < 0 {
			return fmt.Errorf("catalogs.mobility_groups[%s]: max_speed must be non-negative, got %v: %w",
				label, g.MaxSpeed, sim.ErrConfiguration)
		}
	}
	return nil
}

// Options converts the scenario's settings into population options. Extra
// options are appended last so callers can override the file.
func (s *Scenario) Options(extra ...sim.Option) []sim.Option {
	opts := []sim.Option{
		sim.WithSeed(s.Seed),
		sim.WithPolicies(s.Policies),
	}
	if s.ExecutionMode != "" {
		opts = append(opts, sim.WithExecutionMode(sim.ExecutionMode(s.ExecutionMode)))
	}
	if s.EvolutionMode != "" {
		opts = append(opts, sim.WithEvolutionMode(sim.EvolutionMode(s.EvolutionMode)))
	}
	if s.TraceLevel != "" {
		opts = append(opts, sim.WithTraceLevel(trace.TraceLevel(s.TraceLevel)))
	}
	if s.LeafSize != nil {
		opts = append(opts, sim.WithLeafSizePolicy(*s.LeafSize))
	}
	if s.HealthSystem != nil {
		opts = append(opts, sim.WithHealthSystem(*s.HealthSystem))
	}
	return append(opts, extra...)
}

// Build validates the scenario and constructs its population.
func (s *Scenario) Build(extra ...sim.Option) (*sim.Population, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return sim.NewPopulation(s.Population, s.Catalogs.Catalogs(), s.InitialArrangement, s.Options(extra...)...)
}
