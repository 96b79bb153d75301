package sim

import (
	"sort"
)

// DiseaseState holds the per-state parameters looked up by disease-state label.
// A nil SpreadRadius means the state does not spread (radius undefined).
type DiseaseState struct {
	SpreadRadius      *float64 `yaml:"spread_radius,omitempty"`
	SpreadProbability float64  `yaml:"spread_probability,omitempty"`
	CanGetInfected    bool     `yaml:"can_get_infected,omitempty"`
	IsInfected        bool     `yaml:"is_infected,omitempty"`
	IsDead            bool     `yaml:"is_dead,omitempty"`
}

// NaturalHistoryEntry holds parameters keyed by (vulnerability group, disease state).
// A nil AvoidanceRadius means agents in this entry do not avoid anyone.
type NaturalHistoryEntry struct {
	VulnerabilityGroup string   `yaml:"vulnerability_group"`
	DiseaseState       string   `yaml:"disease_state"`
	AvoidanceRadius    *float64 `yaml:"avoidance_radius,omitempty"`
	AvoidanceProb      float64  `yaml:"avoidance_probability,omitempty"`
	HospitalizationPct float64  `yaml:"hospitalization_probability,omitempty"`
}

// DiseaseStates maps disease-state label to its parameters.
type DiseaseStates map[string]DiseaseState

// NaturalHistory maps a natural-history key to its entry.
type NaturalHistory map[string]NaturalHistoryEntry

// SimpleGroup is a labeled group with an optional free-form description.
type SimpleGroup struct {
	Description string `yaml:"description,omitempty"`
}

// SimpleGroups maps group label to group. Used for age, vulnerability and
// mobility-restriction groups.
type SimpleGroups map[string]SimpleGroup

// SusceptibilityGroup scales the probability of getting infected.
type SusceptibilityGroup struct {
	ImmunizationLevel float64 `yaml:"immunization_level"`
}

// SusceptibilityGroups maps susceptibility label to its parameters.
type SusceptibilityGroups map[string]SusceptibilityGroup

// MobilityGroup describes how agents of the group move.
type MobilityGroup struct {
	MaxSpeed float64 `yaml:"max_speed"`
}

// MobilityGroups maps mobility label to its parameters.
type MobilityGroups map[string]MobilityGroup

// IsolationAdherenceGroup describes how strictly agents follow isolation orders.
type IsolationAdherenceGroup struct {
	Adherence float64 `yaml:"adherence"`
}

// IsolationAdherenceGroups maps adherence label to its parameters.
type IsolationAdherenceGroups map[string]IsolationAdherenceGroup

// Catalogs bundles every group catalog the population is built from.
// IsolationAdherence is optional and may be nil.
type Catalogs struct {
	Age                 SimpleGroups
	Vulnerability       SimpleGroups
	MobilityRestriction SimpleGroups
	Susceptibility      SusceptibilityGroups
	Mobility            MobilityGroups
	DiseaseStates       DiseaseStates
	NaturalHistory      NaturalHistory
	IsolationAdherence  IsolationAdherenceGroups
}

// Labels returns the disease-state labels in sorted order.
func (d DiseaseStates) Labels() []string {
	return sortedKeys(d)
}

// Keys returns the natural-history keys in sorted order.
func (n NaturalHistory) Keys() []string {
	return sortedKeys(n)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Float64Ptr returns a pointer to v. Convenience for building catalogs in code.
func Float64Ptr(v float64) *float64 {
	return &v
}
