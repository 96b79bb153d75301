package sim

// HealthSystem describes hospital capacity. Bookkeeping against it belongs
// to the transition stage; the population only carries it.
type HealthSystem struct {
	HospitalCapacity int     `yaml:"hospital_capacity"`
	ICUCapacity      int     `yaml:"icu_capacity,omitempty"`
	DiagnosisRate    float64 `yaml:"diagnosis_rate,omitempty"`
}

// MRTracingPolicy restricts mobility of agents traced as contacts of a
// diagnosed agent.
type MRTracingPolicy struct {
	Variable            string   `yaml:"variable"` // column the policy keys on, e.g. mr_group
	TargetLabels        []string `yaml:"target_labels"`
	QuarantineDays      int      `yaml:"quarantine_days"`
	ContactTracingRatio float64  `yaml:"contact_tracing_ratio"`
}

// GlobalCyclicMR alternates unrestricted and restricted periods for everyone.
type GlobalCyclicMR struct {
	Enabled          bool `yaml:"enabled"`
	UnrestrictedDays int  `yaml:"unrestricted_days"`
	RestrictedDays   int  `yaml:"restricted_days"`
}

// CyclicMRPolicy alternates restricted periods for one mobility-restriction group.
type CyclicMRPolicy struct {
	MRGroup          string  `yaml:"mr_group"`
	UnrestrictedDays int     `yaml:"unrestricted_days"`
	RestrictedDays   int     `yaml:"restricted_days"`
	Delay            int     `yaml:"delay,omitempty"`
	Adherence        float64 `yaml:"adherence,omitempty"`
}

// Policies bundles the optional mobility-restriction policies. Nil fields
// mean the policy is not in force.
type Policies struct {
	MRTracing []MRTracingPolicy `yaml:"mr_tracing,omitempty"`
	Global    *GlobalCyclicMR   `yaml:"global_cyclic,omitempty"`
	Cyclic    []CyclicMRPolicy  `yaml:"cyclic,omitempty"`
}
