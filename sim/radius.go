package sim

import (
	"fmt"
	"math"
	"strings"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

// ChooseTracingRadius returns the largest distance any contagion or avoidance
// query can care about: the maximum over every disease state's spread radius
// and every natural-history entry's avoidance radius. Undefined radii (nil or
// NaN) count as -Inf so they never win the maximum; +Inf is clamped to the
// largest finite float.
func ChooseTracingRadius(states DiseaseStates, history NaturalHistory) (float64, error) {
	if len(states) == 0 {
		return 0, fmt.Errorf("choosing tracing radius: disease states catalog is empty: %w", ErrConfiguration)
	}
	if len(history) == 0 {
		return 0, fmt.Errorf("choosing tracing radius: natural history catalog is empty: %w", ErrConfiguration)
	}

	spread := make([]float64, 0, len(states))
	for _, label := range states.Labels() {
		r, err := radiusOrNegInf(states[label].SpreadRadius, "disease state "+label+": spread_radius")
		if err != nil {
			return 0, err
		}
		spread = append(spread, r)
	}

	avoidance := make([]float64, 0, len(history))
	for _, key := range history.Keys() {
		r, err := radiusOrNegInf(history[key].AvoidanceRadius, "natural history "+key+": avoidance_radius")
		if err != nil {
			return 0, err
		}
		avoidance = append(avoidance, r)
	}

	maxSpread := floats.Max(spread)
	maxAvoidance := floats.Max(avoidance)
	if math.IsInf(maxSpread, -1) {
		logrus.Warnf("no disease state defines a spread radius; tracing radius comes from avoidance radii only")
	}
	if math.IsInf(maxAvoidance, -1) {
		logrus.Warnf("no natural history entry defines an avoidance radius; tracing radius comes from spread radii only")
	}

	radius := math.Max(maxSpread, maxAvoidance)
	if math.IsInf(radius, -1) {
		return 0, fmt.Errorf("choosing tracing radius: no spread or avoidance radius defined: %w", ErrConfiguration)
	}
	return radius, nil
}

func radiusOrNegInf(r *float64, field string) (float64, error) {
	switch {
	case r == nil || math.IsNaN(*r):
		return math.Inf(-1), nil
	case *r < 0:
		return 0, fmt.Errorf("%s must be non-negative, got %v: %w", field, *r, ErrConfiguration)
	case math.IsInf(*r, 1):
		return math.MaxFloat64, nil
	}
	return *r, nil
}

// ResolveAliveStates finds the single disease state flagged dead and returns it
// together with every other label, sorted. Zero or several dead states are
// rejected.
func ResolveAliveStates(states DiseaseStates) (dead string, alive []string, err error) {
	var deadLabels []string
	for _, label := range states.Labels() {
		if states[label].IsDead {
			deadLabels = append(deadLabels, label)
		}
	}
	switch len(deadLabels) {
	case 1:
	case 0:
		return "", nil, fmt.Errorf("resolving alive disease states: no state has is_dead set: %w", ErrConfiguration)
	default:
		return "", nil, fmt.Errorf("resolving alive disease states: exactly one dead state required, got %d (%s): %w",
			len(deadLabels), strings.Join(deadLabels, ", "), ErrConfiguration)
	}

	dead = deadLabels[0]
	alive = make([]string, 0, len(states)-1)
	for _, label := range states.Labels() {
		if label != dead {
			alive = append(alive, label)
		}
	}
	return dead, alive, nil
}
