package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testInitialDate = time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)

// testCatalogs returns an S/I/R/D catalog set with D flagged dead.
// I spreads at radius 2; the high-vulnerability I entry avoids at radius 3.
func testCatalogs() Catalogs {
	return Catalogs{
		Age:           SimpleGroups{"adult": {}},
		Vulnerability: SimpleGroups{"low": {}, "high": {}},
		Mobility:      MobilityGroups{"slow": {MaxSpeed: 0.5}, "fast": {MaxSpeed: 2}},
		DiseaseStates: DiseaseStates{
			"S": {CanGetInfected: true},
			"I": {SpreadRadius: Float64Ptr(2), IsInfected: true},
			"R": {},
			"D": {IsDead: true},
		},
		NaturalHistory: NaturalHistory{
			"low-I":  {VulnerabilityGroup: "low", DiseaseState: "I", AvoidanceRadius: Float64Ptr(1)},
			"high-I": {VulnerabilityGroup: "high", DiseaseState: "I", AvoidanceRadius: Float64Ptr(3)},
			"low-S":  {VulnerabilityGroup: "low", DiseaseState: "S"},
		},
	}
}

func testConfig(n int) Config {
	return Config{PopulationNumber: n, InitialDate: testInitialDate, IterationTime: time.Hour}
}

type testRow struct {
	state        string
	x, y         float64
	hospitalized bool
	dead         bool
}

// rowsRoutine returns an arrangement routine that writes the given per-row
// state, position and flags.
func rowsRoutine(rows []testRow) ArrangementFunc {
	return func(t *Table, _ map[string]any, _ ArrangementContext) (*Table, error) {
		for i, r := range rows {
			t.DiseaseState[i] = r.state
			t.X[i], t.Y[i] = r.x, r.y
			t.IsHospitalized[i] = r.hospitalized
			t.IsDead[i] = r.dead
		}
		return t, nil
	}
}

// newTestPopulation builds a population whose rows are set by rowsRoutine.
func newTestPopulation(t *testing.T, rows []testRow, opts ...Option) *Population {
	t.Helper()
	opts = append([]Option{WithArrangementRoutine("rows", rowsRoutine(rows))}, opts...)
	pop, err := NewPopulation(testConfig(len(rows)), testCatalogs(), []ArrangementSpec{{Routine: "rows"}}, opts...)
	require.NoError(t, err)
	return pop
}

// uniformRows places n agents on a grid, every agent in state.
func uniformRows(n int, state string) []testRow {
	rows := make([]testRow, n)
	for i := range rows {
		rows[i] = testRow{state: state, x: float64(i % 100), y: float64(i / 100)}
	}
	return rows
}
