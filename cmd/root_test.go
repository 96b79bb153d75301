package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/episim/episim/sim"
	"github.com/episim/episim/sim/scenario"
)

const basicScenario = "../scenarios/basic.yaml"

// parseSummary strips the header and decodes the JSON summary.
func parseSummary(t *testing.T, out string) RunSummary {
	t.Helper()
	header := "=== Population Summary ===\n"
	require.True(t, strings.HasPrefix(out, header), "summary header must come first, got %q", out)
	var s RunSummary
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(out, header)), &s))
	return s
}

func TestRunScenario_SummaryPrinted(t *testing.T) {
	// GIVEN the shipped SIRD scenario
	s, err := scenario.LoadScenario(basicScenario)
	require.NoError(t, err)

	// WHEN it runs for three steps
	var buf bytes.Buffer
	require.NoError(t, runScenario(&buf, s, 3))

	// THEN the summary reflects the run
	summary := parseSummary(t, buf.String())
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 1000, summary.Agents)
	assert.Equal(t, 3, summary.Step)
	assert.True(t, summary.Datetime.Equal(time.Date(2020, 3, 1, 3, 0, 0, 0, time.UTC)))
	assert.Equal(t, 3.0, summary.TracingRadius)
	assert.Equal(t, "dead", summary.DeadState)
	assert.Equal(t, []string{"infected", "recovered", "susceptible"}, summary.AliveStates)
	assert.Len(t, summary.Indexed, 3)
	assert.Equal(t, 0, summary.HistoryRows, "steps mode keeps no history")
	require.NotNil(t, summary.Trace)
	assert.Equal(t, 3, summary.Trace.TotalSteps)
	assert.Equal(t, summary.RunID, summary.Trace.RunID)
}

func TestRunScenario_CumulativeReportsHistoryRows(t *testing.T) {
	s, err := scenario.LoadScenario(basicScenario)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, runScenario(&buf, s, 2, sim.WithEvolutionMode(sim.EvolutionCumulative)))

	assert.Equal(t, 3000, parseSummary(t, buf.String()).HistoryRows)
}

func TestRunScenario_InvalidIterations(t *testing.T) {
	s, err := scenario.LoadScenario(basicScenario)
	require.NoError(t, err)

	var buf bytes.Buffer
	err = runScenario(&buf, s, 0)

	assert.ErrorIs(t, err, sim.ErrConfiguration)
	assert.Empty(t, buf.String(), "no summary on failure")
}

func TestValidateCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"validate", "--scenario", basicScenario})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "scenario OK: 1000 agents")
	assert.Contains(t, out.String(), "tracing radius 3")
}

func TestSetupLogging_RejectsUnknownLevel(t *testing.T) {
	old := logLevel
	t.Cleanup(func() { logLevel = old })

	logLevel = "chatty"
	assert.Error(t, setupLogging())

	logLevel = "debug"
	assert.NoError(t, setupLogging())
}

// === Flag overrides ===

// flagTestCommand registers the override flags on a fresh command so tests
// can mark them changed without touching the shared commands.
func flagTestCommand(t *testing.T) *cobra.Command {
	t.Helper()
	oldSeed, oldMode, oldTrace, oldFraction, oldMin := seed, evolutionMode, traceLevel, leafFraction, leafMin
	t.Cleanup(func() {
		seed, evolutionMode, traceLevel, leafFraction, leafMin = oldSeed, oldMode, oldTrace, oldFraction, oldMin
	})
	c := &cobra.Command{Use: "test"}
	c.Flags().Int64Var(&seed, "seed", 42, "")
	c.Flags().StringVar(&evolutionMode, "evolution-mode", string(sim.EvolutionSteps), "")
	c.Flags().StringVar(&traceLevel, "trace-level", "none", "")
	c.Flags().Float64Var(&leafFraction, "leaf-fraction", 0.01, "")
	c.Flags().IntVar(&leafMin, "leaf-min", 10, "")
	return c
}

func TestFlagOptions_OnlyChangedFlagsOverride(t *testing.T) {
	c := flagTestCommand(t)
	assert.Empty(t, flagOptions(c), "defaults must not override the scenario")

	require.NoError(t, c.Flags().Set("seed", "100"))
	require.NoError(t, c.Flags().Set("leaf-min", "25"))
	assert.Len(t, flagOptions(c), 2)
}

func TestFlagOptions_SeedOverridesScenario(t *testing.T) {
	// GIVEN the scenario seed 42 and a --seed flag of 100
	s, err := scenario.LoadScenario(basicScenario)
	require.NoError(t, err)
	c := flagTestCommand(t)
	require.NoError(t, c.Flags().Set("seed", "100"))

	// WHEN the population is built with and without the override
	fromFile, err := s.Build()
	require.NoError(t, err)
	overridden, err := s.Build(flagOptions(c)...)
	require.NoError(t, err)

	// THEN the initial arrangements differ
	assert.NotEqual(t, fromFile.Snapshot().X, overridden.Snapshot().X)
}

func TestFlagOptions_LeafPolicyOverride(t *testing.T) {
	s, err := scenario.LoadScenario(basicScenario)
	require.NoError(t, err)
	c := flagTestCommand(t)
	require.NoError(t, c.Flags().Set("leaf-min", "40"))
	require.NoError(t, c.Flags().Set("trace-level", "steps"))

	pop, err := s.Build(flagOptions(c)...)
	require.NoError(t, err)
	require.NoError(t, pop.Evolve(1))

	for state, size := range pop.Trace().Steps[0].LeafSizes {
		assert.Equal(t, 40, size, "state %s", state)
	}
}
