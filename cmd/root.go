package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/episim/episim/sim"
	"github.com/episim/episim/sim/scenario"
	"github.com/episim/episim/sim/trace"
)

var (
	// CLI flags
	scenarioPath  string  // Path to the scenario YAML file
	iterations    int     // Number of steps to evolve
	seed          int64   // Seed for initial arrangement; overrides the scenario when set
	logLevel      string  // Log verbosity level
	evolutionMode string  // Evolution mode override (steps, cumulative)
	traceLevel    string  // Trace level override (none, steps)
	leafFraction  float64 // k-d tree leaf size as a fraction of indexed points
	leafMin       int     // Minimum k-d tree leaf size
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "episim",
	Short: "Agent-based epidemic population evolution engine",
}

// RunSummary is the JSON document printed after a run.
type RunSummary struct {
	RunID         string              `json:"run_id"`
	Agents        int                 `json:"agents"`
	Step          int                 `json:"step"`
	Datetime      time.Time           `json:"datetime"`
	TracingRadius float64             `json:"tracing_radius"`
	DeadState     string              `json:"dead_state"`
	AliveStates   []string            `json:"alive_states"`
	Indexed       map[string]int      `json:"indexed"`
	EmptyStates   []string            `json:"empty_states"`
	HistoryRows   int                 `json:"history_rows"`
	Trace         *trace.TraceSummary `json:"trace,omitempty"`
	WallTime      string              `json:"wall_time"`
}

// setupLogging parses the --log flag and applies it to logrus.
func setupLogging() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}
	logrus.SetLevel(level)
	return nil
}

// flagOptions turns explicitly set CLI flags into population options that
// override the scenario file.
func flagOptions(cmd *cobra.Command) []sim.Option {
	var opts []sim.Option
	if cmd.Flags().Changed("seed") {
		opts = append(opts, sim.WithSeed(seed))
	}
	if cmd.Flags().Changed("evolution-mode") {
		opts = append(opts, sim.WithEvolutionMode(sim.EvolutionMode(evolutionMode)))
	}
	if cmd.Flags().Changed("trace-level") {
		opts = append(opts, sim.WithTraceLevel(trace.TraceLevel(traceLevel)))
	}
	if cmd.Flags().Changed("leaf-fraction") || cmd.Flags().Changed("leaf-min") {
		opts = append(opts, sim.WithLeafSizePolicy(sim.LeafSizePolicy{Fraction: leafFraction, Min: leafMin}))
	}
	return opts
}

// runScenario builds the scenario's population, evolves it and writes the summary to w.
func runScenario(w io.Writer, s *scenario.Scenario, steps int, opts ...sim.Option) error {
	start := time.Now()
	pop, err := s.Build(opts...)
	if err != nil {
		return err
	}
	logrus.Infof("Starting evolution: %d iterations of %v from %s",
		steps, s.Population.IterationTime, s.Population.InitialDate.Format(time.RFC3339))
	if err := pop.Evolve(steps); err != nil {
		return err
	}
	return writeSummary(w, pop, time.Since(start))
}

func writeSummary(w io.Writer, pop *sim.Population, wall time.Duration) error {
	snap := pop.Snapshot()
	indexed := pop.Indices().Summary()
	var empty []string
	for state, n := range indexed {
		if n == 0 {
			empty = append(empty, state)
		}
	}
	sort.Strings(empty)

	summary := RunSummary{
		RunID:         pop.RunID(),
		Agents:        snap.Len(),
		Step:          pop.Step(),
		Datetime:      pop.Datetime(),
		TracingRadius: pop.TracingRadius(),
		DeadState:     pop.DeadState(),
		AliveStates:   pop.AliveStates(),
		Indexed:       indexed,
		EmptyStates:   empty,
		HistoryRows:   pop.HistoryLen(),
		WallTime:      wall.String(),
	}
	if len(pop.Trace().Steps) > 0 {
		summary.Trace = trace.Summarize(pop.Trace())
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	fmt.Fprintln(w, "=== Population Summary ===")
	fmt.Fprintln(w, string(data))
	return nil
}

// runCmd evolves a scenario and prints its summary
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Evolve a population scenario",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := setupLogging(); err != nil {
			return err
		}
		s, err := scenario.LoadScenario(scenarioPath)
		if err != nil {
			return err
		}
		if err := runScenario(cmd.OutOrStdout(), s, iterations, flagOptions(cmd)...); err != nil {
			return err
		}
		logrus.Info("Evolution complete.")
		return nil
	},
}

// validateCmd checks a scenario and builds its population without evolving it
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a population scenario",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := setupLogging(); err != nil {
			return err
		}
		s, err := scenario.LoadScenario(scenarioPath)
		if err != nil {
			return err
		}
		pop, err := s.Build(flagOptions(cmd)...)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "scenario OK: %d agents, alive states %v, tracing radius %g\n",
			pop.Snapshot().Len(), pop.AliveStates(), pop.TracingRadius())
		return nil
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	for _, c := range []*cobra.Command{runCmd, validateCmd} {
		c.Flags().StringVar(&scenarioPath, "scenario", "", "Path to scenario YAML file")
		_ = c.MarkFlagRequired("scenario")
		c.Flags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
		c.Flags().Int64Var(&seed, "seed", 42, "Seed for initial arrangement (overrides scenario)")
		c.Flags().StringVar(&evolutionMode, "evolution-mode", string(sim.EvolutionSteps), "Evolution mode (steps, cumulative)")
		c.Flags().StringVar(&traceLevel, "trace-level", string(trace.TraceLevelNone), "Trace level (none, steps)")
		c.Flags().Float64Var(&leafFraction, "leaf-fraction", sim.DefaultLeafSizePolicy().Fraction, "k-d tree leaf size as a fraction of indexed points")
		c.Flags().IntVar(&leafMin, "leaf-min", sim.DefaultLeafSizePolicy().Min, "Minimum k-d tree leaf size")
	}
	runCmd.Flags().IntVar(&iterations, "iterations", 1, "Number of steps to evolve")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}
