// Package testutil provides shared test infrastructure for the episim engine.
// It has no dependency on sim/ so that in-package tests of sim/ can use it.
package testutil

import (
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// RepoRoot returns the repository root, resolved relative to this source file:
// sim/internal/testutil/ → ../../..
func RepoRoot(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	return filepath.Join(filepath.Dir(thisFile), "..", "..", "..")
}

// ScenarioPath returns the path of a scenario shipped under scenarios/.
func ScenarioPath(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(RepoRoot(t), "scenarios", name)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Scenario %s not found: %v", name, err)
	}
	return path
}

// WriteScenario writes YAML to a temporary file and returns its path.
func WriteScenario(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("Failed to write scenario: %v", err)
	}
	return path
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}
