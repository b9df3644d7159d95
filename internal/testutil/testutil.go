// Package testutil provides shared assertion helpers and model fixtures
// for test files across the module.
package testutil

import (
	"testing"

	"github.com/banshee-data/tomo.report/internal/tomo"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// UniformModel builds a constant-velocity model on g, failing the test if
// the grid dimensions are invalid.
func UniformModel(t *testing.T, g tomo.Grid, v float64) *tomo.Model {
	t.Helper()
	m, err := tomo.NewUniformModel(g, v)
	AssertNoError(t, err)
	return m
}
