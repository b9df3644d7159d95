package testutil

import (
	"errors"
	"testing"

	"github.com/banshee-data/tomo.report/internal/tomo"
)

// The failure paths of these helpers call t.Fatalf, which cannot be
// exercised without a mock testing.T. They are validated through the
// test files that use them; only the passing paths are checked here.

func TestAssertNoError_NilErr(t *testing.T) {
	t.Parallel()

	fakeT := &testing.T{}
	AssertNoError(fakeT, nil)
	if fakeT.Failed() {
		t.Error("expected no failure for nil error")
	}
}

func TestAssertError_WithErr(t *testing.T) {
	t.Parallel()

	fakeT := &testing.T{}
	AssertError(fakeT, errors.New("something wrong"))
	if fakeT.Failed() {
		t.Error("expected no failure when error is present")
	}
}

func TestUniformModel(t *testing.T) {
	t.Parallel()

	g := tomo.Grid{Dx: 1, Dy: 1, Dz: 1, Nx: 2, Ny: 3, Nz: 4}
	m := UniformModel(t, g, 5.0)
	if len(m.V) != 24 {
		t.Fatalf("node count = %d, want 24", len(m.V))
	}
	for i, v := range m.V {
		if v != 5.0 {
			t.Fatalf("node %d velocity = %g, want 5.0", i, v)
		}
	}
}
