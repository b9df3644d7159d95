package forward

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/banshee-data/tomo.report/internal/tomo"
)

func TestFieldPath(t *testing.T) {
	got := FieldPath("tt", "NZ.WEL", tomo.PhaseS)
	want := filepath.Join("tt", "NZ.WEL.S")
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestWriteLoadField_RoundTrip(t *testing.T) {
	g := testGrid(4, 3, 2, 1)
	station := tomo.Point{X: 0, Y: 1, Z: 0}
	f, err := NewGridField("NZ.WEL", tomo.PhaseP, station, g, linearTimes(g))
	if err != nil {
		t.Fatalf("NewGridField: %v", err)
	}

	dir := filepath.Join(t.TempDir(), "traveltimes")
	if err := WriteField(dir, f); err != nil {
		t.Fatalf("WriteField: %v", err)
	}

	loaded, err := LoadField(FieldPath(dir, "NZ.WEL", tomo.PhaseP))
	if err != nil {
		t.Fatalf("LoadField: %v", err)
	}
	if loaded.Station() != "NZ.WEL" {
		t.Errorf("expected station NZ.WEL, got %q", loaded.Station())
	}
	if loaded.Grid() != g {
		t.Errorf("expected grid %+v, got %+v", g, loaded.Grid())
	}
	if loaded.Step() != f.Step() {
		t.Errorf("expected step %g, got %g", f.Step(), loaded.Step())
	}
	probe := tomo.Point{X: 2.5, Y: 1, Z: 1}
	want, err := f.Value(probe)
	if err != nil {
		t.Fatalf("Value original: %v", err)
	}
	got, err := loaded.Value(probe)
	if err != nil {
		t.Fatalf("Value loaded: %v", err)
	}
	if got != want {
		t.Errorf("expected %g after round trip, got %g", want, got)
	}
}

func TestLoadField_MissingFile(t *testing.T) {
	_, err := LoadField(filepath.Join(t.TempDir(), "absent.P"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected fs.ErrNotExist, got %v", err)
	}
}

func TestLoadField_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.P")
	if err := os.WriteFile(path, []byte("not a field"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadField(path); err == nil {
		t.Error("expected error for corrupt file")
	}
}

func TestDiskComputer(t *testing.T) {
	g := testGrid(3, 3, 3, 1)
	f, err := NewGridField("S1", tomo.PhaseP, tomo.Point{}, g, linearTimes(g))
	if err != nil {
		t.Fatalf("NewGridField: %v", err)
	}
	dir := t.TempDir()
	if err := WriteField(dir, f); err != nil {
		t.Fatalf("WriteField: %v", err)
	}

	c := NewDiskComputer(dir)
	got, err := c.Compute(nil, "S1", tomo.PhaseP)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if got.Step() != f.Step() {
		t.Errorf("expected step %g, got %g", f.Step(), got.Step())
	}

	if _, err := c.Compute(nil, "S1", tomo.PhaseS); !errors.Is(err, tomo.ErrFieldUnavailable) {
		t.Errorf("expected ErrFieldUnavailable for missing phase, got %v", err)
	}
	if _, err := c.Compute(nil, "S9", tomo.PhaseP); !errors.Is(err, tomo.ErrFieldUnavailable) {
		t.Errorf("expected ErrFieldUnavailable for unknown station, got %v", err)
	}
}
