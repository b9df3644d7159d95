package modelio

import (
	"compress/gzip"
	"encoding/gob"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/tomo.report/internal/tomo"
)

func testModel(t *testing.T) *tomo.Model {
	t.Helper()
	g := tomo.Grid{Dx: 1, Dy: 1, Dz: 2, Nx: 3, Ny: 2, Nz: 2}
	v := make([]float64, g.NumNodes())
	for i := range v {
		v[i] = 4 + 0.1*float64(i)
	}
	m, err := tomo.NewModel(g, v)
	require.NoError(t, err)
	return m
}

func TestSnapshotName(t *testing.T) {
	assert.Equal(t, "01.pwave_model", SnapshotName(1, tomo.PhaseP))
	assert.Equal(t, "12.swave_model", SnapshotName(12, tomo.PhaseS))
}

func TestSaveLoadModel_RoundTrip(t *testing.T) {
	m := testModel(t)
	path := filepath.Join(t.TempDir(), "initial.pwave_model")

	require.NoError(t, SaveModel(path, m))
	loaded, err := LoadModel(path)
	require.NoError(t, err)

	assert.Equal(t, m.Grid, loaded.Grid)
	assert.Equal(t, m.V, loaded.V)
}

func TestWriter_NamesByIterationAndPhase(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "output")
	w := NewWriter(dir)
	m := testModel(t)

	require.NoError(t, w.WriteModel(m, tomo.PhaseP, 0))
	require.NoError(t, w.WriteModel(m, tomo.PhaseS, 0))
	require.NoError(t, w.WriteModel(m, tomo.PhaseP, 1))

	for _, name := range []string{"01.pwave_model", "01.swave_model", "02.pwave_model"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, "expected snapshot %s", name)
	}

	loaded, err := LoadModel(filepath.Join(dir, "02.pwave_model"))
	require.NoError(t, err)
	assert.Equal(t, m.V, loaded.V)
}

func TestLoadModel_MissingFile(t *testing.T) {
	_, err := LoadModel(filepath.Join(t.TempDir(), "absent.pwave_model"))
	assert.Error(t, err)
}

func TestLoadModel_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pwave_model")
	require.NoError(t, os.WriteFile(path, []byte("not gzip"), 0o644))
	_, err := LoadModel(path)
	assert.Error(t, err)
}

func TestLoadModel_RejectsMismatchedSnapshot(t *testing.T) {
	// A snapshot whose value count disagrees with its grid fails model
	// construction on load.
	path := filepath.Join(t.TempDir(), "bad.pwave_model")
	file, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(file)
	require.NoError(t, gob.NewEncoder(gz).Encode(modelSnapshot{
		Grid: tomo.Grid{Dx: 1, Dy: 1, Dz: 1, Nx: 2, Ny: 2, Nz: 2},
		V:    make([]float64, 3),
	}))
	require.NoError(t, gz.Close())
	require.NoError(t, file.Close())

	_, err = LoadModel(path)
	assert.ErrorContains(t, err, "3 values for 8 nodes")
}
