// Package modelio persists velocity models as gob+gzip snapshot files. The
// iteration controller writes one snapshot per phase per iteration through
// Writer; tools and the next run read them back with LoadModel.
package modelio

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/tomo.report/internal/tomo"
)

// SnapshotName returns the snapshot file name for a 1-based iteration
// number, e.g. 01.pwave_model.
func SnapshotName(n int, phase tomo.Phase) string {
	suffix := "pwave_model"
	if phase == tomo.PhaseS {
		suffix = "swave_model"
	}
	return fmt.Sprintf("%02d.%s", n, suffix)
}

// Writer persists per-iteration model snapshots under one output directory.
// It satisfies tomo.ModelWriter; the controller's 0-based iteration index
// maps to 1-based snapshot names, so 01.pwave_model is the model after the
// first iteration.
type Writer struct {
	dir string
}

// NewWriter returns a Writer rooted at dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// WriteModel writes the snapshot for one phase of one iteration.
func (w *Writer) WriteModel(m *tomo.Model, phase tomo.Phase, iteration int) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	return SaveModel(filepath.Join(w.dir, SnapshotName(iteration+1, phase)), m)
}

// modelSnapshot is the gob+gzip wire form of a model.
type modelSnapshot struct {
	Grid tomo.Grid
	V    []float64
}

// SaveModel writes m to path.
func SaveModel(path string, m *tomo.Model) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create model file: %w", err)
	}
	gz := gzip.NewWriter(file)
	enc := gob.NewEncoder(gz)
	if err := enc.Encode(modelSnapshot{Grid: m.Grid, V: m.V}); err != nil {
		gz.Close()
		file.Close()
		return fmt.Errorf("failed to encode model %s: %w", path, err)
	}
	if err := gz.Close(); err != nil {
		file.Close()
		return fmt.Errorf("failed to flush model %s: %w", path, err)
	}
	return file.Close()
}

// LoadModel reads a model snapshot from path.
func LoadModel(path string) (*tomo.Model, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	var snap modelSnapshot
	if err := gob.NewDecoder(gz).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode model %s: %w", path, err)
	}
	return tomo.NewModel(snap.Grid, snap.V)
}
