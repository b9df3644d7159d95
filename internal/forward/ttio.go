package forward

import (
	"compress/gzip"
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/banshee-data/tomo.report/internal/tomo"
)

// FieldPath returns the on-disk location of a station's field under dir,
// named {station}.{phase} after the upstream solver's convention.
func FieldPath(dir, station string, phase tomo.Phase) string {
	return filepath.Join(dir, fmt.Sprintf("%s.%s", station, phase))
}

// fieldSnapshot is the gob+gzip wire form of a GridField.
type fieldSnapshot struct {
	Station   string
	Phase     tomo.Phase
	StationAt tomo.Point
	Grid      tomo.Grid
	Times     []float64
}

// WriteField persists f under dir, creating the directory if needed.
func WriteField(dir string, f *GridField) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create traveltime dir: %w", err)
	}
	path := FieldPath(dir, f.station, f.phase)
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create field file: %w", err)
	}
	gz := gzip.NewWriter(file)
	enc := gob.NewEncoder(gz)
	if err := enc.Encode(fieldSnapshot{
		Station:   f.station,
		Phase:     f.phase,
		StationAt: f.stationAt,
		Grid:      f.grid,
		Times:     f.times,
	}); err != nil {
		gz.Close()
		file.Close()
		return fmt.Errorf("failed to encode field %s: %w", f.station, err)
	}
	if err := gz.Close(); err != nil {
		file.Close()
		return fmt.Errorf("failed to flush field %s: %w", f.station, err)
	}
	return file.Close()
}

// LoadField reads a persisted field. A missing file keeps fs.ErrNotExist in
// the chain so callers can map it to an unavailable field.
func LoadField(path string) (*GridField, error) {
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

	var snap fieldSnapshot
	if err := gob.NewDecoder(gz).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode field %s: %w", path, err)
	}
	return NewGridField(snap.Station, snap.Phase, snap.StationAt, snap.Grid, snap.Times)
}

// DiskComputer serves fields precomputed by an external eikonal solver and
// laid out one file per station and phase under a traveltime directory. The
// model argument is ignored: disk fields are snapshots of whatever model the
// external solver ran against.
type DiskComputer struct {
	dir string
}

// NewDiskComputer returns a computer reading fields from dir.
func NewDiskComputer(dir string) *DiskComputer {
	return &DiskComputer{dir: dir}
}

// Compute loads the field for station and phase from disk.
func (c *DiskComputer) Compute(_ *tomo.Model, station string, phase tomo.Phase) (tomo.TraveltimeField, error) {
	f, err := LoadField(FieldPath(c.dir, station, phase))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("forward: station %s %s-phase: %w", station, phase, tomo.ErrFieldUnavailable)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}
