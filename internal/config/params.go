package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/tomo.report/internal/tomo"
)

// DefaultConfigPath is the canonical example parameter file. Runs normally
// name an explicit file with -config; the example documents every key.
const DefaultConfigPath = "config/params.example.json"

// Config is the root run configuration. All fields are pointers so a JSON
// file may set any subset of keys; the Get* methods supply defaults for the
// rest. The file is parsed once before the run starts and treated as
// immutable afterwards.
type Config struct {
	Algorithm AlgorithmConfig `json:"algorithm"`
	Workspace WorkspaceConfig `json:"workspace"`
	Model     ModelConfig     `json:"model"`
	Locate    LocateConfig    `json:"locate"`
}

// AlgorithmConfig holds the inversion parameters.
type AlgorithmConfig struct {
	NIter                *int     `json:"niter,omitempty"`
	NReal                *int     `json:"nreal,omitempty"`
	NVoronoi             *int     `json:"nvoronoi,omitempty"`
	AdaptiveVoronoiCells *bool    `json:"adaptive_voronoi_cells,omitempty"`
	NArrival             *int     `json:"narrival,omitempty"`
	OutlierRemovalFactor *float64 `json:"outlier_removal_factor,omitempty"`
	ATol                 *float64 `json:"atol,omitempty"`
	BTol                 *float64 `json:"btol,omitempty"`
	MaxIter              *int     `json:"maxiter,omitempty"`
	ConLim               *float64 `json:"conlim,omitempty"`
	Damp                 *float64 `json:"damp,omitempty"`
	Workers              *int     `json:"workers,omitempty"`
	Seed                 *int64   `json:"seed,omitempty"`
}

// WorkspaceConfig holds the run's working directories.
type WorkspaceConfig struct {
	OutputDir     *string `json:"output_dir,omitempty"`
	TraveltimeDir *string `json:"traveltime_dir,omitempty"`
}

// ModelConfig names the initial velocity model files.
type ModelConfig struct {
	InitialPwavePath *string `json:"initial_pwave_path,omitempty"`
	InitialSwavePath *string `json:"initial_swave_path,omitempty"`
}

// LocateConfig holds the grid-search deltas for the external event
// relocation step. The inversion core does not consume them; they are
// parsed and validated here so one parameter file serves the whole
// workflow.
type LocateConfig struct {
	DLat   *float64 `json:"dlat,omitempty"`
	DLon   *float64 `json:"dlon,omitempty"`
	DDepth *float64 `json:"ddepth,omitempty"`
	DTime  *float64 `json:"dtime,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrInt64(v int64) *int64       { return &v }

// Load reads a Config from a JSON file. The path must carry a .json
// extension and the file must stay under 1MB. Omitted keys fall back to the
// Get* defaults, so partial files are safe.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every set value. Algorithm keys are validated through the
// run parameters they materialize into; locate deltas must be positive when
// set.
func (c *Config) Validate() error {
	if _, err := c.Params(); err != nil {
		return err
	}
	locate := map[string]*float64{
		"dlat":   c.Locate.DLat,
		"dlon":   c.Locate.DLon,
		"ddepth": c.Locate.DDepth,
		"dtime":  c.Locate.DTime,
	}
	for key, v := range locate {
		if v != nil && *v <= 0 {
			return &tomo.ConfigurationError{Param: key, Reason: fmt.Sprintf("must be positive, got %g", *v)}
		}
	}
	return nil
}

// Params materializes the algorithm section into validated run parameters.
func (c *Config) Params() (tomo.Params, error) {
	p := tomo.Params{
		NIter:    c.Algorithm.GetNIter(),
		NReal:    c.Algorithm.GetNReal(),
		NVoronoi: c.Algorithm.GetNVoronoi(),
		Adaptive: c.Algorithm.GetAdaptiveVoronoiCells(),
		NArrival: c.Algorithm.GetNArrival(),
		OutlierK: c.Algorithm.GetOutlierRemovalFactor(),
		Solver: tomo.SolverParams{
			Damp:    c.Algorithm.GetDamp(),
			ATol:    c.Algorithm.GetATol(),
			BTol:    c.Algorithm.GetBTol(),
			ConLim:  c.Algorithm.GetConLim(),
			MaxIter: c.Algorithm.GetMaxIter(),
		},
		Workers: c.Algorithm.GetWorkers(),
		Seed:    c.Algorithm.GetSeed(),
	}
	if err := p.Validate(); err != nil {
		return tomo.Params{}, err
	}
	return p, nil
}

// GetNIter returns the niter value or the default.
func (c *AlgorithmConfig) GetNIter() int {
	if c.NIter == nil {
		return 5
	}
	return *c.NIter
}

// GetNReal returns the nreal value or the default.
func (c *AlgorithmConfig) GetNReal() int {
	if c.NReal == nil {
		return 32
	}
	return *c.NReal
}

// GetNVoronoi returns the nvoronoi value or the default.
func (c *AlgorithmConfig) GetNVoronoi() int {
	if c.NVoronoi == nil {
		return 300
	}
	return *c.NVoronoi
}

// GetAdaptiveVoronoiCells returns the adaptive_voronoi_cells value or the default.
func (c *AlgorithmConfig) GetAdaptiveVoronoiCells() bool {
	if c.AdaptiveVoronoiCells == nil {
		return false
	}
	return *c.AdaptiveVoronoiCells
}

// GetNArrival returns the narrival value or the default. Zero keeps every
// usable arrival in every realization.
func (c *AlgorithmConfig) GetNArrival() int {
	if c.NArrival == nil {
		return 0
	}
	return *c.NArrival
}

// GetOutlierRemovalFactor returns the outlier_removal_factor value or the default.
func (c *AlgorithmConfig) GetOutlierRemovalFactor() float64 {
	if c.OutlierRemovalFactor == nil {
		return 1.5
	}
	return *c.OutlierRemovalFactor
}

// GetATol returns the atol value or the default.
func (c *AlgorithmConfig) GetATol() float64 {
	if c.ATol == nil {
		return 1e-6
	}
	return *c.ATol
}

// GetBTol returns the btol value or the default.
func (c *AlgorithmConfig) GetBTol() float64 {
	if c.BTol == nil {
		return 1e-6
	}
	return *c.BTol
}

// GetMaxIter returns the maxiter value or the default.
func (c *AlgorithmConfig) GetMaxIter() int {
	if c.MaxIter == nil {
		return 100
	}
	return *c.MaxIter
}

// GetConLim returns the conlim value or the default.
func (c *AlgorithmConfig) GetConLim() float64 {
	if c.ConLim == nil {
		return 1e8
	}
	return *c.ConLim
}

// GetDamp returns the damp value or the default. The default damps lightly
// so cells crossed by few rays stay bounded.
func (c *AlgorithmConfig) GetDamp() float64 {
	if c.Damp == nil {
		return 1.0
	}
	return *c.Damp
}

// GetWorkers returns the workers value or the default. Zero sizes the pool
// to the available cores.
func (c *AlgorithmConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// GetSeed returns the seed value or the default.
func (c *AlgorithmConfig) GetSeed() int64 {
	if c.Seed == nil {
		return 0
	}
	return *c.Seed
}

// GetOutputDir returns the output_dir value or the default.
func (c *WorkspaceConfig) GetOutputDir() string {
	if c.OutputDir == nil || *c.OutputDir == "" {
		return "output"
	}
	return *c.OutputDir
}

// GetTraveltimeDir returns the traveltime_dir value or the default.
func (c *WorkspaceConfig) GetTraveltimeDir() string {
	if c.TraveltimeDir == nil || *c.TraveltimeDir == "" {
		return "traveltimes"
	}
	return *c.TraveltimeDir
}

// GetInitialPwavePath returns the initial_pwave_path value, empty if unset.
func (c *ModelConfig) GetInitialPwavePath() string {
	if c.InitialPwavePath == nil {
		return ""
	}
	return *c.InitialPwavePath
}

// GetInitialSwavePath returns the initial_swave_path value, empty if unset.
func (c *ModelConfig) GetInitialSwavePath() string {
	if c.InitialSwavePath == nil {
		return ""
	}
	return *c.InitialSwavePath
}

// GetDLat returns the dlat value or the default.
func (c *LocateConfig) GetDLat() float64 {
	if c.DLat == nil {
		return 0.1
	}
	return *c.DLat
}

// GetDLon returns the dlon value or the default.
func (c *LocateConfig) GetDLon() float64 {
	if c.DLon == nil {
		return 0.1
	}
	return *c.DLon
}

// GetDDepth returns the ddepth value or the default.
func (c *LocateConfig) GetDDepth() float64 {
	if c.DDepth == nil {
		return 10.0
	}
	return *c.DDepth
}

// GetDTime returns the dtime value or the default.
func (c *LocateConfig) GetDTime() float64 {
	if c.DTime == nil {
		return 1.0
	}
	return *c.DTime
}
