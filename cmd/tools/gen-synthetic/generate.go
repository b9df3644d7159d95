package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"

	"github.com/banshee-data/tomo.report/internal/config"
	"github.com/banshee-data/tomo.report/internal/forward"
	"github.com/banshee-data/tomo.report/internal/modelio"
	"github.com/banshee-data/tomo.report/internal/tomo"
)

// genParams bundles the generator knobs.
type genParams struct {
	Dir      string
	Nx       int
	Ny       int
	Nz       int
	Spacing  float64
	Stations int
	Events   int
	Velocity float64 // background P velocity (km/s)
	Anomaly  float64 // relative amplitude at the anomaly centre
	VpVs     float64 // 0 disables the S catalog and model
	Noise    float64 // picking noise stddev (s)
	Seed     int64
}

// genSummary reports what was written, for logging and scripting.
type genSummary struct {
	Events       int
	Stations     int
	Arrivals     int
	ParamsPath   string
	EventsPath   string
	StationsPath string
	ArrivalsPath string
}

// placementMargin keeps stations and events away from the lattice edge so
// every straight ray stays inside the interpolation bounds.
const placementMargin = 0.1

func ptrInt(v int) *int          { return &v }
func ptrInt64(v int64) *int64    { return &v }
func ptrString(v string) *string { return &v }

// generate writes the full synthetic workspace under p.Dir: models/,
// catalog/ and params.json. Picks are exact straight-ray travel times
// through the ground-truth model plus Gaussian noise.
func generate(p genParams) (genSummary, error) {
	var sum genSummary
	switch {
	case p.Stations <= 0 || p.Events <= 0:
		return sum, fmt.Errorf("stations and events must be positive, got %d and %d", p.Stations, p.Events)
	case p.Velocity <= 0:
		return sum, fmt.Errorf("background velocity must be positive, got %g", p.Velocity)
	case math.Abs(p.Anomaly) >= 1:
		return sum, fmt.Errorf("anomaly fraction must stay inside (-1, 1), got %g", p.Anomaly)
	case p.VpVs < 0 || p.Noise < 0:
		return sum, fmt.Errorf("vpvs and noise must not be negative, got %g and %g", p.VpVs, p.Noise)
	}

	grid := tomo.Grid{Dx: p.Spacing, Dy: p.Spacing, Dz: p.Spacing, Nx: p.Nx, Ny: p.Ny, Nz: p.Nz}
	if err := grid.Check(); err != nil {
		return sum, err
	}
	rng := rand.New(rand.NewSource(p.Seed))

	trueP, err := anomalyModel(grid, p.Velocity, p.Anomaly)
	if err != nil {
		return sum, err
	}
	models := map[string]*tomo.Model{
		"true.pwave_model": trueP,
	}
	if models["initial.pwave_model"], err = tomo.NewUniformModel(grid, p.Velocity); err != nil {
		return sum, err
	}
	var trueS *tomo.Model
	if p.VpVs > 0 {
		if trueS, err = anomalyModel(grid, p.Velocity/p.VpVs, p.Anomaly); err != nil {
			return sum, err
		}
		models["true.swave_model"] = trueS
		if models["initial.swave_model"], err = tomo.NewUniformModel(grid, p.Velocity/p.VpVs); err != nil {
			return sum, err
		}
	}

	modelDir := filepath.Join(p.Dir, "models")
	if err := os.MkdirAll(modelDir, 0o755); err != nil {
		return sum, fmt.Errorf("failed to create model dir: %w", err)
	}
	for name, m := range models {
		if err := modelio.SaveModel(filepath.Join(modelDir, name), m); err != nil {
			return sum, err
		}
	}

	stations := placeStations(grid, p.Stations, rng)
	events := placeEvents(grid, p.Events, rng)

	arrivalRows, err := pickArrivals(trueP, trueS, stations, events, p.Noise, rng)
	if err != nil {
		return sum, err
	}

	catalogDir := filepath.Join(p.Dir, "catalog")
	sum.EventsPath = filepath.Join(catalogDir, "events.csv")
	sum.StationsPath = filepath.Join(catalogDir, "stations.csv")
	sum.ArrivalsPath = filepath.Join(catalogDir, "arrivals.csv")

	eventRows := make([][]string, len(events))
	for i, ev := range events {
		eventRows[i] = []string{ev.ID, ftoa(ev.Hypocenter.X), ftoa(ev.Hypocenter.Y), ftoa(ev.Hypocenter.Z), ftoa(ev.OriginTime)}
	}
	if err := writeCSV(sum.EventsPath, []string{"event_id", "x", "y", "z", "origin_time"}, eventRows); err != nil {
		return sum, err
	}
	stationRows := make([][]string, len(stations))
	for i, st := range stations {
		stationRows[i] = []string{st.ID, ftoa(st.Position.X), ftoa(st.Position.Y), ftoa(st.Position.Z)}
	}
	if err := writeCSV(sum.StationsPath, []string{"station", "x", "y", "z"}, stationRows); err != nil {
		return sum, err
	}
	if err := writeCSV(sum.ArrivalsPath, []string{"event_id", "station", "phase", "time"}, arrivalRows); err != nil {
		return sum, err
	}

	sum.ParamsPath = filepath.Join(p.Dir, "params.json")
	if err := writeParams(sum.ParamsPath, p, modelDir); err != nil {
		return sum, err
	}

	sum.Events = len(events)
	sum.Stations = len(stations)
	sum.Arrivals = len(arrivalRows)
	return sum, nil
}

// anomalyModel builds the ground truth: a uniform background with one
// Gaussian anomaly centred in the volume. anomaly is the relative amplitude
// at the centre, negative for a slow body.
func anomalyModel(g tomo.Grid, background, anomaly float64) (*tomo.Model, error) {
	m, err := tomo.NewUniformModel(g, background)
	if err != nil {
		return nil, err
	}
	lo, hi := g.Bounds()
	center := tomo.Point{X: (lo.X + hi.X) / 2, Y: (lo.Y + hi.Y) / 2, Z: (lo.Z + hi.Z) / 2}
	half := math.Max(hi.X-lo.X, math.Max(hi.Y-lo.Y, hi.Z-lo.Z)) / 2
	if half == 0 {
		return m, nil
	}
	sigma := half / 3
	for idx := range m.V {
		r := g.NodePoint(idx).Dist(center)
		m.V[idx] = background * (1 + anomaly*math.Exp(-r*r/(2*sigma*sigma)))
	}
	return m, nil
}

type genStation struct {
	ID       string
	Position tomo.Point
}

func placeStations(g tomo.Grid, n int, rng *rand.Rand) []genStation {
	lo, hi := g.Bounds()
	out := make([]genStation, n)
	for i := range out {
		out[i] = genStation{
			ID: fmt.Sprintf("SY.S%02d", i+1),
			Position: tomo.Point{
				X: randomIn(rng, lo.X, hi.X),
				Y: randomIn(rng, lo.Y, hi.Y),
				Z: lo.Z, // surface, z grows downward
			},
		}
	}
	return out
}

type genEvent struct {
	ID         string
	Hypocenter tomo.Point
	OriginTime float64
}

func placeEvents(g tomo.Grid, n int, rng *rand.Rand) []genEvent {
	lo, hi := g.Bounds()
	zSpan := hi.Z - lo.Z
	out := make([]genEvent, n)
	for i := range out {
		out[i] = genEvent{
			ID: fmt.Sprintf("ev%04d", i+1),
			Hypocenter: tomo.Point{
				X: randomIn(rng, lo.X, hi.X),
				Y: randomIn(rng, lo.Y, hi.Y),
				Z: lo.Z + (0.2+0.7*rng.Float64())*zSpan,
			},
			OriginTime: 10 * float64(i),
		}
	}
	return out
}

// randomIn draws uniformly from [lo, hi] shrunk by the placement margin on
// both sides.
func randomIn(rng *rand.Rand, lo, hi float64) float64 {
	span := hi - lo
	return lo + span*(placementMargin+(1-2*placementMargin)*rng.Float64())
}

// pickArrivals integrates the exact travel time of every event/station pair
// through the ground-truth models and perturbs each pick with Gaussian
// noise. A perturbation that would push the travel time non-positive is
// dropped for that pick; the catalog loader would reject the row anyway.
func pickArrivals(trueP, trueS *tomo.Model, stations []genStation, events []genEvent, noise float64, rng *rand.Rand) ([][]string, error) {
	positions := make(map[string]tomo.Point, len(stations))
	for _, st := range stations {
		positions[st.ID] = st.Position
	}
	computer := forward.NewStraightRayComputer(positions)

	type phaseModel struct {
		phase tomo.Phase
		model *tomo.Model
	}
	phases := []phaseModel{{tomo.PhaseP, trueP}}
	if trueS != nil {
		phases = append(phases, phaseModel{tomo.PhaseS, trueS})
	}

	var rows [][]string
	for _, ph := range phases {
		for _, st := range stations {
			field, err := computer.Compute(ph.model, st.ID, ph.phase)
			if err != nil {
				return nil, err
			}
			for _, ev := range events {
				tt, err := field.Value(ev.Hypocenter)
				if err != nil {
					return nil, fmt.Errorf("travel time %s to %s: %w", ev.ID, st.ID, err)
				}
				perturbed := tt + rng.NormFloat64()*noise
				if perturbed <= 0 {
					perturbed = tt
				}
				rows = append(rows, []string{ev.ID, st.ID, string(ph.phase), ftoa(ev.OriginTime + perturbed)})
			}
		}
	}
	return rows, nil
}

func writeParams(path string, p genParams, modelDir string) error {
	cfg := config.Config{
		Algorithm: config.AlgorithmConfig{
			NIter:    ptrInt(3),
			NReal:    ptrInt(8),
			NVoronoi: ptrInt(150),
			Seed:     ptrInt64(p.Seed),
		},
		Workspace: config.WorkspaceConfig{
			OutputDir:     ptrString(filepath.Join(p.Dir, "output")),
			TraveltimeDir: ptrString(filepath.Join(p.Dir, "traveltimes")),
		},
		Model: config.ModelConfig{
			InitialPwavePath: ptrString(filepath.Join(modelDir, "initial.pwave_model")),
		},
	}
	if p.VpVs > 0 {
		cfg.Model.InitialSwavePath = ptrString(filepath.Join(modelDir, "initial.swave_model"))
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func writeCSV(path string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create catalog dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return w.Error()
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
