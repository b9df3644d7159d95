// Command tomo runs a stochastic ensemble travel-time inversion: it loads
// the run parameters, the event/station/arrival catalog and the initial
// velocity models, then drives the iteration controller until done or
// interrupted. Per-iteration models land in the configured output
// directory; run diagnostics go to a SQLite database and, optionally, to
// PNG plots.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/banshee-data/tomo.report/internal/catalog"
	"github.com/banshee-data/tomo.report/internal/config"
	"github.com/banshee-data/tomo.report/internal/forward"
	"github.com/banshee-data/tomo.report/internal/modelio"
	"github.com/banshee-data/tomo.report/internal/monitoring"
	"github.com/banshee-data/tomo.report/internal/runstore"
	"github.com/banshee-data/tomo.report/internal/tomo"
	"github.com/banshee-data/tomo.report/internal/tomo/monitor"
	"github.com/banshee-data/tomo.report/internal/version"
)

var (
	configPath   = flag.String("config", config.DefaultConfigPath, "Path to the JSON parameter file")
	eventsPath   = flag.String("events", "catalog/events.csv", "Path to the events CSV")
	stationsPath = flag.String("stations", "catalog/stations.csv", "Path to the stations CSV")
	arrivalsPath = flag.String("arrivals", "catalog/arrivals.csv", "Path to the arrival picks CSV")
	dbPath       = flag.String("db", "runs.db", "Path to the diagnostics SQLite database, empty disables recording")
	straightRays = flag.Bool("straight-rays", false, "Integrate travel times along straight rays instead of loading solver fields from traveltime_dir")
	writePlots   = flag.Bool("plots", false, "Write convergence and residual plots under <output_dir>/plots")
	verbose      = flag.Bool("verbose", false, "Enable debug logging")
	showVersion  = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Printf("tomo %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}
	if *verbose {
		monitoring.SetDebugLogger(log.Printf)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	params, err := cfg.Params()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	log.Printf("params: %s", params)

	cat, err := catalog.Load(*eventsPath, *stationsPath, *arrivalsPath)
	if err != nil {
		log.Fatalf("failed to load catalog: %v", err)
	}
	log.Printf("catalog: %d events, %d stations, %d arrivals", len(cat.Events), len(cat.Stations), len(cat.Arrivals))

	pPath := cfg.Model.GetInitialPwavePath()
	if pPath == "" {
		log.Fatalf("config: initial_pwave_path is required")
	}
	pModel, err := modelio.LoadModel(pPath)
	if err != nil {
		log.Fatalf("failed to load initial P model: %v", err)
	}
	var sModel *tomo.Model
	if sPath := cfg.Model.GetInitialSwavePath(); sPath != "" {
		if sModel, err = modelio.LoadModel(sPath); err != nil {
			log.Fatalf("failed to load initial S model: %v", err)
		}
	}

	var computer forward.Computer
	if *straightRays {
		computer = forward.NewStraightRayComputer(cat.StationPositions())
	} else {
		computer = forward.NewDiskComputer(cfg.Workspace.GetTraveltimeDir())
	}
	provider := forward.NewProvider(computer)

	outputDir := cfg.Workspace.GetOutputDir()
	writer := modelio.NewWriter(outputDir)

	ctrl, err := tomo.NewController(params, provider, writer, pModel, sModel, cat.Arrivals)
	if err != nil {
		log.Fatalf("failed to assemble run: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load every station's field up front so a misconfigured travel-time
	// directory fails before any realization work starts.
	stations := stationIDs(cat)
	for _, phase := range []tomo.Phase{tomo.PhaseP, tomo.PhaseS} {
		m := ctrl.Model(phase)
		if m == nil {
			continue
		}
		if err := provider.Prewarm(ctx, m, stations, phase); err != nil {
			log.Fatalf("failed to prewarm %s-phase fields: %v", phase, err)
		}
	}

	var store *runstore.Store
	var runID string
	if *dbPath != "" {
		store, err = runstore.Open(*dbPath)
		if err != nil {
			log.Fatalf("failed to open run store: %v", err)
		}
		defer store.Close()
		if runID, err = store.BeginRun(params); err != nil {
			log.Fatalf("failed to register run: %v", err)
		}
		log.Printf("recording run %s in %s", runID, *dbPath)
	}

	plotsDir := filepath.Join(outputDir, "plots")
	if *writePlots {
		writeResidualHistograms(ctrl, cat.Arrivals, provider, "initial", plotsDir)
	}

	summaries, runErr := ctrl.Run(ctx)

	if store != nil {
		for _, s := range summaries {
			if err := store.RecordIteration(runID, s); err != nil {
				log.Printf("failed to record iteration: %v", err)
			}
		}
		if err := store.FinishRun(runID, runStatus(runErr)); err != nil {
			log.Printf("failed to finish run record: %v", err)
		}
	}

	if *writePlots && len(summaries) > 0 {
		if n, err := monitor.WriteConvergencePlots(summaries, plotsDir); err != nil {
			log.Printf("failed to write convergence plots: %v", err)
		} else {
			log.Printf("wrote %d convergence plots to %s", n, plotsDir)
		}
		writeResidualHistograms(ctrl, cat.Arrivals, provider, "final", plotsDir)
		for _, phase := range []tomo.Phase{tomo.PhaseP, tomo.PhaseS} {
			if m := ctrl.Model(phase); m != nil {
				if _, err := monitor.WriteVelocitySlice(m, phase, m.Grid.Nz/2, plotsDir); err != nil {
					log.Printf("failed to write velocity slice: %v", err)
				}
			}
		}
	}

	if runErr != nil {
		log.Fatalf("run failed after %d phase loops: %v", len(summaries), runErr)
	}
	log.Printf("run complete: %d phase loops, models in %s", len(summaries), outputDir)
}

// runStatus maps the controller's outcome to the run-store status value.
func runStatus(err error) string {
	switch {
	case err == nil:
		return "done"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "failed"
	}
}

func stationIDs(cat *catalog.Catalog) []string {
	ids := make([]string, 0, len(cat.Stations))
	for _, s := range cat.Stations {
		ids = append(ids, s.ID)
	}
	sort.Strings(ids)
	return ids
}

func phaseArrivals(arrivals []tomo.Arrival, phase tomo.Phase) []tomo.Arrival {
	out := make([]tomo.Arrival, 0, len(arrivals))
	for _, a := range arrivals {
		if a.Phase == phase {
			out = append(out, a)
		}
	}
	return out
}

// writeResidualHistograms plots the travel-time residual distribution of
// each phase under the controller's current models. stage labels the files
// so before/after pairs can sit in one directory.
func writeResidualHistograms(ctrl *tomo.Controller, arrivals []tomo.Arrival, provider tomo.FieldProvider, stage, dir string) {
	for _, phase := range []tomo.Phase{tomo.PhaseP, tomo.PhaseS} {
		m := ctrl.Model(phase)
		pa := phaseArrivals(arrivals, phase)
		if m == nil || len(pa) == 0 {
			continue
		}
		residuals, dropped := tomo.ComputeResiduals(m, pa, provider)
		if len(residuals) == 0 {
			continue
		}
		file, err := monitor.WriteResidualHistogram(residuals, phase, stage, dir)
		if err != nil {
			log.Printf("failed to write residual histogram: %v", err)
			continue
		}
		monitoring.Debugf("wrote %s (%d residuals, %d arrivals dropped)", file, len(residuals), dropped)
	}
}
