// Command gen-synthetic builds a self-contained synthetic workspace: a
// ground-truth velocity model with a central anomaly, surface stations,
// buried events, noisy travel-time picks and a matching parameter file.
// The output is ready for an end-to-end inversion with -straight-rays.
package main

import (
	"flag"
	"log"
)

func main() {
	dir := flag.String("dir", "synthetic", "output directory for the workspace")
	nx := flag.Int("nx", 21, "grid nodes along x")
	ny := flag.Int("ny", 21, "grid nodes along y")
	nz := flag.Int("nz", 11, "grid nodes along z")
	spacing := flag.Float64("d", 2.0, "grid spacing (km)")
	stations := flag.Int("stations", 8, "number of surface stations")
	events := flag.Int("events", 60, "number of events")
	velocity := flag.Float64("v", 5.0, "background P velocity (km/s)")
	anomaly := flag.Float64("anomaly", -0.1, "relative amplitude of the central anomaly")
	vpvs := flag.Float64("vpvs", 1.73, "Vp/Vs ratio for the S catalog, 0 disables S")
	noise := flag.Float64("noise", 0.05, "picking noise standard deviation (s)")
	seed := flag.Int64("seed", 1, "generator seed")
	flag.Parse()

	sum, err := generate(genParams{
		Dir:      *dir,
		Nx:       *nx,
		Ny:       *ny,
		Nz:       *nz,
		Spacing:  *spacing,
		Stations: *stations,
		Events:   *events,
		Velocity: *velocity,
		Anomaly:  *anomaly,
		VpVs:     *vpvs,
		Noise:    *noise,
		Seed:     *seed,
	})
	if err != nil {
		log.Fatalf("generate failed: %v", err)
	}

	log.Printf("✓ Created: %s (%d events, %d stations, %d arrivals)", *dir, sum.Events, sum.Stations, sum.Arrivals)
	log.Printf("run: tomo -config %s -events %s -stations %s -arrivals %s -straight-rays",
		sum.ParamsPath, sum.EventsPath, sum.StationsPath, sum.ArrivalsPath)
}
