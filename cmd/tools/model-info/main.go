// Command model-info prints the lattice and velocity statistics of a
// persisted model snapshot, optionally rendering a depth-slice heat map.
package main

import (
	"flag"
	"fmt"
	"log"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/tomo.report/internal/modelio"
	"github.com/banshee-data/tomo.report/internal/tomo"
	"github.com/banshee-data/tomo.report/internal/tomo/monitor"
)

func main() {
	phaseName := flag.String("phase", "P", "phase label used in plot file names (P or S)")
	plotDir := flag.String("plot", "", "write a depth-slice heat map into this directory")
	k := flag.Int("k", -1, "depth index for the slice, -1 selects the middle plane")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatalf("usage: model-info [flags] <model file>")
	}
	path := flag.Arg(0)

	m, err := modelio.LoadModel(path)
	if err != nil {
		log.Fatalf("failed to load model: %v", err)
	}

	g := m.Grid
	lo, hi := g.Bounds()
	fmt.Printf("file:     %s\n", path)
	fmt.Printf("grid:     %dx%dx%d nodes, spacing (%g, %g, %g) km\n", g.Nx, g.Ny, g.Nz, g.Dx, g.Dy, g.Dz)
	fmt.Printf("bounds:   (%g, %g, %g) to (%g, %g, %g) km\n", lo.X, lo.Y, lo.Z, hi.X, hi.Y, hi.Z)
	fmt.Printf("nodes:    %d\n", g.NumNodes())
	fmt.Printf("velocity: min %.4f, mean %.4f, max %.4f km/s, stddev %.4f\n",
		floats.Min(m.V), stat.Mean(m.V, nil), floats.Max(m.V), stat.StdDev(m.V, nil))

	if *plotDir != "" {
		phase := tomo.PhaseP
		if *phaseName == "S" || *phaseName == "s" {
			phase = tomo.PhaseS
		}
		plane := *k
		if plane < 0 {
			plane = g.Nz / 2
		}
		file, err := monitor.WriteVelocitySlice(m, phase, plane, *plotDir)
		if err != nil {
			log.Fatalf("failed to write slice: %v", err)
		}
		fmt.Printf("slice:    %s\n", file)
	}
}
