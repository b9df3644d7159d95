// Package monitor renders run diagnostics as PNG files: per-phase
// convergence series, travel-time residual histograms, and horizontal
// velocity-model slices. Plots are written after a run from the collected
// iteration summaries; nothing here touches the inversion hot path.
package monitor

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/tomo.report/internal/tomo"
)

// phaseColor returns the line color used for a phase across all charts,
// so P and S stay visually consistent between plots.
func phaseColor(phase tomo.Phase) color.Color {
	if phase == tomo.PhaseS {
		return color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}
	}
	return color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
}

// convergenceCharts lists the per-iteration series plotted by
// WriteConvergencePlots, one PNG per entry.
var convergenceCharts = []struct {
	file   string
	title  string
	yLabel string
	value  func(tomo.IterationSummary) float64
}{
	{
		file:   "update_norm.png",
		title:  "Aggregated Update Norm",
		yLabel: "|update| (s/km)",
		value:  func(s tomo.IterationSummary) float64 { return s.UpdateNorm },
	},
	{
		file:   "residual_norm.png",
		title:  "Mean Solver Residual Norm",
		yLabel: "|r| (s)",
		value:  func(s tomo.IterationSummary) float64 { return s.MeanResidualNorm },
	},
	{
		file:   "filtered_samples.png",
		title:  "Ensemble Samples Rejected by Outlier Filter",
		yLabel: "rejected (%)",
		value:  func(s tomo.IterationSummary) float64 { return 100 * s.FilterStats.RejectedFraction() },
	},
	{
		file:   "node_variance.png",
		title:  "Mean Ensemble Variance per Node",
		yLabel: "variance ((s/km)^2)",
		value:  func(s tomo.IterationSummary) float64 { return s.MeanNodeVariance },
	},
}

// WriteConvergencePlots renders the convergence series for all phase loops
// in summaries, one line per phase, and returns the number of PNG files
// written to outputDir.
func WriteConvergencePlots(summaries []tomo.IterationSummary, outputDir string) (int, error) {
	if len(summaries) == 0 {
		return 0, nil
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create output dir: %w", err)
	}

	byPhase := make(map[tomo.Phase][]tomo.IterationSummary)
	for _, s := range summaries {
		byPhase[s.Phase] = append(byPhase[s.Phase], s)
	}
	for phase := range byPhase {
		series := byPhase[phase]
		sort.Slice(series, func(a, b int) bool { return series[a].Iteration < series[b].Iteration })
	}

	written := 0
	for _, chart := range convergenceCharts {
		p := plot.New()
		p.Title.Text = chart.title
		p.X.Label.Text = "Iteration"
		p.Y.Label.Text = chart.yLabel

		for _, phase := range []tomo.Phase{tomo.PhaseP, tomo.PhaseS} {
			series := byPhase[phase]
			if len(series) == 0 {
				continue
			}
			pts := make(plotter.XYs, 0, len(series))
			for _, s := range series {
				pts = append(pts, plotter.XY{X: float64(s.Iteration + 1), Y: chart.value(s)})
			}
			line, err := plotter.NewLine(pts)
			if err != nil {
				return written, err
			}
			line.Color = phaseColor(phase)
			line.Width = vg.Points(1.5)
			p.Add(line)
			p.Legend.Add(string(phase), line)
		}

		p.Legend.Top = true
		p.Legend.Left = false

		file := filepath.Join(outputDir, chart.file)
		if err := p.Save(10*vg.Inch, 6*vg.Inch, file); err != nil {
			return written, fmt.Errorf("save %s: %w", chart.file, err)
		}
		written++
	}
	return written, nil
}

const histogramBins = 24

// WriteResidualHistogram bins the travel-time residuals of one phase into a
// histogram PNG named residuals_<stage>.<phase>.png, where stage labels the
// point in the run the residuals were computed at (e.g. "initial", "final").
// It returns the path of the written file.
func WriteResidualHistogram(residuals []tomo.ArrivalResidual, phase tomo.Phase, stage, outputDir string) (string, error) {
	if len(residuals) == 0 {
		return "", fmt.Errorf("no %s-phase residuals to plot", phase)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}

	vals := make(plotter.Values, len(residuals))
	for i, r := range residuals {
		vals[i] = r.Residual
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s-phase travel-time residuals (%s)", phase, stage)
	p.X.Label.Text = "residual (s)"
	p.Y.Label.Text = "arrivals"

	hist, err := plotter.NewHist(vals, histogramBins)
	if err != nil {
		return "", err
	}
	hist.FillColor = phaseColor(phase)
	p.Add(hist)

	file := filepath.Join(outputDir, fmt.Sprintf("residuals_%s.%s.png", stage, phase))
	if err := p.Save(8*vg.Inch, 5*vg.Inch, file); err != nil {
		return "", fmt.Errorf("save residual histogram: %w", err)
	}
	return file, nil
}

// velocitySlice adapts one constant-depth plane of a model to the
// plotter.GridXYZ interface. Columns map to the x axis, rows to y.
type velocitySlice struct {
	m *tomo.Model
	k int
}

func (s velocitySlice) Dims() (c, r int)   { return s.m.Grid.Nx, s.m.Grid.Ny }
func (s velocitySlice) X(c int) float64    { return s.m.Grid.Origin.X + float64(c)*s.m.Grid.Dx }
func (s velocitySlice) Y(r int) float64    { return s.m.Grid.Origin.Y + float64(r)*s.m.Grid.Dy }
func (s velocitySlice) Z(c, r int) float64 { return s.m.V[s.m.Grid.NodeIndex(c, r, s.k)] }

// WriteVelocitySlice renders the velocity values on depth plane k as a
// heat map PNG named velocity_k<k>.<phase>.png and returns the path of the
// written file.
func WriteVelocitySlice(m *tomo.Model, phase tomo.Phase, k int, outputDir string) (string, error) {
	if m == nil {
		return "", fmt.Errorf("no model to plot")
	}
	if k < 0 || k >= m.Grid.Nz {
		return "", fmt.Errorf("depth index %d out of range [0, %d)", k, m.Grid.Nz)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}

	depth := m.Grid.Origin.Z + float64(k)*m.Grid.Dz
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s-phase velocity, depth %.1f km", phase, depth)
	p.X.Label.Text = "x (km)"
	p.Y.Label.Text = "y (km)"

	heat := plotter.NewHeatMap(velocitySlice{m: m, k: k}, palette.Heat(16, 1))
	p.Add(heat)

	file := filepath.Join(outputDir, fmt.Sprintf("velocity_k%02d.%s.png", k, phase))
	if err := p.Save(8*vg.Inch, 6*vg.Inch, file); err != nil {
		return "", fmt.Errorf("save velocity slice: %w", err)
	}
	return file, nil
}
