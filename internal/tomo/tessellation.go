package tomo

import (
	"container/heap"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// generator is one Voronoi generator point carrying its cell index.
type generator struct {
	Point
	cell int
}

// Compare implements kdtree.Comparable.
func (g generator) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(generator)
	switch d {
	case 0:
		return g.X - q.X
	case 1:
		return g.Y - q.Y
	case 2:
		return g.Z - q.Z
	default:
		panic("illegal dimension")
	}
}

// Dims implements kdtree.Comparable.
func (g generator) Dims() int { return 3 }

// Distance implements kdtree.Comparable using squared Euclidean distance.
func (g generator) Distance(c kdtree.Comparable) float64 {
	q := c.(generator)
	dx := g.X - q.X
	dy := g.Y - q.Y
	dz := g.Z - q.Z
	return dx*dx + dy*dy + dz*dz
}

// generators satisfies kdtree.Interface.
type generators []generator

func (p generators) Index(i int) kdtree.Comparable         { return p[i] }
func (p generators) Len() int                              { return len(p) }
func (p generators) Slice(start, end int) kdtree.Interface { return p[start:end] }

func (p generators) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(genPlane{generators: p, Dim: d}, kdtree.MedianOfMedians(genPlane{generators: p, Dim: d}))
}

// genPlane implements sort.Interface and kdtree.SortSlicer over one axis.
type genPlane struct {
	generators
	kdtree.Dim
}

func (p genPlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.generators[i].X < p.generators[j].X
	case 1:
		return p.generators[i].Y < p.generators[j].Y
	case 2:
		return p.generators[i].Z < p.generators[j].Z
	default:
		panic("illegal dimension")
	}
}

func (p genPlane) Slice(start, end int) kdtree.SortSlicer {
	return genPlane{generators: p.generators[start:end], Dim: p.Dim}
}

func (p genPlane) Swap(i, j int) {
	p.generators[i], p.generators[j] = p.generators[j], p.generators[i]
}

// Tessellation is a random Voronoi partition of the model domain: a set of
// generator points plus a nearest-generator lookup resolving any point to
// the cell it belongs to. Every point maps to exactly one cell; exact
// distance ties resolve to the lowest generator index. Tessellations are
// regenerated fresh for every realization and never persisted.
type Tessellation struct {
	points []Point
	tree   *kdtree.Tree
}

// NewTessellation builds the cell lookup over the given generator points.
func NewTessellation(pts []Point) (*Tessellation, error) {
	if len(pts) == 0 {
		return nil, fmt.Errorf("tessellation: no generator points")
	}
	t := &Tessellation{points: append([]Point(nil), pts...)}
	if len(pts) > 1 {
		gens := make(generators, len(pts))
		for i, p := range pts {
			gens[i] = generator{Point: p, cell: i}
		}
		t.tree = kdtree.New(gens, true)
	}
	return t, nil
}

// NumCells returns the number of Voronoi cells.
func (t *Tessellation) NumCells() int { return len(t.points) }

// Generator returns the position of generator i.
func (t *Tessellation) Generator(i int) Point { return t.points[i] }

// CellOf returns the cell containing p: the index of its nearest generator,
// ties broken toward the lowest index.
func (t *Tessellation) CellOf(p Point) int {
	if len(t.points) == 1 {
		return 0
	}
	keeper := kdtree.NewNKeeper(2)
	t.tree.NearestSet(keeper, generator{Point: p, cell: -1})
	best := -1
	bestDist := math.Inf(1)
	for keeper.Len() > 0 {
		item := heap.Pop(keeper).(kdtree.ComparableDist)
		g, ok := item.Comparable.(generator)
		if !ok {
			continue
		}
		if item.Dist < bestDist || (item.Dist == bestDist && g.cell < best) {
			best = g.cell
			bestDist = item.Dist
		}
	}
	return best
}

// Assign maps every grid node to its owning cell, indexed by flat node index.
func (t *Tessellation) Assign(g Grid) []int {
	cells := make([]int, g.NumNodes())
	for idx := range cells {
		cells[idx] = t.CellOf(g.NodePoint(idx))
	}
	return cells
}

// UniformGenerators draws n generator points uniformly inside the bounds.
// The stream is consumed in a fixed order, so equal seeds give equal draws.
func UniformGenerators(min, max Point, n int, rng *rand.Rand) []Point {
	pts := make([]Point, n)
	for i := range pts {
		pts[i] = uniformPoint(min, max, rng)
	}
	return pts
}

// AdaptiveGenerators biases generator placement toward data coverage: each
// generator is a uniformly chosen point on the traced ray of an arrival
// drawn from cands, so regions crossed by more rays receive more, and hence
// smaller, cells. Arrivals whose field or ray is unavailable fall back to a
// uniform draw, so the placement degrades toward the uniform case as
// coverage thins.
func AdaptiveGenerators(m *Model, n int, cands []ArrivalResidual, provider FieldProvider, rng *rand.Rand) []Point {
	min, max := m.Grid.Bounds()
	pts := make([]Point, 0, n)
	for len(pts) < n {
		var ray []Point
		if len(cands) > 0 {
			arr := cands[rng.Intn(len(cands))].Arrival
			if f, err := provider.Field(m, arr.Station, arr.Phase); err == nil {
				if r, err := f.TraceRay(arr.Source); err == nil && len(r) > 0 {
					ray = r
				}
			}
		}
		if ray == nil {
			pts = append(pts, uniformPoint(min, max, rng))
			continue
		}
		pts = append(pts, ray[rng.Intn(len(ray))])
	}
	return pts
}

func uniformPoint(min, max Point, rng *rand.Rand) Point {
	return Point{
		X: min.X + rng.Float64()*(max.X-min.X),
		Y: min.Y + rng.Float64()*(max.Y-min.Y),
		Z: min.Z + rng.Float64()*(max.Z-min.Z),
	}
}
