package tomo

import (
	"fmt"
	"math"
)

// Point is a position in model coordinates. Axes are kilometres; Z grows
// downward (depth).
type Point struct {
	X float64
	Y float64
	Z float64
}

// Dist returns the Euclidean distance between p and q.
func (p Point) Dist(q Point) float64 {
	dx := p.X - q.X
	dy := p.Y - q.Y
	dz := p.Z - q.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Grid describes the regular lattice a model is sampled on. Node (i,j,k)
// sits at Origin + (i*Dx, j*Dy, k*Dz); nodes are addressed by the row-major
// flat index (i*Ny+j)*Nz + k. A 2D model uses Nz = 1.
type Grid struct {
	Origin     Point   // position of node (0,0,0)
	Dx, Dy, Dz float64 // node spacing along each axis (km)
	Nx, Ny, Nz int     // node counts along each axis
}

// Check validates the lattice dimensions.
func (g Grid) Check() error {
	if g.Nx < 1 || g.Ny < 1 || g.Nz < 1 {
		return fmt.Errorf("grid: node counts must be positive, got %dx%dx%d", g.Nx, g.Ny, g.Nz)
	}
	if g.Dx <= 0 || g.Dy <= 0 || g.Dz <= 0 {
		return fmt.Errorf("grid: spacings must be positive, got (%g, %g, %g)", g.Dx, g.Dy, g.Dz)
	}
	return nil
}

// NumNodes returns the total node count.
func (g Grid) NumNodes() int { return g.Nx * g.Ny * g.Nz }

// NodeIndex returns the flat index of node (i,j,k).
func (g Grid) NodeIndex(i, j, k int) int { return (i*g.Ny+j)*g.Nz + k }

// NodePoint returns the position of the node with flat index idx.
func (g Grid) NodePoint(idx int) Point {
	k := idx % g.Nz
	j := (idx / g.Nz) % g.Ny
	i := idx / (g.Ny * g.Nz)
	return Point{
		X: g.Origin.X + float64(i)*g.Dx,
		Y: g.Origin.Y + float64(j)*g.Dy,
		Z: g.Origin.Z + float64(k)*g.Dz,
	}
}

// Bounds returns the lower and upper corners of the node lattice.
func (g Grid) Bounds() (min, max Point) {
	min = g.Origin
	max = Point{
		X: g.Origin.X + float64(g.Nx-1)*g.Dx,
		Y: g.Origin.Y + float64(g.Ny-1)*g.Dy,
		Z: g.Origin.Z + float64(g.Nz-1)*g.Dz,
	}
	return min, max
}

// Contains reports whether p lies inside the lattice bounds.
func (g Grid) Contains(p Point) bool {
	min, max := g.Bounds()
	return p.X >= min.X && p.X <= max.X &&
		p.Y >= min.Y && p.Y <= max.Y &&
		p.Z >= min.Z && p.Z <= max.Z
}
