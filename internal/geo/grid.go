package geo

import (
	"fmt"
	"math"

	"github.com/ctessum/sparse"
)

// Grid pairs the 1-D projection-plane axes of a scene with the 2-D
// geographic grids obtained by inverse-projecting every mesh cell.
// Lon and Lat share the shape [len(Y), len(X)]; cells outside the
// visible disc hold NaN. The fill-to-NaN normalization happens during
// construction, before any reduction ever sees the grids.
type Grid struct {
	X []float64 // projection-plane x coordinates, meters
	Y []float64 // projection-plane y coordinates, meters

	Lon *sparse.DenseArray
	Lat *sparse.DenseArray
}

// Bounds is the rectangular geographic envelope of a grid. It always
// contains the visible disc, so a bounds test is a rejection prefilter
// only, never a visibility proof.
type Bounds struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// Contains reports whether the point falls inside the envelope,
// boundary included.
func (b Bounds) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// NewGrid inverse-projects the rectangular mesh spanned by the x and y
// axes into longitude/latitude grids. Off-disc cells are NaN in both
// grids.
func NewGrid(p Projection, x, y []float64) (*Grid, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("validating projection: %w", err)
	}
	if len(x) == 0 || len(y) == 0 {
		return nil, errEmptyAxis
	}

	g := &Grid{
		X:   x,
		Y:   y,
		Lon: sparse.ZerosDense(len(y), len(x)),
		Lat: sparse.ZerosDense(len(y), len(x)),
	}

	for j, yc := range y {
		for i, xc := range x {
			lon, lat := p.Inverse(xc, yc)
			if IsFill(lon) || IsFill(lat) {
				lon, lat = math.NaN(), math.NaN()
			}
			g.Lon.Set(lon, j, i)
			g.Lat.Set(lat, j, i)
		}
	}

	return g, nil
}

// Shape returns the (rows, cols) dimensions of the geographic grids.
func (g *Grid) Shape() (ny, nx int) {
	return len(g.Y), len(g.X)
}

// Bounds computes the NaN-ignoring min/max of the geographic grids.
// It fails when no cell is on the disc, which indicates a degenerate
// scene rather than an empty result.
func (g *Grid) Bounds() (Bounds, error) {
	minLat, maxLat, okLat := finiteRange(g.Lat.Elements)
	minLon, maxLon, okLon := finiteRange(g.Lon.Elements)
	if !okLat || !okLon {
		return Bounds{}, fmt.Errorf("no on-disc cells in %dx%d grid", len(g.Y), len(g.X))
	}

	return Bounds{
		MinLat: minLat,
		MaxLat: maxLat,
		MinLon: minLon,
		MaxLon: maxLon,
	}, nil
}

// IsNaNAt reports whether the longitude grid holds NaN at (row, col).
// The longitude grid is the reference for disc membership; both grids
// are normalized together so either would do.
func (g *Grid) IsNaNAt(row, col int) bool {
	return math.IsNaN(g.Lon.Get(row, col))
}

func finiteRange(vals []float64) (lo, hi float64, ok bool) {
	lo = math.Inf(1)
	hi = math.Inf(-1)
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		ok = true
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi, ok
}
