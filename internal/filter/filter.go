// Package filter decides which storm-track observations fall safely
// inside the visible disc of a geostationary scene. A cheap bounding
// box pass rejects observations far outside the footprint; a precise
// per-point window check rejects anything off the disc or close enough
// to its edge that later resampling could read past it.
package filter

import (
	"fmt"

	"github.com/jdylanwhite/cyclone-labeler/internal/geo"
	"github.com/jdylanwhite/cyclone-labeler/internal/track"
)

// DefaultCheckSize is the half-width, in pixels, of the square window
// inspected around an observation's nearest pixel.
const DefaultCheckSize = 50

// Option configures a Filter.
type Option func(*Filter)

// WithCheckSize overrides the visibility window half-width. A half
// width of zero checks only the located pixel itself.
func WithCheckSize(n int) Option {
	return func(f *Filter) {
		f.checkSize = n
	}
}

// Filter tests observations against one scene's grid.
type Filter struct {
	proj      geo.Projection
	grid      *geo.Grid
	bounds    geo.Bounds
	checkSize int
}

// New builds a filter for the given projection and grid. The grid must
// already be fill-normalized (geo.NewGrid guarantees that); its
// geographic bounds are computed once here.
func New(p geo.Projection, g *geo.Grid, opts ...Option) (*Filter, error) {
	bounds, err := g.Bounds()
	if err != nil {
		return nil, fmt.Errorf("computing grid bounds: %w", err)
	}

	f := &Filter{
		proj:      p,
		grid:      g,
		bounds:    bounds,
		checkSize: DefaultCheckSize,
	}
	for _, opt := range opts {
		opt(f)
	}

	if f.checkSize < 0 {
		return nil, fmt.Errorf("negative check size %d", f.checkSize)
	}
	return f, nil
}

// Bounds returns the geographic envelope used by the prefilter.
func (f *Filter) Bounds() geo.Bounds {
	return f.bounds
}

// Apply returns the observations that survive both passes, in input
// order. Observations outside the bounding box are rejected without
// ever running the per-point disc check; the box is a superset of the
// disc, so the order of passes only affects cost, never the result.
func (f *Filter) Apply(obs []track.Observation) []track.Observation {
	var kept []track.Observation
	for _, o := range obs {
		if !f.InBounds(o.Lat, o.Lon) {
			continue
		}
		if !f.Visible(o.Lat, o.Lon) {
			continue
		}
		kept = append(kept, o)
	}
	return kept
}

// InBounds is the bounding-box prefilter. It is intentionally
// permissive: a rectangular envelope always contains the disc, so a
// pass here proves nothing about visibility.
func (f *Filter) InBounds(lat, lon float64) bool {
	return f.bounds.Contains(lat, lon)
}

// Locate forward-projects a geodetic point and finds the nearest pixel
// index along each axis independently. ok is false when the point has
// no projection (off-disc) or an axis holds no finite coordinate;
// callers treat both as "not visible", never as an error.
func (f *Filter) Locate(lat, lon float64) (col, row int, ok bool) {
	x, y := f.proj.Forward(lon, lat)

	col, ok = geo.NearestIndex(f.grid.X, x)
	if !ok {
		return 0, 0, false
	}
	row, ok = geo.NearestIndex(f.grid.Y, y)
	if !ok {
		return 0, 0, false
	}
	return col, row, true
}

// Visible reports whether the point sits safely inside the disc: every
// cell of the (2*checkSize+1)-wide square window around its nearest
// pixel must be on-disc in the longitude grid. A single-pixel check
// would keep points numerically on the boundary; the window provides
// the safety margin.
func (f *Filter) Visible(lat, lon float64) bool {
	col, row, ok := f.Locate(lat, lon)
	if !ok {
		return false
	}
	return f.windowClear(row, col)
}

// windowClear scans the check window, clamped to valid index ranges.
// Clamped, not wrapped: a negative slice start must not alias the far
// end of the grid.
func (f *Filter) windowClear(row, col int) bool {
	ny, nx := f.grid.Shape()

	r0 := max(row-f.checkSize, 0)
	r1 := min(row+f.checkSize, ny-1)
	c0 := max(col-f.checkSize, 0)
	c1 := min(col+f.checkSize, nx-1)

	for r := r0; r <= r1; r++ {
		for c := c0; c <= c1; c++ {
			if f.grid.IsNaNAt(r, c) {
				return false
			}
		}
	}
	return true
}
