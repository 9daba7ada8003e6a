package filter

import (
	"math"
	"testing"
	"time"

	"github.com/jdylanwhite/cyclone-labeler/internal/geo"
	"github.com/jdylanwhite/cyclone-labeler/internal/track"
)

func goes16() geo.Projection {
	return geo.Projection{
		Height:    35786023.0,
		OriginLon: -75.0,
		Sweep:     geo.SweepX,
		SemiMajor: 6378137.0,
		SemiMinor: 6356752.31414,
	}
}

// testGrid builds a 4x4 grid fully on the disc and returns, for every
// cell, the geodetic point that locates back to it.
func testGrid(t *testing.T) (geo.Projection, *geo.Grid, [4][4][2]float64) {
	t.Helper()

	p := goes16()
	angles := []float64{-0.03, -0.01, 0.01, 0.03}
	axis := make([]float64, len(angles))
	for i, a := range angles {
		axis[i] = a * p.Height
	}

	g, err := geo.NewGrid(p, axis, axis)
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}

	var pts [4][4][2]float64
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			lon, lat := p.Inverse(axis[c], axis[r])
			if geo.IsFill(lon) {
				t.Fatalf("cell (%d,%d) unexpectedly off-disc", r, c)
			}
			pts[r][c] = [2]float64{lat, lon}
		}
	}
	return p, g, pts
}

// blankCorner sets the 2x2 block at rows 0-1, cols 0-1 to NaN in both
// geographic grids, mimicking off-disc cells.
func blankCorner(g *geo.Grid) {
	for r := 0; r < 2; r++ {
		for c := 0; c < 2; c++ {
			g.Lon.Set(math.NaN(), r, c)
			g.Lat.Set(math.NaN(), r, c)
		}
	}
}

func obsAt(name string, pt [2]float64) track.Observation {
	return track.Observation{
		StormID: name,
		Name:    name,
		Time:    time.Date(2017, 8, 17, 12, 0, 0, 0, time.UTC),
		Nature:  track.NatureTropical,
		Lat:     pt[0],
		Lon:     pt[1],
	}
}

// TestApplyEndToEnd is the synthetic 4x4 scenario: a 2x2 NaN block in
// one corner, one observation mapping inside the block and one mapping
// to the opposite corner, checkSize 1. Exactly the opposite-corner
// observation survives.
func TestApplyEndToEnd(t *testing.T) {
	p, g, pts := testGrid(t)
	blankCorner(g)

	f, err := New(p, g, WithCheckSize(1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	kept := f.Apply([]track.Observation{
		obsAt("inside-block", pts[1][1]),
		obsAt("opposite-corner", pts[3][3]),
	})

	if len(kept) != 1 || kept[0].Name != "opposite-corner" {
		t.Fatalf("kept = %+v, want only opposite-corner", kept)
	}
}

func TestVisibleWindowMargin(t *testing.T) {
	p, g, pts := testGrid(t)
	blankCorner(g)

	f, err := New(p, g, WithCheckSize(1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// (2,2) is one pixel from the NaN block: within checkSize, so it
	// must be discarded even though the pixel itself is on-disc.
	if f.Visible(pts[2][2][0], pts[2][2][1]) {
		t.Error("point within checkSize of NaN block must be rejected")
	}

	// (3,3) is more than checkSize away from any NaN cell.
	if !f.Visible(pts[3][3][0], pts[3][3][1]) {
		t.Error("point clear of the NaN block must be retained")
	}

	// With a zero-width window only the located pixel matters.
	f0, err := New(p, g, WithCheckSize(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !f0.Visible(pts[2][2][0], pts[2][2][1]) {
		t.Error("single-pixel check should keep an on-disc pixel")
	}
	if f0.Visible(pts[1][1][0], pts[1][1][1]) {
		t.Error("single-pixel check must reject a NaN pixel")
	}
}

// TestWindowClampAtEdge pins the redesigned edge behavior: a window
// centered on index 0 with a half-width larger than the grid must
// clamp to index 0, not wrap to the far end, and must not panic.
func TestWindowClampAtEdge(t *testing.T) {
	p, g, pts := testGrid(t)

	f, err := New(p, g, WithCheckSize(50))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if !f.Visible(pts[0][0][0], pts[0][0][1]) {
		t.Error("corner point on a clean grid must be visible with an oversized window")
	}

	// With the corner blanked, the oversized window sees the NaN block
	// from everywhere on this small grid.
	blankCorner(g)
	if f.Visible(pts[3][3][0], pts[3][3][1]) {
		t.Error("oversized window must observe the NaN block")
	}
}

func TestPrefilterRejectsOutOfBounds(t *testing.T) {
	p, g, pts := testGrid(t)

	f, err := New(p, g)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	b := f.Bounds()
	far := track.Observation{Lat: b.MaxLat + 10, Lon: b.MaxLon + 10}
	if f.InBounds(far.Lat, far.Lon) {
		t.Fatal("point outside the envelope must fail the prefilter")
	}
	if kept := f.Apply([]track.Observation{far}); len(kept) != 0 {
		t.Errorf("Apply kept an out-of-bounds observation: %+v", kept)
	}

	// The prefilter is a superset test: everything inside the grid
	// passes it.
	if !f.InBounds(pts[1][2][0], pts[1][2][1]) {
		t.Error("on-grid point must pass the prefilter")
	}
}

func TestLocateOffDisc(t *testing.T) {
	p, g, _ := testGrid(t)

	f, err := New(p, g)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// The far side of the earth has no projection; this must resolve
	// to "not visible", not a crash.
	if _, _, ok := f.Locate(0, 105); ok {
		t.Error("antipodal point must not locate to a pixel")
	}
	if f.Visible(0, 105) {
		t.Error("antipodal point must not be visible")
	}
}

func TestLocateNearest(t *testing.T) {
	p, g, pts := testGrid(t)

	f, err := New(p, g)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			col, row, ok := f.Locate(pts[r][c][0], pts[r][c][1])
			if !ok || row != r || col != c {
				t.Errorf("Locate(cell %d,%d) = (%d, %d, %v)", r, c, col, row, ok)
			}
		}
	}
}

func TestNewRejectsNegativeCheckSize(t *testing.T) {
	p, g, _ := testGrid(t)
	if _, err := New(p, g, WithCheckSize(-1)); err == nil {
		t.Error("expected error for negative check size")
	}
}
