package geo

import (
	"math"
	"testing"
)

// goes16 matches the goes_imager_projection metadata of GOES-16 ABI
// full-disc products.
func goes16() Projection {
	return Projection{
		Height:    35786023.0,
		OriginLon: -75.0,
		Sweep:     SweepX,
		SemiMajor: 6378137.0,
		SemiMinor: 6356752.31414,
	}
}

func TestProjectionValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Projection)
		wantErr bool
	}{
		{"goes16 defaults", func(p *Projection) {}, false},
		{"sweep y", func(p *Projection) { p.Sweep = SweepY }, false},
		{"zero height", func(p *Projection) { p.Height = 0 }, true},
		{"negative axis", func(p *Projection) { p.SemiMajor = -1 }, true},
		{"swapped axes", func(p *Projection) { p.SemiMajor, p.SemiMinor = p.SemiMinor, p.SemiMajor }, true},
		{"unknown sweep", func(p *Projection) { p.Sweep = "z" }, true},
		{"bogus origin", func(p *Projection) { p.OriginLon = 500 }, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := goes16()
			tc.mutate(&p)
			err := p.Validate()
			if tc.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestInverseNadir(t *testing.T) {
	p := goes16()

	lon, lat := p.Inverse(0, 0)
	if math.Abs(lon-p.OriginLon) > 1e-9 {
		t.Errorf("nadir longitude = %v, want %v", lon, p.OriginLon)
	}
	if math.Abs(lat) > 1e-9 {
		t.Errorf("nadir latitude = %v, want 0", lat)
	}
}

func TestInverseOffDisc(t *testing.T) {
	p := goes16()

	// 0.2 rad exceeds the ~0.1518 rad half-angle of the visible disc.
	lon, lat := p.Inverse(0.2*p.Height, 0)
	if !IsFill(lon) || !IsFill(lat) {
		t.Errorf("off-disc inverse = (%v, %v), want fill sentinel", lon, lat)
	}
}

func TestForwardInvisible(t *testing.T) {
	p := goes16()

	// The antipode of the sub-satellite point is never visible.
	x, y := p.Forward(105, 0)
	if !IsFill(x) || !IsFill(y) {
		t.Errorf("antipodal forward = (%v, %v), want fill sentinel", x, y)
	}
}

// TestRoundTrip checks that projecting a grid cell to geodetic
// coordinates and back reproduces the projection-plane coordinates for
// cells safely on the disc.
func TestRoundTrip(t *testing.T) {
	for _, sweep := range []string{SweepX, SweepY} {
		t.Run("sweep "+sweep, func(t *testing.T) {
			p := goes16()
			p.Sweep = sweep

			angles := []float64{-0.1, -0.05, -0.01, 0, 0.01, 0.05, 0.1}
			for _, ax := range angles {
				for _, ay := range angles {
					x := ax * p.Height
					y := ay * p.Height

					lon, lat := p.Inverse(x, y)
					if IsFill(lon) {
						// Corner cells of the angle mesh fall off the
						// disc; nothing to round-trip.
						continue
					}

					gotX, gotY := p.Forward(lon, lat)
					if math.Abs(gotX-x) > 1e-3 || math.Abs(gotY-y) > 1e-3 {
						t.Errorf("round trip (%g, %g) -> (%g, %g) -> (%g, %g)",
							x, y, lon, lat, gotX, gotY)
					}
				}
			}
		})
	}
}

func TestForwardKnownPoint(t *testing.T) {
	p := goes16()

	// The sub-satellite point projects to the plane origin.
	x, y := p.Forward(p.OriginLon, 0)
	if math.Abs(x) > 1e-6 || math.Abs(y) > 1e-6 {
		t.Errorf("sub-satellite forward = (%v, %v), want origin", x, y)
	}

	// A point due north of nadir has no x component.
	x, y = p.Forward(p.OriginLon, 30)
	if math.Abs(x) > 1e-6 {
		t.Errorf("due-north point x = %v, want 0", x)
	}
	if y <= 0 {
		t.Errorf("due-north point y = %v, want positive", y)
	}
}

func TestNearestIndex(t *testing.T) {
	coords := []float64{0, 10, 20, 30}

	tests := []struct {
		name   string
		v      float64
		want   int
		wantOK bool
	}{
		{"exact", 20, 2, true},
		{"tie breaks to first minimal index", 15, 1, true},
		{"below range", -100, 0, true},
		{"above range", 100, 3, true},
		{"nan query", math.NaN(), 0, false},
		{"fill query", FillValue, 0, false},
		{"infinite query", math.Inf(1), 0, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := NearestIndex(coords, tc.v)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if ok && got != tc.want {
				t.Errorf("index = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestNearestIndexSkipsNaN(t *testing.T) {
	coords := []float64{math.NaN(), 10, math.NaN(), 30}

	got, ok := NearestIndex(coords, 0)
	if !ok || got != 1 {
		t.Errorf("NearestIndex = (%d, %v), want (1, true)", got, ok)
	}

	if _, ok := NearestIndex([]float64{math.NaN(), math.NaN()}, 0); ok {
		t.Error("all-NaN axis must report no index")
	}
	if _, ok := NearestIndex(nil, 0); ok {
		t.Error("empty axis must report no index")
	}
}

func TestIsFill(t *testing.T) {
	for _, v := range []float64{FillValue, -FillValue, 1e29, math.NaN(), math.Inf(1), math.Inf(-1)} {
		if !IsFill(v) {
			t.Errorf("IsFill(%v) = false, want true", v)
		}
	}
	for _, v := range []float64{0, -75, 180, 1e7} {
		if IsFill(v) {
			t.Errorf("IsFill(%v) = true, want false", v)
		}
	}
}
