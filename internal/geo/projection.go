// Package geo implements the geostationary projection used by GOES ABI
// imagery: bidirectional mapping between projection-plane coordinates
// (scan angle multiplied by satellite height, in meters) and geodetic
// longitude/latitude on the imaged ellipsoid.
package geo

import (
	"errors"
	"fmt"
	"math"
)

// FillValue marks projection results that have no geodetic solution,
// i.e. points outside the visible disc. It matches the large fill
// sentinel emitted by common projection libraries so that grids built
// from either source normalize the same way.
const FillValue = 1e30

// fillThreshold is the magnitude above which a value is treated as a
// fill sentinel rather than a coordinate.
const fillThreshold = 1e29

// Sweep angle axis labels as stored in the goes_imager_projection
// metadata. GOES ABI uses "x"; "y" matches the EUMETSAT convention.
const (
	SweepX = "x"
	SweepY = "y"
)

// Projection holds the geostationary projection parameters of a scene.
// All lengths are in meters, angles in degrees.
type Projection struct {
	Height    float64 // perspective point height above the ellipsoid
	OriginLon float64 // longitude of projection origin
	Sweep     string  // sweep angle axis, "x" or "y"
	SemiMajor float64 // ellipsoid semi-major axis
	SemiMinor float64 // ellipsoid semi-minor axis
}

// Validate reports whether the projection parameters describe a usable
// geostationary view. A scene with malformed parameters cannot be
// projected and the run must abort.
func (p Projection) Validate() error {
	switch {
	case p.Height <= 0:
		return fmt.Errorf("invalid perspective point height %g", p.Height)
	case p.SemiMajor <= 0 || p.SemiMinor <= 0:
		return fmt.Errorf("invalid ellipsoid axes (%g, %g)", p.SemiMajor, p.SemiMinor)
	case p.SemiMinor > p.SemiMajor:
		return fmt.Errorf("semi-minor axis %g exceeds semi-major axis %g", p.SemiMinor, p.SemiMajor)
	case p.Sweep != SweepX && p.Sweep != SweepY:
		return fmt.Errorf("unknown sweep angle axis %q", p.Sweep)
	case p.OriginLon < -180 || p.OriginLon > 360:
		return fmt.Errorf("invalid origin longitude %g", p.OriginLon)
	}
	return nil
}

// derived normalized terms shared by Forward and Inverse. Lengths are
// expressed in units of the semi-major axis, following the ellipsoidal
// geostationary formulation of PROJ's "geos" projection.
type geosTerms struct {
	radiusG1    float64 // satellite height, normalized
	radiusG     float64 // geocentric satellite radius, normalized
	c           float64 // radiusG^2 - 1
	radiusP     float64 // polar radius, normalized
	radiusP2    float64 // radiusP^2
	radiusPInv2 float64 // 1 / radiusP^2
	flip        bool    // sweep == "x"
}

func (p Projection) terms() geosTerms {
	t := geosTerms{
		radiusG1: p.Height / p.SemiMajor,
		radiusP:  p.SemiMinor / p.SemiMajor,
		flip:     p.Sweep == SweepX,
	}
	t.radiusG = 1 + t.radiusG1
	t.c = t.radiusG*t.radiusG - 1
	t.radiusP2 = t.radiusP * t.radiusP
	t.radiusPInv2 = 1 / t.radiusP2
	return t
}

// Forward maps a geodetic point (degrees) to projection-plane
// coordinates in meters. Points not visible from the satellite yield
// the fill sentinel for both outputs; no error is returned for
// out-of-disc queries.
func (p Projection) Forward(lon, lat float64) (x, y float64) {
	t := p.terms()

	lam := normalizeLonRad((lon - p.OriginLon) * math.Pi / 180)
	phi := math.Atan(t.radiusP2 * math.Tan(lat*math.Pi/180))

	// View vector from the earth center to the surface point, in
	// semi-major axis units.
	r := t.radiusP / math.Hypot(t.radiusP*math.Cos(phi), math.Sin(phi))
	vx := r * math.Cos(lam) * math.Cos(phi)
	vy := r * math.Sin(lam) * math.Cos(phi)
	vz := r * math.Sin(phi)

	if (t.radiusG-vx)*vx-vy*vy-vz*vz*t.radiusPInv2 < 0 {
		return FillValue, FillValue
	}

	tmp := t.radiusG - vx
	var xn, yn float64
	if t.flip {
		xn = t.radiusG1 * math.Atan(vy/math.Hypot(vz, tmp))
		yn = t.radiusG1 * math.Atan(vz/tmp)
	} else {
		xn = t.radiusG1 * math.Atan(vy/tmp)
		yn = t.radiusG1 * math.Atan(vz/math.Hypot(vy, tmp))
	}

	return xn * p.SemiMajor, yn * p.SemiMajor
}

// Inverse maps projection-plane coordinates in meters back to a
// geodetic point in degrees. Coordinates whose line of sight misses
// the ellipsoid yield the fill sentinel for both outputs.
func (p Projection) Inverse(x, y float64) (lon, lat float64) {
	t := p.terms()

	xn := x / p.SemiMajor
	yn := y / p.SemiMajor

	// Components of the view vector from the satellite toward the
	// scanned direction.
	vx := -1.0
	var vy, vz float64
	if t.flip {
		vz = math.Tan(yn / t.radiusG1)
		vy = math.Tan(xn/t.radiusG1) * math.Hypot(1, vz)
	} else {
		vy = math.Tan(xn / t.radiusG1)
		vz = math.Tan(yn/t.radiusG1) * math.Hypot(1, vy)
	}

	// Intersection of the view ray with the ellipsoid reduces to a
	// quadratic; a negative determinant means the ray misses earth.
	a := vz / t.radiusP
	a = vy*vy + a*a + vx*vx
	b := 2 * t.radiusG * vx
	det := b*b - 4*a*t.c
	if det < 0 || math.IsNaN(det) {
		return FillValue, FillValue
	}

	k := (-b - math.Sqrt(det)) / (2 * a)
	vx = t.radiusG + k*vx
	vy *= k
	vz *= k

	lam := math.Atan2(vy, vx)
	phi := math.Atan(vz * math.Cos(lam) / vx)
	phi = math.Atan(t.radiusPInv2 * math.Tan(phi))

	lon = normalizeLonDeg(lam*180/math.Pi + p.OriginLon)
	lat = phi * 180 / math.Pi
	return lon, lat
}

// IsFill reports whether v is a fill sentinel or otherwise unusable as
// a coordinate. NaN and infinities count as fill so that grids from
// libraries that signal off-disc cells differently normalize alike.
func IsFill(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) >= fillThreshold
}

// NearestIndex returns the index of the coordinate in coords closest to
// v by absolute distance. Ties resolve to the first minimal index. NaN
// coordinates are skipped. The second return is false when v is not
// finite or when coords holds no finite entry; callers treat that as an
// off-disc query rather than an error.
func NearestIndex(coords []float64, v float64) (int, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) >= fillThreshold {
		return 0, false
	}

	best := -1
	bestDist := math.Inf(1)
	for i, c := range coords {
		if math.IsNaN(c) {
			continue
		}
		if d := math.Abs(c - v); d < bestDist {
			best = i
			bestDist = d
		}
	}
	if best < 0 {
		return 0, false
	}
	return best, true
}

var errEmptyAxis = errors.New("empty coordinate axis")

// normalizeLonRad wraps a longitude offset into (-pi, pi].
func normalizeLonRad(lam float64) float64 {
	for lam > math.Pi {
		lam -= 2 * math.Pi
	}
	for lam < -math.Pi {
		lam += 2 * math.Pi
	}
	return lam
}

// normalizeLonDeg wraps a longitude into (-180, 180].
func normalizeLonDeg(lon float64) float64 {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}
