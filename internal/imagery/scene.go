// Package imagery loads GOES ABI level-1b scenes: the geostationary
// projection metadata, the scan-angle coordinate axes and the radiance
// grid, plus the filename conventions used to locate scenes on disk.
package imagery

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"

	"github.com/jdylanwhite/cyclone-labeler/internal/geo"
)

// projectionVar is the container variable carrying the
// goes_imager_projection attributes in ABI products.
const projectionVar = "goes_imager_projection"

// Scene is one loaded ABI full-disc product. X and Y hold
// projection-plane coordinates in meters (raw scan angle multiplied by
// the satellite height); Rad is the radiance grid with fill values
// normalized to NaN, shaped [len(Y), len(X)].
type Scene struct {
	Path      string
	Meta      FileMeta
	Proj      geo.Projection
	X, Y      []float64
	Rad       *sparse.DenseArray
	StartTime time.Time
}

// Open reads an ABI L1b NetCDF product. Missing or malformed
// projection metadata is fatal: nothing downstream can run without it.
func Open(path string) (s *Scene, err error) {
	ff, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening scene: %w", err)
	}
	defer func() {
		if cErr := ff.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	f, err := cdf.Open(ff)
	if err != nil {
		return nil, fmt.Errorf("reading NetCDF header: %w", err)
	}

	proj, err := readProjection(f)
	if err != nil {
		return nil, fmt.Errorf("reading projection metadata: %w", err)
	}

	x, err := readVector(f, "x")
	if err != nil {
		return nil, fmt.Errorf("reading x coordinates: %w", err)
	}
	y, err := readVector(f, "y")
	if err != nil {
		return nil, fmt.Errorf("reading y coordinates: %w", err)
	}

	// The stored coordinates are raw scan angles in radians; the
	// projection plane measures scan angle times satellite height.
	for i := range x {
		x[i] *= proj.Height
	}
	for i := range y {
		y[i] *= proj.Height
	}

	rad, err := readGrid(f, "Rad", len(y), len(x))
	if err != nil {
		return nil, fmt.Errorf("reading radiance: %w", err)
	}

	s = &Scene{
		Path: path,
		Proj: proj,
		X:    x,
		Y:    y,
		Rad:  rad,
	}

	if meta, err := ParseFilename(path); err == nil {
		s.Meta = meta
		s.StartTime = meta.Start
	}
	return s, nil
}

// Grid inverse-projects the scene's coordinate mesh into geographic
// grids with off-disc cells normalized to NaN.
func (s *Scene) Grid() (*geo.Grid, error) {
	return geo.NewGrid(s.Proj, s.X, s.Y)
}

// ResolutionMeters returns the projection-plane size of one pixel.
func (s *Scene) ResolutionMeters() float64 {
	if len(s.X) < 2 {
		return 0
	}
	return math.Abs(s.X[1] - s.X[0])
}

func readProjection(f *cdf.File) (geo.Projection, error) {
	height, err := attrFloat(f, projectionVar, "perspective_point_height")
	if err != nil {
		return geo.Projection{}, err
	}
	origin, err := attrFloat(f, projectionVar, "longitude_of_projection_origin")
	if err != nil {
		return geo.Projection{}, err
	}
	sweep, err := attrString(f, projectionVar, "sweep_angle_axis")
	if err != nil {
		return geo.Projection{}, err
	}
	major, err := attrFloat(f, projectionVar, "semi_major_axis")
	if err != nil {
		return geo.Projection{}, err
	}
	minor, err := attrFloat(f, projectionVar, "semi_minor_axis")
	if err != nil {
		return geo.Projection{}, err
	}

	p := geo.Projection{
		Height:    height,
		OriginLon: origin,
		Sweep:     sweep,
		SemiMajor: major,
		SemiMinor: minor,
	}
	if err := p.Validate(); err != nil {
		return geo.Projection{}, err
	}
	return p, nil
}

// readVector reads a 1-D variable, applying CF scale_factor and
// add_offset packing when present.
func readVector(f *cdf.File, name string) ([]float64, error) {
	vals, err := readAll(f, name)
	if err != nil {
		return nil, err
	}
	applyPacking(f, name, vals)
	return vals, nil
}

// readGrid reads a 2-D variable into a dense array of the expected
// shape, unpacking and mapping the declared fill value to NaN.
func readGrid(f *cdf.File, name string, ny, nx int) (*sparse.DenseArray, error) {
	dims := f.Header.Lengths(name)
	if len(dims) != 2 || dims[0] != ny || dims[1] != nx {
		return nil, fmt.Errorf("variable %s has shape %v, want [%d %d]", name, dims, ny, nx)
	}

	vals, err := readAll(f, name)
	if err != nil {
		return nil, err
	}

	// Fill comparison happens against the packed values, before
	// scale/offset are applied.
	if fill, ok := attrFloatOptional(f, name, "_FillValue"); ok {
		for i, v := range vals {
			if v == fill {
				vals[i] = math.NaN()
			}
		}
	}
	applyPacking(f, name, vals)

	arr := sparse.ZerosDense(ny, nx)
	copy(arr.Elements, vals)
	return arr, nil
}

func readAll(f *cdf.File, name string) ([]float64, error) {
	found := false
	for _, v := range f.Header.Variables() {
		if v == name {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("variable %s not present", name)
	}

	r := f.Reader(name, nil, nil)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("reading variable %s: %w", name, err)
	}

	vals, err := toFloat64s(buf)
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", name, err)
	}
	return vals, nil
}

// applyPacking applies CF scale_factor/add_offset in place. NaN cells
// stay NaN.
func applyPacking(f *cdf.File, name string, vals []float64) {
	scale, hasScale := attrFloatOptional(f, name, "scale_factor")
	offset, hasOffset := attrFloatOptional(f, name, "add_offset")
	if !hasScale && !hasOffset {
		return
	}
	if !hasScale {
		scale = 1
	}

	for i, v := range vals {
		vals[i] = v*scale + offset
	}
}

// toFloat64s widens any numeric NetCDF payload to float64.
func toFloat64s(buf any) ([]float64, error) {
	switch vals := buf.(type) {
	case []float64:
		return vals, nil
	case []float32:
		out := make([]float64, len(vals))
		for i, v := range vals {
			out[i] = float64(v)
		}
		return out, nil
	case []int32:
		out := make([]float64, len(vals))
		for i, v := range vals {
			out[i] = float64(v)
		}
		return out, nil
	case []int16:
		out := make([]float64, len(vals))
		for i, v := range vals {
			out[i] = float64(v)
		}
		return out, nil
	case []int8:
		out := make([]float64, len(vals))
		for i, v := range vals {
			out[i] = float64(v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported payload type %T", buf)
	}
}

func attrFloat(f *cdf.File, varName, attr string) (float64, error) {
	v, ok := attrFloatOptional(f, varName, attr)
	if !ok {
		return 0, fmt.Errorf("attribute %s:%s missing or non-numeric", varName, attr)
	}
	return v, nil
}

func attrFloatOptional(f *cdf.File, varName, attr string) (float64, bool) {
	raw := f.Header.GetAttribute(varName, attr)
	if raw == nil {
		return 0, false
	}
	vals, err := toFloat64s(raw)
	if err != nil || len(vals) == 0 {
		return 0, false
	}
	return vals[0], true
}

func attrString(f *cdf.File, varName, attr string) (string, error) {
	raw := f.Header.GetAttribute(varName, attr)
	if raw == nil {
		return "", fmt.Errorf("attribute %s:%s missing", varName, attr)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("attribute %s:%s is %T, want string", varName, attr, raw)
	}
	return s, nil
}
