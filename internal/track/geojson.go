package track

import (
	"time"

	geojson "github.com/paulmach/go.geojson"
)

// FeatureCollection converts observations to a GeoJSON point feature
// collection for map inspection of retained candidates.
func FeatureCollection(obs []Observation) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, o := range obs {
		f := geojson.NewPointFeature([]float64{o.Lon, o.Lat})
		f.SetProperty("sid", o.StormID)
		f.SetProperty("name", o.Name)
		f.SetProperty("nature", o.Nature)
		f.SetProperty("time", o.Time.UTC().Format(time.RFC3339))
		if o.WMOWind != nil {
			f.SetProperty("wmo_wind", *o.WMOWind)
		}
		if o.WMOPres != nil {
			f.SetProperty("wmo_pres", *o.WMOPres)
		}
		fc.AddFeature(f)
	}

	return fc
}
