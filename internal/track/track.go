// Package track loads, filters and exports IBTrACS storm-track
// observations. IBTrACS is the historical best-track archive of
// tropical cyclone positions; each observation is one fix of one storm
// at one timestamp.
package track

import "time"

// Nature codes used by IBTrACS to classify a fix. Training candidates
// are usually restricted to tropical systems.
const (
	NatureTropical      = "TS" // tropical system
	NatureExtratropical = "ET"
	NatureDisturbance   = "DS"
	NatureSubtropical   = "SS"
	NatureNotReported   = "NR"
)

// Observation is a single storm fix. StormID and Time identify it
// uniquely; optional fields are nil when the source row leaves them
// blank.
type Observation struct {
	StormID string    // IBTrACS serial identifier (SID)
	Season  int       // storm season (year)
	Number  int       // storm number within the season
	Name    string    // storm name, or "NOT_NAMED"
	Time    time.Time // fix time (UTC)
	Nature  string    // storm nature code
	Lat     float64   // degrees north
	Lon     float64   // degrees east

	WMOWind    *float64 // WMO-reported max sustained wind, kt
	WMOPres    *float64 // WMO-reported min central pressure, mb
	TrackType  string   // "main", "spur", ...
	Dist2Land  *float64 // distance to land, km
	Landfall   *float64 // minimum distance to land over next 6h, km
	IFlag      string   // interpolation flags
	StormSpeed *float64 // translation speed, kt
	StormDir   *float64 // translation direction, degrees
}

// Key identifies an observation by (storm, time).
type Key struct {
	StormID string
	Time    time.Time
}

// Key returns the uniqueness key of the observation.
func (o Observation) Key() Key {
	return Key{StormID: o.StormID, Time: o.Time}
}

// Timestamps returns the distinct fix times across obs in first-seen
// order. The source table is time-ordered, so the result is too.
func Timestamps(obs []Observation) []time.Time {
	seen := make(map[time.Time]struct{}, len(obs))
	var out []time.Time
	for _, o := range obs {
		if _, ok := seen[o.Time]; ok {
			continue
		}
		seen[o.Time] = struct{}{}
		out = append(out, o.Time)
	}
	return out
}

// At returns the observations fixed at exactly t, preserving order.
func At(obs []Observation, t time.Time) []Observation {
	var out []Observation
	for _, o := range obs {
		if o.Time.Equal(t) {
			out = append(out, o)
		}
	}
	return out
}
