package track

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// timeLayout is the ISO_TIME format used by IBTrACS v04 CSV files.
const timeLayout = "2006-01-02 15:04:05"

// columns is the output column order, matching the subset of IBTrACS
// columns this pipeline consumes.
var columns = []string{
	"SID", "SEASON", "NUMBER", "NAME", "ISO_TIME", "NATURE", "LAT", "LON",
	"WMO_WIND", "WMO_PRES", "TRACK_TYPE", "DIST2LAND", "LANDFALL", "IFLAG",
	"STORM_SPEED", "STORM_DIR",
}

// ReadOption narrows the set of observations returned by ReadCSV.
type ReadOption func(*readFilter)

type readFilter struct {
	seasonStart, seasonEnd *int
	nature                 *string
}

// WithSeasonRange keeps observations whose SEASON falls in
// [start, end] inclusive.
func WithSeasonRange(start, end int) ReadOption {
	return func(f *readFilter) {
		f.seasonStart = &start
		f.seasonEnd = &end
	}
}

// WithNature keeps observations with the given NATURE code.
func WithNature(nature string) ReadOption {
	return func(f *readFilter) {
		f.nature = &nature
	}
}

func (f *readFilter) keep(o Observation) bool {
	if f.seasonStart != nil && (o.Season < *f.seasonStart || o.Season > *f.seasonEnd) {
		return false
	}
	if f.nature != nil && o.Nature != *f.nature {
		return false
	}
	return true
}

// ReadCSV parses IBTrACS v04 CSV records. The header row drives column
// lookup; the units row that follows it is detected and skipped. Rows
// missing a storm identifier, a parsable fix time or a position are
// dropped rather than failing the read, since IBTrACS carries partial
// historical records.
func ReadCSV(r io.Reader, opts ...ReadOption) ([]Observation, error) {
	var filter readFilter
	for _, opt := range opts {
		opt(&filter)
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"SID", "ISO_TIME", "LAT", "LON"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("missing required column %s", required)
		}
	}

	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var obs []Observation
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading record: %w", err)
		}

		ts, err := time.ParseInLocation(timeLayout, field(rec, "ISO_TIME"), time.UTC)
		if err != nil {
			// The row after the header holds units ("degrees_north",
			// ...) in IBTrACS files; any row without a parsable fix
			// time is skipped the same way.
			continue
		}

		lat, latErr := strconv.ParseFloat(field(rec, "LAT"), 64)
		lon, lonErr := strconv.ParseFloat(field(rec, "LON"), 64)
		sid := field(rec, "SID")
		if latErr != nil || lonErr != nil || sid == "" {
			continue
		}

		o := Observation{
			StormID:    sid,
			Season:     atoiOrZero(field(rec, "SEASON")),
			Number:     atoiOrZero(field(rec, "NUMBER")),
			Name:       field(rec, "NAME"),
			Time:       ts,
			Nature:     field(rec, "NATURE"),
			Lat:        lat,
			Lon:        lon,
			WMOWind:    parseOptionalFloat(field(rec, "WMO_WIND")),
			WMOPres:    parseOptionalFloat(field(rec, "WMO_PRES")),
			TrackType:  field(rec, "TRACK_TYPE"),
			Dist2Land:  parseOptionalFloat(field(rec, "DIST2LAND")),
			Landfall:   parseOptionalFloat(field(rec, "LANDFALL")),
			IFlag:      field(rec, "IFLAG"),
			StormSpeed: parseOptionalFloat(field(rec, "STORM_SPEED")),
			StormDir:   parseOptionalFloat(field(rec, "STORM_DIR")),
		}

		if filter.keep(o) {
			obs = append(obs, o)
		}
	}

	return obs, nil
}

// WriteCSV writes observations as a flat delimited table with the same
// columns the reader consumes, one row per observation.
func WriteCSV(w io.Writer, obs []Observation) (err error) {
	cw := csv.NewWriter(w)

	if err = cw.Write(columns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, o := range obs {
		rec := []string{
			o.StormID,
			strconv.Itoa(o.Season),
			strconv.Itoa(o.Number),
			o.Name,
			o.Time.UTC().Format(timeLayout),
			o.Nature,
			formatFloat(o.Lat),
			formatFloat(o.Lon),
			formatOptionalFloat(o.WMOWind),
			formatOptionalFloat(o.WMOPres),
			o.TrackType,
			formatOptionalFloat(o.Dist2Land),
			formatOptionalFloat(o.Landfall),
			o.IFlag,
			formatOptionalFloat(o.StormSpeed),
			formatOptionalFloat(o.StormDir),
		}
		if err = cw.Write(rec); err != nil {
			return fmt.Errorf("writing record: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func parseOptionalFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptionalFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
