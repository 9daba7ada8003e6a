package track

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

const sampleCSV = `SID,SEASON,NUMBER,NAME,ISO_TIME,NATURE,LAT,LON,WMO_WIND,WMO_PRES,TRACK_TYPE,DIST2LAND,LANDFALL,IFLAG,STORM_SPEED,STORM_DIR
,Year,,,,,degrees_north,degrees_east,kts,mb,,km,km,,kts,degrees
2017228N14314,2017,69,HARVEY,2017-08-17 12:00:00,TS,13.8,-45.1,30,1008,main,1356,1356,O_____________,20,270
2017228N14314,2017,69,HARVEY,2017-08-17 15:00:00,TS,13.9,-46.0,,,main,1300,1300,P_____________,19,271
2017260N12310,2017,84,MARIA,2017-09-16 12:00:00,TS,12.2,-49.9,35,1006,main,1050,1050,O_____________,9,285
2016273N13300,2016,52,MATTHEW,2016-09-28 12:00:00,ET,13.4,-59.2,50,1008,main,250,250,O_____________,15,270
badrow,2017,0,NONSENSE,not-a-time,TS,1.0,2.0,,,main,,,O,,
`

func TestReadCSV(t *testing.T) {
	obs, err := ReadCSV(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}

	// Units row and the unparsable row are dropped.
	if len(obs) != 4 {
		t.Fatalf("got %d observations, want 4", len(obs))
	}

	first := obs[0]
	if first.StormID != "2017228N14314" || first.Name != "HARVEY" {
		t.Errorf("unexpected first observation: %+v", first)
	}
	if first.Season != 2017 || first.Number != 69 {
		t.Errorf("season/number = %d/%d, want 2017/69", first.Season, first.Number)
	}
	want := time.Date(2017, 8, 17, 12, 0, 0, 0, time.UTC)
	if !first.Time.Equal(want) {
		t.Errorf("time = %v, want %v", first.Time, want)
	}
	if first.Lat != 13.8 || first.Lon != -45.1 {
		t.Errorf("position = (%v, %v), want (13.8, -45.1)", first.Lat, first.Lon)
	}
	if first.WMOWind == nil || *first.WMOWind != 30 {
		t.Errorf("WMOWind = %v, want 30", first.WMOWind)
	}

	// Blank numeric fields come back nil.
	second := obs[1]
	if second.WMOWind != nil || second.WMOPres != nil {
		t.Errorf("blank WMO fields must be nil, got %v / %v", second.WMOWind, second.WMOPres)
	}
}

func TestReadCSVOptions(t *testing.T) {
	tests := []struct {
		name string
		opts []ReadOption
		want int
	}{
		{"season range", []ReadOption{WithSeasonRange(2017, 2017)}, 3},
		{"nature", []ReadOption{WithNature(NatureTropical)}, 3},
		{"season and nature", []ReadOption{WithSeasonRange(2016, 2016), WithNature(NatureTropical)}, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			obs, err := ReadCSV(strings.NewReader(sampleCSV), tc.opts...)
			if err != nil {
				t.Fatalf("ReadCSV: %v", err)
			}
			if len(obs) != tc.want {
				t.Errorf("got %d observations, want %d", len(obs), tc.want)
			}
		})
	}
}

func TestReadCSVMissingColumn(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("SID,SEASON\nx,2017\n"))
	if err == nil {
		t.Fatal("expected error for missing required columns")
	}
}

func TestWriteCSVRoundTrip(t *testing.T) {
	obs, err := ReadCSV(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, obs); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	again, err := ReadCSV(&buf)
	if err != nil {
		t.Fatalf("re-reading written CSV: %v", err)
	}
	if len(again) != len(obs) {
		t.Fatalf("round trip count = %d, want %d", len(again), len(obs))
	}
	for i := range obs {
		if again[i].Key() != obs[i].Key() {
			t.Errorf("row %d key changed: %+v vs %+v", i, again[i].Key(), obs[i].Key())
		}
		if again[i].Lat != obs[i].Lat || again[i].Lon != obs[i].Lon {
			t.Errorf("row %d position changed", i)
		}
	}
}

func TestTimestampsAndAt(t *testing.T) {
	obs, err := ReadCSV(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}

	stamps := Timestamps(obs)
	if len(stamps) != 4 {
		t.Fatalf("got %d distinct timestamps, want 4", len(stamps))
	}

	// HARVEY and MARIA share 12Z on different days; each timestamp maps
	// to its own fixes.
	at := At(obs, time.Date(2017, 9, 16, 12, 0, 0, 0, time.UTC))
	if len(at) != 1 || at[0].Name != "MARIA" {
		t.Errorf("At(12Z Sep 16) = %+v, want single MARIA fix", at)
	}
}

func TestFeatureCollection(t *testing.T) {
	obs, err := ReadCSV(strings.NewReader(sampleCSV), WithNature(NatureTropical))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}

	fc := FeatureCollection(obs)
	if len(fc.Features) != len(obs) {
		t.Fatalf("got %d features, want %d", len(fc.Features), len(obs))
	}

	raw, err := json.Marshal(fc)
	if err != nil {
		t.Fatalf("marshaling feature collection: %v", err)
	}

	var decoded struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decoding feature collection: %v", err)
	}

	if decoded.Type != "FeatureCollection" {
		t.Errorf("type = %q, want FeatureCollection", decoded.Type)
	}
	got := decoded.Features[0]
	// GeoJSON orders coordinates (lon, lat).
	if got.Geometry.Coordinates[0] != obs[0].Lon || got.Geometry.Coordinates[1] != obs[0].Lat {
		t.Errorf("coordinates = %v, want (%v, %v)", got.Geometry.Coordinates, obs[0].Lon, obs[0].Lat)
	}
	if got.Properties["sid"] != obs[0].StormID {
		t.Errorf("sid property = %v, want %v", got.Properties["sid"], obs[0].StormID)
	}
}
