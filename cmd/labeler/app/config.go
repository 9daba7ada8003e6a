package app

import (
	"errors"
	"flag"
	"fmt"

	"github.com/jdylanwhite/cyclone-labeler/internal/filter"
)

// Config holds the labeler settings. Everything is explicit: no
// working-directory mutation, no environment-derived paths.
type Config struct {
	IBTrACSPath   string // input track CSV
	ScenePath     string // GOES ABI NetCDF scene
	OutputFile    string // retained-candidate CSV
	GeoJSONFile   string // optional GeoJSON export of retained points
	IntervalsFile string // optional storm-present interval CSV
	DBPath        string // optional SQLite run database
	CheckSize     int    // visibility window half-width, pixels
	Season        int    // restrict to one season (0 = all)
	Nature        string // restrict to one nature code ("" = all)
	Verbose       bool
}

func NewConfig() *Config {
	return &Config{
		CheckSize: filter.DefaultCheckSize,
	}
}

func NewConfigFromCLI() (*Config, error) {
	c := NewConfig()

	flag.StringVar(&c.IBTrACSPath, "ibtracs", "", "Path to the IBTrACS CSV file")
	flag.StringVar(&c.ScenePath, "scene", "", "Path to the GOES ABI NetCDF scene")
	flag.StringVar(&c.OutputFile, "o", "", "Path to the output candidate CSV")
	flag.StringVar(&c.GeoJSONFile, "geojson", "", "Optional path for a GeoJSON export of retained candidates")
	flag.StringVar(&c.IntervalsFile, "intervals", "", "Optional path for the storm-present interval CSV")
	flag.StringVar(&c.DBPath, "db", "", "Optional path to the run database")
	flag.IntVar(&c.CheckSize, "check-size", filter.DefaultCheckSize, "Visibility window half-width in pixels")
	flag.IntVar(&c.Season, "season", 0, "Restrict to a single season (year), 0 for all")
	flag.StringVar(&c.Nature, "nature", "", "Restrict to a storm nature code (e.g. TS), empty for all")
	flag.BoolVar(&c.Verbose, "verbose", false, "Enable more verbose output")
	flag.Parse()

	var err error
	if c.IBTrACSPath == "" {
		err = errors.New("ibtracs path is required")
	} else if c.ScenePath == "" {
		err = errors.New("scene path is required")
	} else if c.OutputFile == "" {
		err = errors.New("output file is required")
	} else if c.CheckSize < 0 {
		err = fmt.Errorf("invalid check size: %d", c.CheckSize)
	}

	if err != nil {
		flag.Usage()
		return nil, err
	}
	return c, nil
}
