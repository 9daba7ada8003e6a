package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jdylanwhite/cyclone-labeler/internal/filter"
)

const (
	// defaultBuffer is the crop half-width in pixels. It matches the
	// figure size the original labeling notebooks exported (1.5 inch
	// at 166 dpi).
	defaultBuffer = 249

	defaultProduct = "ABI-L1b-RadF"
	defaultBand    = 13
)

// Config represents the main application configuration
type Config struct {
	Settings Settings      `yaml:"settings"`
	Tracks   TracksConfig  `yaml:"tracks"`
	Imagery  ImageryConfig `yaml:"imagery"`
	Output   OutputConfig  `yaml:"output"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
	Seed     int64  `yaml:"seed"`
}

// Level parses the configured log level, defaulting to info.
func (s Settings) Level() slog.Level {
	var level slog.Level
	if s.LogLevel == "" {
		return slog.LevelInfo
	}
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// TracksConfig selects the storm observations to sample from.
type TracksConfig struct {
	Path   string `yaml:"path"`
	Season int    `yaml:"season"`
	Nature string `yaml:"nature"`
}

// ImageryConfig locates scenes and controls the visibility filter.
type ImageryConfig struct {
	SceneDir  string `yaml:"sceneDir"`
	Product   string `yaml:"product"`
	Band      int    `yaml:"band"`
	CheckSize int    `yaml:"checkSize"`
}

// OutputConfig controls where and how crops are written.
type OutputConfig struct {
	Directory string `yaml:"directory"`
	Buffer    int    `yaml:"buffer"`
	Theme     string `yaml:"theme"`
	DBPath    string `yaml:"dbPath"`
}

// LoadConfig reads and validates a YAML configuration file, filling in
// defaults for omitted fields.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}

	config := &Config{
		Imagery: ImageryConfig{
			Product:   defaultProduct,
			Band:      defaultBand,
			CheckSize: filter.DefaultCheckSize,
		},
		Output: OutputConfig{
			Buffer: defaultBuffer,
			Theme:  string(ThemeGrayscale),
		},
	}
	if err = yaml.Unmarshal(raw, config); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err = config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	var err error
	switch {
	case c.Tracks.Path == "":
		err = errors.New("tracks path is required")
	case c.Imagery.SceneDir == "":
		err = errors.New("imagery scene directory is required")
	case c.Imagery.Band < 1 || c.Imagery.Band > 16:
		err = fmt.Errorf("invalid band: %d", c.Imagery.Band)
	case c.Imagery.CheckSize < 0:
		err = fmt.Errorf("invalid check size: %d", c.Imagery.CheckSize)
	case c.Output.Directory == "":
		err = errors.New("output directory is required")
	case c.Output.Buffer <= 0:
		err = fmt.Errorf("invalid crop buffer: %d", c.Output.Buffer)
	default:
		_, err = themeFunc(Theme(c.Output.Theme))
	}
	return err
}
