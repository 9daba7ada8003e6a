package app

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
settings:
  logLevel: debug
tracks:
  path: ibtracs.csv
imagery:
  sceneDir: ./scenes
output:
  directory: ./crops
`)

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if config.Settings.Level() != slog.LevelDebug {
		t.Errorf("Level() = %v, want debug", config.Settings.Level())
	}
	if config.Imagery.Product != defaultProduct {
		t.Errorf("Product = %q, want %q", config.Imagery.Product, defaultProduct)
	}
	if config.Imagery.Band != defaultBand {
		t.Errorf("Band = %d, want %d", config.Imagery.Band, defaultBand)
	}
	if config.Output.Buffer != defaultBuffer {
		t.Errorf("Buffer = %d, want %d", config.Output.Buffer, defaultBuffer)
	}
	if Theme(config.Output.Theme) != ThemeGrayscale {
		t.Errorf("Theme = %q, want %q", config.Output.Theme, ThemeGrayscale)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			"missing tracks path",
			"imagery:\n  sceneDir: ./scenes\noutput:\n  directory: ./crops\n",
		},
		{
			"missing scene directory",
			"tracks:\n  path: a.csv\noutput:\n  directory: ./crops\n",
		},
		{
			"invalid band",
			"tracks:\n  path: a.csv\nimagery:\n  sceneDir: ./s\n  band: 17\noutput:\n  directory: ./crops\n",
		},
		{
			"invalid buffer",
			"tracks:\n  path: a.csv\nimagery:\n  sceneDir: ./s\noutput:\n  directory: ./crops\n  buffer: -1\n",
		},
		{
			"unknown theme",
			"tracks:\n  path: a.csv\nimagery:\n  sceneDir: ./s\noutput:\n  directory: ./crops\n  theme: sepia\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tt.body)); err == nil {
				t.Error("LoadConfig accepted invalid configuration")
			}
		})
	}
}

func TestSettingsLevelFallback(t *testing.T) {
	if (Settings{}).Level() != slog.LevelInfo {
		t.Error("empty log level must default to info")
	}
	if (Settings{LogLevel: "nonsense"}).Level() != slog.LevelInfo {
		t.Error("unparsable log level must default to info")
	}
}

func TestFreeMaskBlocking(t *testing.T) {
	m := newFreeMask(100, 100)

	if !m.available(50, 50) {
		t.Fatal("fresh mask must be free everywhere")
	}

	m.block(50, 50, 10)

	if m.available(50, 50) {
		t.Error("blocked center must not be available")
	}
	if m.available(40, 60) {
		t.Error("blocked window corner must not be available")
	}
	if !m.available(39, 50) {
		t.Error("cell one past the blocked window must stay free")
	}

	// Blocking near an edge clamps instead of wrapping.
	m.block(0, 0, 10)
	if !m.available(99, 99) {
		t.Error("edge blocking must not wrap to the far corner")
	}
}
