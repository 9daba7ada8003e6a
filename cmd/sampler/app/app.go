package app

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jdylanwhite/cyclone-labeler/internal/filter"
	"github.com/jdylanwhite/cyclone-labeler/internal/imagery"
	"github.com/jdylanwhite/cyclone-labeler/internal/storage"
	"github.com/jdylanwhite/cyclone-labeler/internal/track"
)

// negativeAttemptFactor caps random draws for negative crops at this
// multiple of the positive count, so a mostly-blocked scene cannot
// spin forever.
const negativeAttemptFactor = 5

// Crop is one training-image window cut from a radiance grid.
type Crop struct {
	Data       [][]float64 // [rows][cols], NaN off-disc
	Time       time.Time
	Label      string
	Resolution float64 // meters per pixel
}

// Run walks the distinct track timestamps, cuts positive crops around
// every visible storm fix and draws matching negative crops from the
// storm-free remainder of each scene.
func Run(ctx context.Context, config *Config, logger *slog.Logger) (err error) {
	started := time.Now()

	obs, err := loadTracks(config)
	if err != nil {
		return err
	}
	logger.Info("loaded track observations",
		slog.String("source", config.Tracks.Path),
		slog.String("rows", humanize.Comma(int64(len(obs)))))

	renderer, err := NewRenderer(Theme(config.Output.Theme))
	if err != nil {
		return fmt.Errorf("creating renderer: %w", err)
	}

	if err = os.MkdirAll(config.Output.Directory, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	var store *storage.SqliteStore
	var runID int64
	if config.Output.DBPath != "" {
		store = storage.NewSqliteStore(config.Output.DBPath)
		defer func() {
			if cErr := store.Close(); cErr != nil && err == nil {
				err = cErr
			}
		}()

		if runID, err = store.CreateRun(ctx, "sampler", config.Imagery.SceneDir, config); err != nil {
			return fmt.Errorf("creating run: %w", err)
		}
	}

	rng := rand.New(rand.NewSource(config.Settings.Seed))

	var positives, negatives, missing int
	for _, ts := range track.Timestamps(obs) {
		if err = ctx.Err(); err != nil {
			return err
		}

		recs, err := sampleScene(config, renderer, rng, obs, ts, logger)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				missing++
				logger.Warn("no scene for timestamp", slog.Time("time", ts))
				continue
			}
			return err
		}

		for _, rec := range recs {
			switch rec.Kind {
			case storage.SamplePositive:
				positives++
			case storage.SampleNegative:
				negatives++
			}
		}

		if store != nil && len(recs) > 0 {
			if err = store.StoreSamples(ctx, runID, recs); err != nil {
				return fmt.Errorf("storing samples: %w", err)
			}
		}
	}

	logger.Info("done",
		slog.Group("stats",
			slog.Int("positives", positives),
			slog.Int("negatives", negatives),
			slog.Int("missingScenes", missing)),
		slog.Duration("elapsed", time.Since(started)))
	return nil
}

func loadTracks(config *Config) ([]track.Observation, error) {
	in, err := os.Open(config.Tracks.Path)
	if err != nil {
		return nil, fmt.Errorf("opening track file: %w", err)
	}
	defer in.Close()

	var opts []track.ReadOption
	if config.Tracks.Season != 0 {
		opts = append(opts, track.WithSeasonRange(config.Tracks.Season, config.Tracks.Season))
	}
	if config.Tracks.Nature != "" {
		opts = append(opts, track.WithNature(config.Tracks.Nature))
	}

	obs, err := track.ReadCSV(in, opts...)
	if err != nil {
		return nil, fmt.Errorf("reading track file: %w", err)
	}
	return obs, nil
}

// sampleScene cuts all crops for one timestamp from its scene.
func sampleScene(config *Config, renderer *Renderer, rng *rand.Rand, obs []track.Observation, ts time.Time, logger *slog.Logger) ([]storage.SampleRecord, error) {
	path, err := imagery.FindScene(config.Imagery.SceneDir, ts, config.Imagery.Product, config.Imagery.Band)
	if err != nil {
		return nil, err
	}

	scene, err := imagery.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loading scene %s: %w", path, err)
	}

	grid, err := scene.Grid()
	if err != nil {
		return nil, fmt.Errorf("projecting scene grid: %w", err)
	}

	f, err := filter.New(scene.Proj, grid, filter.WithCheckSize(config.Imagery.CheckSize))
	if err != nil {
		return nil, fmt.Errorf("building filter: %w", err)
	}

	buffer := config.Output.Buffer
	free := newFreeMask(len(scene.Y), len(scene.X))

	var recs []storage.SampleRecord
	for _, o := range f.Apply(track.At(obs, ts)) {
		col, row, ok := f.Locate(o.Lat, o.Lon)
		if !ok {
			continue
		}

		crop := cutCrop(scene, row, col, buffer)
		crop.Time = ts
		crop.Label = o.Name

		name := sampleName(ts, o.Name, storage.SamplePositive, len(recs))
		dest := filepath.Join(config.Output.Directory, name)
		if err = saveCrop(renderer, crop, dest); err != nil {
			logger.Warn("skipping crop", slog.String("storm", o.StormID), slog.Any("error", err))
			continue
		}

		free.block(row, col, 2*buffer)
		recs = append(recs, storage.SampleRecord{
			Time:    ts,
			Kind:    storage.SamplePositive,
			StormID: o.StormID,
			XIndex:  col,
			YIndex:  row,
			Buffer:  buffer,
			Path:    dest,
		})
	}

	want := len(recs)
	drawn := 0
	for attempt := 0; drawn < want && attempt < want*negativeAttemptFactor; attempt++ {
		row := rng.Intn(len(scene.Y))
		col := rng.Intn(len(scene.X))
		if !free.available(row, col) || grid.IsNaNAt(row, col) {
			continue
		}

		crop := cutCrop(scene, row, col, buffer)
		crop.Time = ts
		crop.Label = "no storm"

		name := sampleName(ts, "", storage.SampleNegative, drawn)
		dest := filepath.Join(config.Output.Directory, name)
		if err = saveCrop(renderer, crop, dest); err != nil {
			continue
		}

		free.block(row, col, 2*buffer)
		drawn++
		recs = append(recs, storage.SampleRecord{
			Time:   ts,
			Kind:   storage.SampleNegative,
			XIndex: col,
			YIndex: row,
			Buffer: buffer,
			Path:   dest,
		})
	}

	logger.Debug("sampled scene",
		slog.String("scene", path),
		slog.Int("positives", want),
		slog.Int("negatives", drawn))
	return recs, nil
}

// cutCrop copies the radiance window of half-width buffer around
// (row, col). The window is clamped at grid edges, so edge crops come
// out smaller than 2*buffer+1.
func cutCrop(scene *imagery.Scene, row, col, buffer int) *Crop {
	nrows := len(scene.Y)
	ncols := len(scene.X)

	r0 := max(row-buffer, 0)
	r1 := min(row+buffer, nrows-1)
	c0 := max(col-buffer, 0)
	c1 := min(col+buffer, ncols-1)

	data := make([][]float64, 0, r1-r0+1)
	for r := r0; r <= r1; r++ {
		line := make([]float64, 0, c1-c0+1)
		for c := c0; c <= c1; c++ {
			line = append(line, scene.Rad.Get(r, c))
		}
		data = append(data, line)
	}

	return &Crop{
		Data:       data,
		Resolution: scene.ResolutionMeters(),
	}
}

func saveCrop(renderer *Renderer, crop *Crop, dest string) (err error) {
	img, err := renderer.Render(crop)
	if err != nil {
		return err
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating image file: %w", err)
	}
	defer func() {
		if cErr := out.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	if err = png.Encode(out, img); err != nil {
		return fmt.Errorf("encoding image: %w", err)
	}
	return
}

func sampleName(ts time.Time, storm string, kind storage.SampleKind, n int) string {
	stamp := ts.Format("20060102T1504")
	if kind == storage.SamplePositive {
		storm = strings.ToLower(strings.ReplaceAll(storm, " ", "_"))
		if storm == "" {
			storm = "not_named"
		}
		return fmt.Sprintf("%s_%s_positive.png", stamp, storm)
	}
	return fmt.Sprintf("%s_negative_%02d.png", stamp, n)
}

// freeMask tracks which pixels may still anchor a negative crop.
// Blocking twice the crop half-width around every accepted crop keeps
// later crops from overlapping it.
type freeMask struct {
	blocked []bool
	rows    int
	cols    int
}

func newFreeMask(rows, cols int) *freeMask {
	return &freeMask{
		blocked: make([]bool, rows*cols),
		rows:    rows,
		cols:    cols,
	}
}

func (m *freeMask) available(row, col int) bool {
	return !m.blocked[row*m.cols+col]
}

func (m *freeMask) block(row, col, radius int) {
	r0 := max(row-radius, 0)
	r1 := min(row+radius, m.rows-1)
	c0 := max(col-radius, 0)
	c1 := min(col+radius, m.cols-1)

	for r := r0; r <= r1; r++ {
		for c := c0; c <= c1; c++ {
			m.blocked[r*m.cols+c] = true
		}
	}
}
