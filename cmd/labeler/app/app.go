package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jdylanwhite/cyclone-labeler/internal/filter"
	"github.com/jdylanwhite/cyclone-labeler/internal/imagery"
	"github.com/jdylanwhite/cyclone-labeler/internal/label"
	"github.com/jdylanwhite/cyclone-labeler/internal/storage"
	"github.com/jdylanwhite/cyclone-labeler/internal/track"
)

// Run executes one labeling pass: load tracks, load the scene, filter
// observations to the visible disc, and write the retained candidates.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	started := time.Now()

	obs, err := loadTracks(config)
	if err != nil {
		return err
	}
	logger.Info("loaded track observations",
		slog.String("source", config.IBTrACSPath),
		slog.String("rows", humanize.Comma(int64(len(obs)))))

	scene, err := imagery.Open(config.ScenePath)
	if err != nil {
		return fmt.Errorf("loading scene: %w", err)
	}
	logger.Debug("loaded scene",
		slog.String("path", scene.Path),
		slog.Int("nx", len(scene.X)),
		slog.Int("ny", len(scene.Y)),
		slog.Float64("originLon", scene.Proj.OriginLon))

	grid, err := scene.Grid()
	if err != nil {
		return fmt.Errorf("projecting scene grid: %w", err)
	}

	f, err := filter.New(scene.Proj, grid, filter.WithCheckSize(config.CheckSize))
	if err != nil {
		return fmt.Errorf("building filter: %w", err)
	}

	bounds := f.Bounds()
	logger.Debug("computed scene bounds",
		slog.Group("bounds",
			slog.Float64("minLat", bounds.MinLat),
			slog.Float64("maxLat", bounds.MaxLat),
			slog.Float64("minLon", bounds.MinLon),
			slog.Float64("maxLon", bounds.MaxLon)))

	kept := f.Apply(obs)
	logger.Info("filtered observations",
		slog.Group("stats",
			slog.String("input", humanize.Comma(int64(len(obs)))),
			slog.String("retained", humanize.Comma(int64(len(kept)))),
			slog.String("rejected", humanize.Comma(int64(len(obs)-len(kept))))))

	if err = writeCandidates(config.OutputFile, kept); err != nil {
		return err
	}
	logger.Info("wrote candidate table", slog.String("destination", config.OutputFile))

	if config.GeoJSONFile != "" {
		if err = writeGeoJSON(config.GeoJSONFile, kept); err != nil {
			return err
		}
		logger.Info("wrote GeoJSON export", slog.String("destination", config.GeoJSONFile))
	}

	if config.IntervalsFile != "" {
		tl := label.Intervals(kept)
		if err = writeIntervals(config.IntervalsFile, tl); err != nil {
			return err
		}
		logger.Info("wrote storm-present intervals",
			slog.String("destination", config.IntervalsFile),
			slog.Int("intervals", len(tl)))
	}

	if config.DBPath != "" {
		if err = recordRun(ctx, config, f, obs, kept); err != nil {
			return err
		}
		logger.Info("recorded run", slog.String("db", config.DBPath))
	}

	logger.Info("done", slog.Duration("elapsed", time.Since(started)))
	return nil
}

func loadTracks(config *Config) ([]track.Observation, error) {
	in, err := os.Open(config.IBTrACSPath)
	if err != nil {
		return nil, fmt.Errorf("opening track file: %w", err)
	}
	defer in.Close()

	var opts []track.ReadOption
	if config.Season != 0 {
		opts = append(opts, track.WithSeasonRange(config.Season, config.Season))
	}
	if config.Nature != "" {
		opts = append(opts, track.WithNature(config.Nature))
	}

	obs, err := track.ReadCSV(in, opts...)
	if err != nil {
		return nil, fmt.Errorf("reading track file: %w", err)
	}
	return obs, nil
}

func writeCandidates(path string, obs []track.Observation) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer func() {
		if cErr := out.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	if err = track.WriteCSV(out, obs); err != nil {
		return fmt.Errorf("writing candidates: %w", err)
	}
	return
}

func writeGeoJSON(path string, obs []track.Observation) error {
	raw, err := json.Marshal(track.FeatureCollection(obs))
	if err != nil {
		return fmt.Errorf("encoding GeoJSON: %w", err)
	}
	if err = os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("writing GeoJSON: %w", err)
	}
	return nil
}

func writeIntervals(path string, tl label.Timeline) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating interval file: %w", err)
	}
	defer func() {
		if cErr := out.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	if err = label.WriteCSV(out, tl); err != nil {
		return fmt.Errorf("writing intervals: %w", err)
	}
	return
}

// recordRun persists the filter outcome of every input observation,
// retained or not, so a run can be audited later.
func recordRun(ctx context.Context, config *Config, f *filter.Filter, obs, kept []track.Observation) (err error) {
	store := storage.NewSqliteStore(config.DBPath)
	defer func() {
		if cErr := store.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	runID, err := store.CreateRun(ctx, "labeler", config.ScenePath, config)
	if err != nil {
		return fmt.Errorf("creating run: %w", err)
	}

	retained := make(map[track.Key]struct{}, len(kept))
	for _, o := range kept {
		retained[o.Key()] = struct{}{}
	}

	recs := make([]storage.ObservationRecord, 0, len(obs))
	for _, o := range obs {
		rec := storage.ObservationRecord{
			StormID: o.StormID,
			Name:    o.Name,
			Nature:  o.Nature,
			Time:    o.Time,
			Lat:     o.Lat,
			Lon:     o.Lon,
		}
		if col, row, ok := f.Locate(o.Lat, o.Lon); ok {
			rec.XIndex = &col
			rec.YIndex = &row
		}
		_, rec.Retained = retained[o.Key()]
		recs = append(recs, rec)
	}

	if err = store.StoreObservations(ctx, runID, recs); err != nil {
		return fmt.Errorf("storing observations: %w", err)
	}
	return
}
