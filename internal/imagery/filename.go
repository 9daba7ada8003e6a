package imagery

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// scanModeCutover is when GOES-16 switched full-disc operations from
// mode 3 (15-minute cadence) to mode 6 (10-minute cadence).
var scanModeCutover = time.Date(2019, 4, 2, 16, 0, 0, 0, time.UTC)

// FileMeta is the metadata encoded in a GOES ABI product filename,
// e.g. OR_ABI-L1b-RadF-M6C13_G16_s20171931811404_e20171931822182_c20171931822230.nc.
type FileMeta struct {
	Product   string    // e.g. "ABI-L1b-RadF"
	Mode      string    // scan mode, e.g. "M6"
	Band      int       // spectral band (channel), 1-16
	Satellite string    // e.g. "G16"
	Start     time.Time // scan start (s-token)
}

// ScanMode returns the full-disc scan mode in operation at t.
func ScanMode(t time.Time) string {
	if t.Before(scanModeCutover) {
		return "M3"
	}
	return "M6"
}

// DayOfYear returns the 1-based ordinal day of t's year.
func DayOfYear(t time.Time) int {
	return t.YearDay()
}

// ParseFilename decodes an ABI product filename. It accepts a bare
// name or a path.
func ParseFilename(name string) (FileMeta, error) {
	base := strings.TrimSuffix(filepath.Base(name), ".nc")

	parts := strings.Split(base, "_")
	if len(parts) < 4 || parts[0] != "OR" {
		return FileMeta{}, fmt.Errorf("unrecognized ABI filename %q", name)
	}

	// parts[1] is "<product>-M<mode>C<band>".
	dataset := parts[1]
	mIdx := strings.LastIndex(dataset, "-M")
	cIdx := strings.LastIndex(dataset, "C")
	if mIdx < 0 || cIdx < mIdx {
		return FileMeta{}, fmt.Errorf("missing mode/band in ABI filename %q", name)
	}

	band, err := strconv.Atoi(dataset[cIdx+1:])
	if err != nil {
		return FileMeta{}, fmt.Errorf("parsing band in %q: %w", name, err)
	}

	start, err := parseSceneTime(parts[3])
	if err != nil {
		return FileMeta{}, fmt.Errorf("parsing start time in %q: %w", name, err)
	}

	return FileMeta{
		Product:   dataset[:mIdx],
		Mode:      dataset[mIdx+1 : cIdx],
		Band:      band,
		Satellite: parts[2],
		Start:     start,
	}, nil
}

// parseSceneTime decodes an s/e/c token: a letter followed by
// YYYYJJJHHMMSSt (year, ordinal day, time, tenths of a second).
func parseSceneTime(tok string) (time.Time, error) {
	if len(tok) != 15 {
		return time.Time{}, fmt.Errorf("bad time token %q", tok)
	}

	digits := tok[1:]
	fields := make([]int, 5)
	for i, span := range [][2]int{{0, 4}, {4, 7}, {7, 9}, {9, 11}, {11, 13}} {
		v, err := strconv.Atoi(digits[span[0]:span[1]])
		if err != nil {
			return time.Time{}, fmt.Errorf("bad time token %q: %w", tok, err)
		}
		fields[i] = v
	}
	tenths, err := strconv.Atoi(digits[13:])
	if err != nil {
		return time.Time{}, fmt.Errorf("bad time token %q: %w", tok, err)
	}

	year, doy, hour, minute, sec := fields[0], fields[1], fields[2], fields[3], fields[4]
	t := time.Date(year, 1, 1, hour, minute, sec, tenths*1e8, time.UTC)
	return t.AddDate(0, 0, doy-1), nil
}

// FindScene locates the first scan of the given product and band
// within the hour of t in a local directory, mirroring the
// first-key-in-the-hour selection used when the archive is listed
// remotely.
func FindScene(dir string, t time.Time, product string, band int) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("reading scene directory: %w", err)
	}

	hour := t.UTC().Truncate(time.Hour)
	var bestPath string
	var bestStart time.Time

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		meta, err := ParseFilename(entry.Name())
		if err != nil {
			continue
		}
		if meta.Product != product || meta.Band != band {
			continue
		}
		if !meta.Start.UTC().Truncate(time.Hour).Equal(hour) {
			continue
		}
		if bestPath == "" || meta.Start.Before(bestStart) {
			bestPath = filepath.Join(dir, entry.Name())
			bestStart = meta.Start
		}
	}

	if bestPath == "" {
		return "", fmt.Errorf("no %s band %d scene for %s in %s: %w",
			product, band, hour.Format(time.RFC3339), dir, os.ErrNotExist)
	}
	return bestPath, nil
}
