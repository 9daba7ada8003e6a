// Package label turns storm-track fixes into presence intervals for
// training-label assignment. Track fixes arrive roughly every three
// hours while imagery arrives every few minutes; presence is assumed
// transitively true between two consecutive fixes of the same storm,
// so any image timestamp strictly between two fixes is labeled "storm
// present".
package label

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jdylanwhite/cyclone-labeler/internal/track"
)

// DefaultImageryCadence is the nominal full-disc scan interval of the
// imager.
const DefaultImageryCadence = 5 * time.Minute

// Interval is a storm-present span between two consecutive fixes of
// one storm.
type Interval struct {
	StormID string
	Name    string
	Start   time.Time
	End     time.Time
}

// Contains reports whether t is strictly between the interval's fixes.
// The fixes themselves are labeled by their own observations, not by
// the interval.
func (iv Interval) Contains(t time.Time) bool {
	return t.After(iv.Start) && t.Before(iv.End)
}

// Timeline is a set of presence intervals, ordered by start time.
type Timeline []Interval

// Intervals derives the presence timeline from track observations:
// one interval per consecutive pair of fixes of the same storm.
// Observations may arrive interleaved across storms; they are grouped
// and time-sorted per storm first.
func Intervals(obs []track.Observation) Timeline {
	byStorm := make(map[string][]track.Observation)
	var order []string
	for _, o := range obs {
		if _, ok := byStorm[o.StormID]; !ok {
			order = append(order, o.StormID)
		}
		byStorm[o.StormID] = append(byStorm[o.StormID], o)
	}

	var tl Timeline
	for _, sid := range order {
		fixes := byStorm[sid]
		sort.SliceStable(fixes, func(i, j int) bool {
			return fixes[i].Time.Before(fixes[j].Time)
		})

		for i := 1; i < len(fixes); i++ {
			if fixes[i].Time.Equal(fixes[i-1].Time) {
				continue
			}
			tl = append(tl, Interval{
				StormID: sid,
				Name:    fixes[i-1].Name,
				Start:   fixes[i-1].Time,
				End:     fixes[i].Time,
			})
		}
	}

	sort.SliceStable(tl, func(i, j int) bool {
		return tl[i].Start.Before(tl[j].Start)
	})
	return tl
}

// Covers reports whether any interval labels t as storm-present, and
// returns the first such interval.
func (tl Timeline) Covers(t time.Time) (Interval, bool) {
	for _, iv := range tl {
		if iv.Contains(t) {
			return iv, true
		}
	}
	return Interval{}, false
}

// Timestamps enumerates imagery-cadence timestamps labeled
// storm-present: every multiple of step strictly inside any interval,
// deduplicated and ascending. step defaults to the nominal imagery
// cadence when non-positive.
func (tl Timeline) Timestamps(step time.Duration) []time.Time {
	if step <= 0 {
		step = DefaultImageryCadence
	}

	seen := make(map[time.Time]struct{})
	var out []time.Time
	for _, iv := range tl {
		t := iv.Start.Truncate(step)
		if !t.After(iv.Start) {
			t = t.Add(step)
		}
		for ; t.Before(iv.End); t = t.Add(step) {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// WriteCSV writes the timeline as a flat table for downstream label
// joins.
func WriteCSV(w io.Writer, tl Timeline) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"SID", "NAME", "START", "END"}); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, iv := range tl {
		rec := []string{
			iv.StormID,
			iv.Name,
			iv.Start.UTC().Format(time.RFC3339),
			iv.End.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("writing interval: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
