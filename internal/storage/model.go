package storage

import "time"

// SampleKind labels a training crop as containing a storm or not.
type SampleKind string

const (
	SamplePositive SampleKind = "positive"
	SampleNegative SampleKind = "negative"
)

// RunData is one recorded pipeline invocation.
type RunData struct {
	ID        int64
	StartedAt time.Time
	Tool      string  // "labeler" or "sampler"
	Scene     string  // scene path or directory the run processed
	Config    *string // JSON-encoded configuration, if provided
}

// ObservationRecord is the filter outcome for one track observation.
// XIndex/YIndex are nil when the observation never located to a pixel
// (off-disc before the nearest-index search succeeded).
type ObservationRecord struct {
	ID       int64
	StormID  string
	Name     string
	Nature   string
	Time     time.Time
	Lat      float64
	Lon      float64
	XIndex   *int
	YIndex   *int
	Retained bool
}

// SampleRecord is one generated training-image crop.
type SampleRecord struct {
	ID      int64
	Time    time.Time
	Kind    SampleKind
	StormID string // empty for negative samples
	XIndex  int
	YIndex  int
	Buffer  int // crop half-width in pixels
	Path    string
}
