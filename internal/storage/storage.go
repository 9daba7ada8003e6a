// Package storage persists labeling runs to SQLite: which track
// observations were retained or rejected against which scene, and
// which training-image samples were cut. One database accumulates
// many runs so that candidate lists can be rebuilt and audited.
package storage

import "context"

// Store provides persistence for labeling runs. All write operations
// are atomic; batch writes happen in a single transaction.
type Store interface {
	// CreateRun records a new pipeline invocation and returns its ID.
	// config may be a string, []byte, or any JSON-serializable value.
	CreateRun(ctx context.Context, tool, scene string, config any) (runID int64, err error)

	// Run returns a run by ID.
	Run(ctx context.Context, id int64) (*RunData, error)

	// Runs returns all recorded runs ordered by start time.
	Runs(ctx context.Context) ([]RunData, error)

	// StoreObservations saves the per-observation filter outcome of a
	// run in one transaction.
	StoreObservations(ctx context.Context, runID int64, recs []ObservationRecord) error

	// Observations returns a run's observation records, oldest first.
	Observations(ctx context.Context, runID int64, opts ...ObservationQuery) ([]ObservationRecord, error)

	// StoreSamples saves generated training-image records in one
	// transaction.
	StoreSamples(ctx context.Context, runID int64, recs []SampleRecord) error

	// Samples returns a run's sample records, oldest first.
	Samples(ctx context.Context, runID int64, opts ...SampleQuery) ([]SampleRecord, error)

	// Close releases the database connections. It is safe to call
	// multiple times.
	Close() error
}

// ObservationQuery narrows Observations results.
type ObservationQuery func(*obsQuery)

type obsQuery struct {
	retainedOnly bool
}

// RetainedOnly limits results to observations that survived filtering.
func RetainedOnly() ObservationQuery {
	return func(q *obsQuery) {
		q.retainedOnly = true
	}
}

// SampleQuery narrows Samples results.
type SampleQuery func(*sampleQuery)

type sampleQuery struct {
	kind *SampleKind
}

// OfKind limits results to one sample kind.
func OfKind(kind SampleKind) SampleQuery {
	return func(q *sampleQuery) {
		q.kind = &kind
	}
}
