package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// SqliteStore implements Store on a local SQLite database. Connections
// open lazily: a WAL-mode writer for inserts and a separate read-only
// reader for queries.
type SqliteStore struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewSqliteStore creates a store backed by the database at dbPath.
// The schema is initialized on first write.
func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath}
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		if _, err = db.Exec(schemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	// The writer must exist first so that the schema exists before a
	// read-only connection touches the file.
	if _, err := s.getWriteDB(); err != nil {
		return nil, err
	}

	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

const insertRunSQL = `
INSERT INTO runs (started_at, tool, scene, config)
VALUES (CURRENT_TIMESTAMP, ?, ?, ?)`

// CreateRun records a new pipeline invocation and returns its ID.
func (s *SqliteStore) CreateRun(ctx context.Context, tool, scene string, config any) (runID int64, err error) {
	var configData sql.NullString

	if config != nil {
		switch c := config.(type) {
		case string:
			configData.Valid = true
			configData.String = c

		case []byte:
			configData.Valid = true
			configData.String = string(c)

		default:
			var p []byte
			if p, err = json.Marshal(config); err != nil {
				err = fmt.Errorf("marshaling config: %w", err)
				return
			}

			configData.Valid = true
			configData.String = string(p)
		}
	}

	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertRunSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.ExecContext(ctx, tool, scene, configData)
	if err != nil {
		err = fmt.Errorf("inserting run: %w", err)
		return
	}

	return result.LastInsertId()
}

const selectRunSQL = `
SELECT id, started_at, tool, scene, config
FROM runs
WHERE id = ?`

// Run returns a run by its ID.
func (s *SqliteStore) Run(ctx context.Context, id int64) (run *RunData, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	var r RunData
	var scene, config sql.NullString
	err = db.QueryRowContext(ctx, selectRunSQL, id).Scan(&r.ID, &r.StartedAt, &r.Tool, &scene, &config)
	if err != nil {
		err = fmt.Errorf("scanning run: %w", err)
		return
	}

	r.Scene = scene.String
	if config.Valid {
		r.Config = &config.String
	}
	return &r, nil
}

const selectRunsSQL = `
SELECT id, started_at, tool, scene, config
FROM runs
ORDER BY started_at`

// Runs returns all recorded runs ordered by start time.
func (s *SqliteStore) Runs(ctx context.Context) (runs []RunData, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectRunsSQL)
	if err != nil {
		err = fmt.Errorf("querying runs: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var r RunData
		var scene, config sql.NullString
		if err = rows.Scan(&r.ID, &r.StartedAt, &r.Tool, &scene, &config); err != nil {
			err = fmt.Errorf("scanning run: %w", err)
			return
		}
		r.Scene = scene.String
		if config.Valid {
			r.Config = &config.String
		}
		runs = append(runs, r)
	}
	err = rows.Err()
	return
}

const insertObservationSQL = `
INSERT INTO observations (run_id, storm_id, name, nature, timestamp,
                          latitude, longitude, x_index, y_index, retained)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// StoreObservations saves filter outcomes in a single transaction.
func (s *SqliteStore) StoreObservations(ctx context.Context, runID int64, recs []ObservationRecord) (err error) {
	if len(recs) == 0 {
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	stmt, err := tx.PrepareContext(ctx, insertObservationSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	for _, rec := range recs {
		_, err = stmt.ExecContext(ctx,
			runID,
			rec.StormID,
			rec.Name,
			rec.Nature,
			rec.Time.UTC(),
			rec.Lat,
			rec.Lon,
			nullInt(rec.XIndex),
			nullInt(rec.YIndex),
			rec.Retained,
		)
		if err != nil {
			return fmt.Errorf("inserting observation: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return
}

const selectObservationsSQL = `
SELECT id, storm_id, name, nature, timestamp, latitude, longitude,
       x_index, y_index, retained
FROM observations
WHERE run_id = ?%s
ORDER BY timestamp, id`

// Observations returns a run's observation records, oldest first.
func (s *SqliteStore) Observations(ctx context.Context, runID int64, opts ...ObservationQuery) (recs []ObservationRecord, err error) {
	var q obsQuery
	for _, opt := range opts {
		opt(&q)
	}

	var cond string
	if q.retainedOnly {
		cond = " AND retained = 1"
	}

	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf(selectObservationsSQL, cond), runID)
	if err != nil {
		err = fmt.Errorf("querying observations: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var rec ObservationRecord
		var x, y sql.NullInt64
		var ts time.Time
		if err = rows.Scan(&rec.ID, &rec.StormID, &rec.Name, &rec.Nature, &ts,
			&rec.Lat, &rec.Lon, &x, &y, &rec.Retained); err != nil {
			err = fmt.Errorf("scanning observation: %w", err)
			return
		}
		rec.Time = ts.UTC()
		rec.XIndex = intPtr(x)
		rec.YIndex = intPtr(y)
		recs = append(recs, rec)
	}
	err = rows.Err()
	return
}

const insertSampleSQL = `
INSERT INTO samples (run_id, timestamp, kind, storm_id, x_index, y_index, buffer, path)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

// StoreSamples saves generated crops in a single transaction.
func (s *SqliteStore) StoreSamples(ctx context.Context, runID int64, recs []SampleRecord) (err error) {
	if len(recs) == 0 {
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	stmt, err := tx.PrepareContext(ctx, insertSampleSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	for _, rec := range recs {
		_, err = stmt.ExecContext(ctx,
			runID,
			rec.Time.UTC(),
			string(rec.Kind),
			rec.StormID,
			rec.XIndex,
			rec.YIndex,
			rec.Buffer,
			rec.Path,
		)
		if err != nil {
			return fmt.Errorf("inserting sample: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return
}

const selectSamplesSQL = `
SELECT id, timestamp, kind, storm_id, x_index, y_index, buffer, path
FROM samples
WHERE run_id = ?%s
ORDER BY timestamp, id`

// Samples returns a run's sample records, oldest first.
func (s *SqliteStore) Samples(ctx context.Context, runID int64, opts ...SampleQuery) (recs []SampleRecord, err error) {
	var q sampleQuery
	for _, opt := range opts {
		opt(&q)
	}

	var cond string
	args := []any{runID}
	if q.kind != nil {
		cond = " AND kind = ?"
		args = append(args, string(*q.kind))
	}

	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf(selectSamplesSQL, cond), args...)
	if err != nil {
		err = fmt.Errorf("querying samples: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var rec SampleRecord
		var kind string
		var stormID sql.NullString
		var ts time.Time
		if err = rows.Scan(&rec.ID, &ts, &kind, &stormID, &rec.XIndex, &rec.YIndex,
			&rec.Buffer, &rec.Path); err != nil {
			err = fmt.Errorf("scanning sample: %w", err)
			return
		}
		rec.Time = ts.UTC()
		rec.Kind = SampleKind(kind)
		rec.StormID = stormID.String
		recs = append(recs, rec)
	}
	err = rows.Err()
	return
}

// Close closes the database connections.
func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		s.closeErr = errors.Join(writeErr, readErr)
	})

	return s.closeErr
}
