package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	ferrors "git.home.luguber.info/inful/sorrydb-sync/internal/foundation/errors"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (creating if needed) the history database at dbPath.
// Use ":memory:" for a throwaway store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, storageErr(err, "create history directory").WithContext(ferrors.KeyPath, dbPath)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, storageErr(err, "open history database").WithContext(ferrors.KeyPath, dbPath)
	}
	// One connection keeps :memory: databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, storageErr(err, "initialize history schema").WithContext(ferrors.KeyPath, dbPath)
	}
	return store, nil
}

func storageErr(err error, msg string) *ferrors.ClassifiedError {
	return ferrors.WrapError(err, ferrors.CategoryStorage, msg).Build()
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		stamp TEXT NOT NULL,
		tag TEXT,
		outcome TEXT NOT NULL,
		error TEXT,
		steps TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record stores run, replacing an earlier record with the same ID.
func (s *SQLiteStore) Record(ctx context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	steps, err := json.Marshal(run.Steps)
	if err != nil {
		return storageErr(err, "marshal run steps")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (id, started_at, finished_at, stamp, tag, outcome, error, steps)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UnixMilli(), run.FinishedAt.UnixMilli(),
		run.Stamp, run.Tag, run.Outcome, run.Error, string(steps),
	)
	if err != nil {
		return storageErr(err, "insert run").WithContext("run_id", run.ID)
	}
	return nil
}

// Recent returns up to limit runs, newest first. A non-positive limit returns all runs.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, stamp, tag, outcome, error, steps
		 FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, storageErr(err, "query runs")
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var (
			r                 Run
			started, finished int64
			tag, errText      sql.NullString
			steps             sql.NullString
		)
		if err := rows.Scan(&r.ID, &started, &finished, &r.Stamp, &tag, &r.Outcome, &errText, &steps); err != nil {
			return nil, storageErr(err, "scan run")
		}
		r.StartedAt = time.UnixMilli(started)
		r.FinishedAt = time.UnixMilli(finished)
		r.Tag = tag.String
		r.Error = errText.String
		if steps.Valid && steps.String != "" {
			if err := json.Unmarshal([]byte(steps.String), &r.Steps); err != nil {
				return nil, storageErr(err, "unmarshal run steps").WithContext("run_id", r.ID)
			}
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err, "iterate runs")
	}
	return runs, nil
}

// Close releases the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
