package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const (
	StatusOK    = "ok"
	StatusEmpty = "empty"
	StatusError = "error"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// RunRecord is the outcome of one refresh. Trend records themselves are not
// stored.
type RunRecord struct {
	ID            string    `json:"id"`
	Platform      string    `json:"platform"`
	TimeRange     string    `json:"time_range"`
	Status        string    `json:"status"`
	RecordCount   int       `json:"record_count"`
	GroundedCount int       `json:"grounded_count"`
	Topic         string    `json:"topic,omitempty"`
	Error         string    `json:"error,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
}

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite only allows one writer at a time. Limit pool to 1 connection
	// so concurrent goroutines queue at the Go level instead of hitting SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS refresh_runs (
			id             TEXT PRIMARY KEY,
			platform       TEXT NOT NULL,
			time_range     TEXT NOT NULL,
			status         TEXT NOT NULL,
			record_count   INTEGER NOT NULL DEFAULT 0,
			grounded_count INTEGER NOT NULL DEFAULT 0,
			topic          TEXT NOT NULL DEFAULT '',
			error          TEXT NOT NULL DEFAULT '',
			started_at     DATETIME NOT NULL,
			finished_at    DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_refresh_runs_started_at ON refresh_runs(started_at DESC);
	`)
	return err
}

// SaveRun upserts a run.
func (s *Store) SaveRun(r RunRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO refresh_runs (id, platform, time_range, status, record_count, grounded_count, topic, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status         = excluded.status,
			record_count   = excluded.record_count,
			grounded_count = excluded.grounded_count,
			topic          = excluded.topic,
			error          = excluded.error,
			finished_at    = excluded.finished_at
	`, r.ID, r.Platform, r.TimeRange, r.Status, r.RecordCount, r.GroundedCount, r.Topic, r.Error,
		r.StartedAt.UTC().Format(timeLayout),
		r.FinishedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("save run %s: %w", r.ID, err)
	}
	return nil
}

// RecentRuns returns the newest runs first.
func (s *Store) RecentRuns(limit int) ([]RunRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, platform, time_range, status, record_count, grounded_count, topic, error, started_at, finished_at
		FROM refresh_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns nil, nil when no run has the given id.
func (s *Store) GetRun(id string) (*RunRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, platform, time_range, status, record_count, grounded_count, topic, error, started_at, finished_at
		FROM refresh_runs
		WHERE id = ?
	`, id)

	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (RunRecord, error) {
	var (
		r                 RunRecord
		started, finished string
	)
	if err := sc.Scan(&r.ID, &r.Platform, &r.TimeRange, &r.Status, &r.RecordCount, &r.GroundedCount,
		&r.Topic, &r.Error, &started, &finished); err != nil {
		return RunRecord{}, err
	}
	r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
	return r, nil
}
