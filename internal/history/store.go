package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ppiankov/shepherd/internal/service"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	started_at  TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	cause       TEXT NOT NULL,
	succeeded   INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	terminated  INTEGER NOT NULL,
	forced      INTEGER NOT NULL,
	report      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`

// Store persists run outcomes across invocations.
type Store struct {
	db *sql.DB
}

// DefaultPath returns the history database path under the log directory.
func DefaultPath(logDir string) string {
	return filepath.Join(logDir, "history.db")
}

// Open opens (and if needed creates) the history database.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts one completed run.
func (s *Store) Record(report *service.GroupReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO runs (run_id, started_at, duration_ms, cause, succeeded, failed, terminated, forced, report)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.RunID,
		report.Timestamp.UTC().Format(time.RFC3339Nano),
		report.TotalDuration.Milliseconds(),
		report.Cause,
		report.Succeeded,
		report.Failed,
		report.Terminated,
		report.ForcedKills,
		string(data),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Entry is one row of run history.
type Entry struct {
	RunID      string
	StartedAt  time.Time
	Duration   time.Duration
	Cause      string
	Succeeded  int
	Failed     int
	Terminated int
	Forced     int
}

// List returns the most recent runs, newest first.
func (s *Store) List(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT run_id, started_at, duration_ms, cause, succeeded, failed, terminated, forced
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var started string
		var durMS int64
		if err := rows.Scan(&e.RunID, &started, &durMS, &e.Cause, &e.Succeeded, &e.Failed, &e.Terminated, &e.Forced); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		e.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		e.Duration = time.Duration(durMS) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Get returns the full stored report for a run ID.
func (s *Store) Get(runID string) (*service.GroupReport, error) {
	var data string
	err := s.db.QueryRow(`SELECT report FROM runs WHERE run_id = ?`, runID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %q not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	var report service.GroupReport
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		return nil, fmt.Errorf("parse stored report: %w", err)
	}
	return &report, nil
}
