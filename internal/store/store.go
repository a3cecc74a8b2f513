// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists masking run results and masked email records in
// a sqlite database, and resolves files inside the artifact directory.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/pii-masker/internal/maskerr"
	"github.com/pdiddy/pii-masker/pkg/types"
)

const dbFile = "runs.db"

// ErrNoRecord is returned when a run or email id is unknown.
var ErrNoRecord = errors.New("no such record")

// Store is the sqlite-backed record store.
type Store struct {
	db *sql.DB
}

// Open opens or creates cfg.Dir/runs.db.
func Open(cfg types.StoreConfig) (*Store, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	db, err := sql.Open("sqlite3", filepath.Join(dir, dbFile)+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			actor TEXT,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			done INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			result TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,
		`CREATE TABLE IF NOT EXISTS masked_emails (
			id TEXT PRIMARY KEY,
			run_id TEXT,
			sender TEXT NOT NULL,
			recipients TEXT NOT NULL,
			subject TEXT,
			body TEXT,
			attachments TEXT NOT NULL,
			masked_by_type TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// SaveRun stores res, replacing any earlier record with the same id.
func (s *Store) SaveRun(ctx context.Context, res types.RunResult) error {
	if res.RunID == "" {
		return maskerr.Persistence(errors.New("empty run id"), "saving run")
	}
	blob, err := json.Marshal(res)
	if err != nil {
		return maskerr.Persistence(err, "encoding run %s", res.RunID)
	}
	done, failed := res.Counts()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, actor, started_at, finished_at, done, failed, result)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET actor=excluded.actor, started_at=excluded.started_at,
		   finished_at=excluded.finished_at, done=excluded.done, failed=excluded.failed, result=excluded.result`,
		res.RunID, res.Actor, formatTime(res.StartedAt), formatTime(res.FinishedAt), done, failed, string(blob))
	if err != nil {
		return maskerr.Persistence(err, "saving run %s", res.RunID)
	}
	return nil
}

// GetRun loads a stored run.
func (s *Store) GetRun(ctx context.Context, id string) (types.RunResult, error) {
	var blob string
	err := s.db.QueryRowContext(ctx, `SELECT result FROM runs WHERE id = ?`, id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return types.RunResult{}, errors.Wrapf(ErrNoRecord, "run %s", id)
	}
	if err != nil {
		return types.RunResult{}, fmt.Errorf("querying run %s: %w", id, err)
	}
	var res types.RunResult
	if err := json.Unmarshal([]byte(blob), &res); err != nil {
		return types.RunResult{}, fmt.Errorf("decoding run %s: %w", id, err)
	}
	return res, nil
}

// RunSummary is one row of the run listing.
type RunSummary struct {
	RunID      string
	Actor      string
	StartedAt  time.Time
	FinishedAt time.Time
	Done       int
	Failed     int
}

// ListRuns returns up to limit runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, actor, started_at, finished_at, done, failed FROM runs
		 ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			r                 RunSummary
			actor             sql.NullString
			started, finished string
		)
		if err := rows.Scan(&r.RunID, &actor, &started, &finished, &r.Done, &r.Failed); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.Actor = actor.String
		r.StartedAt = parseTime(started)
		r.FinishedAt = parseTime(finished)
		out = append(out, r)
	}
	return out, rows.Err()
}

// timeLayout has fixed-width fractions so stored times sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}
