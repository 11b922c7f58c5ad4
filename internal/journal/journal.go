// Package journal persists one audit row per merge attempt in a local
// SQLite database so operators can answer "what happened to revision N"
// after the fact.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schema string

// Outcome is the terminal state of a single merge attempt.
type Outcome string

const (
	OutcomeMerged     Outcome = "merged"
	OutcomeSkipped    Outcome = "skipped-no-match"
	OutcomeConflicted Outcome = "conflicted-rolled-back"
	OutcomeFailed     Outcome = "failed"
)

// Advances reports whether the outcome moves the revision cursor forward.
// Failed attempts leave the cursor in place so the revision is retried.
func (o Outcome) Advances() bool {
	return o != OutcomeFailed
}

// Attempt is one processed revision and what became of it.
type Attempt struct {
	Revision   int64
	Outcome    Outcome
	Detail     string
	Author     string
	Message    string
	RecordedAt time.Time
}

// Recorder accepts merge attempts for the audit trail.
type Recorder interface {
	Record(ctx context.Context, attempt Attempt) error
}

// Store is a SQLite-backed Recorder.
type Store struct {
	db *sql.DB
}

// Open creates or opens the journal database at path and prepares the
// schema. The schema is idempotent, so opening an existing journal is safe.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("creating journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging journal database: %w", err)
	}

	// Single writer to avoid SQLITE_BUSY errors.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying journal schema: %w", err)
	}

	return &Store{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("applying %s: %w", pragma, err)
		}
	}

	return nil
}

// Record inserts the attempt. A second advancing outcome for a revision
// that already has one is dropped, so replayed cycles cannot double-book
// a revision.
func (s *Store) Record(ctx context.Context, attempt Attempt) error {
	recordedAt := attempt.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO merge_attempts (revision, outcome, detail, author, message, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		attempt.Revision,
		string(attempt.Outcome),
		attempt.Detail,
		attempt.Author,
		attempt.Message,
		recordedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("recording attempt for r%d: %w", attempt.Revision, err)
	}

	return nil
}

// Recent returns up to limit attempts, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT revision, outcome, detail, author, message, recorded_at
		FROM merge_attempts
		ORDER BY id DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying recent attempts: %w", err)
	}
	defer rows.Close()

	attempts := []Attempt{}
	for rows.Next() {
		var (
			attempt    Attempt
			outcome    string
			recordedAt string
		)
		if err := rows.Scan(&attempt.Revision, &outcome, &attempt.Detail, &attempt.Author, &attempt.Message, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning attempt: %w", err)
		}
		attempt.Outcome = Outcome(outcome)
		if parsed, err := time.Parse(time.RFC3339, recordedAt); err == nil {
			attempt.RecordedAt = parsed
		}
		attempts = append(attempts, attempt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating attempts: %w", err)
	}

	return attempts, nil
}

// History returns every attempt for one revision, oldest first. A revision
// that failed and was later merged has both rows.
func (s *Store) History(ctx context.Context, revision int64) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT revision, outcome, detail, author, message, recorded_at
		FROM merge_attempts
		WHERE revision = ?
		ORDER BY id ASC`,
		revision,
	)
	if err != nil {
		return nil, fmt.Errorf("querying history for r%d: %w", revision, err)
	}
	defer rows.Close()

	attempts := []Attempt{}
	for rows.Next() {
		var (
			attempt    Attempt
			outcome    string
			recordedAt string
		)
		if err := rows.Scan(&attempt.Revision, &outcome, &attempt.Detail, &attempt.Author, &attempt.Message, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning attempt: %w", err)
		}
		attempt.Outcome = Outcome(outcome)
		if parsed, err := time.Parse(time.RFC3339, recordedAt); err == nil {
			attempt.RecordedAt = parsed
		}
		attempts = append(attempts, attempt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating attempts: %w", err)
	}

	return attempts, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Discard is a Recorder that drops every attempt. It stands in for the
// store when no journal file is configured.
type Discard struct{}

func (Discard) Record(context.Context, Attempt) error { return nil }
