// ABOUTME: SQLite invocation journal using modernc.org/sqlite
// ABOUTME: Records every invocation outcome, including rejections; always best effort

package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Record is one journaled gateway invocation. Signature holds only the
// redacted prefix; full signatures never reach the journal.
type Record struct {
	ID        string
	Time      time.Time
	Command   string
	Status    string
	Message   string
	Signature string
	Duration  time.Duration
}

// Journal persists invocation records to a local SQLite database.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates or opens the journal database at path. The schema is created
// automatically; parent directories are created if needed.
func Open(path string, logger *slog.Logger) (*Journal, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal database: %w", err)
	}

	// WAL mode keeps concurrent gateway invocations from blocking each other
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	j := &Journal{
		db:     db,
		logger: logger.With("component", "audit"),
	}
	if err := j.createSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return j, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// createSchema creates the journal table if it does not exist.
func (j *Journal) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS invocations (
			id TEXT PRIMARY KEY,
			ts TEXT NOT NULL,
			command TEXT NOT NULL,
			status TEXT NOT NULL,
			message TEXT NOT NULL,
			signature TEXT NOT NULL,
			duration_ms INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_invocations_ts
			ON invocations(ts);
	`
	if _, err := j.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// Append writes one record. Generates ID and Time if not set. Failures are
// logged and swallowed by the caller: the journal never changes an
// invocation's outcome.
func (j *Journal) Append(ctx context.Context, r *Record) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Time.IsZero() {
		r.Time = time.Now().UTC()
	}

	query := `
		INSERT INTO invocations (id, ts, command, status, message, signature, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := j.db.ExecContext(ctx, query,
		r.ID,
		r.Time.UTC().Format(time.RFC3339),
		r.Command,
		r.Status,
		r.Message,
		r.Signature,
		r.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("inserting invocation record: %w", err)
	}

	j.logger.Debug("journaled invocation", "id", r.ID, "status", r.Status)
	return nil
}

// Tail returns the most recent records, newest first.
func (j *Journal) Tail(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 1000 {
		limit = 1000
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, ts, command, status, message, signature, duration_ms
		FROM invocations
		ORDER BY ts DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		var r Record
		var ts string
		var durationMS int64
		if err := rows.Scan(&r.ID, &ts, &r.Command, &r.Status, &r.Message, &r.Signature, &durationMS); err != nil {
			return nil, fmt.Errorf("scanning invocation record: %w", err)
		}
		r.Time, err = time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("parsing timestamp: %w", err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating invocation records: %w", err)
	}
	return records, nil
}
