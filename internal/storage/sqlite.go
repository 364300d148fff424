// Package storage provides SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/vibetex/internal/models"
)

const defaultListLimit = 100

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS compiles (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		content_sha256 TEXT NOT NULL,
		status TEXT NOT NULL,
		artifact_bytes INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_compiles_session ON compiles(session_id, started_at);
	CREATE INDEX IF NOT EXISTS idx_compiles_status ON compiles(status);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		source_path TEXT,
		created_at TIMESTAMP NOT NULL,
		closed_at TIMESTAMP
	);
	`
	_, err := db.Exec(schema)
	return err
}

// RecordCompile inserts one compile record.
func (s *SQLiteStorage) RecordCompile(ctx context.Context, rec *models.CompileRecord) error {
	if rec.ID == "" || rec.SessionID == "" {
		return fmt.Errorf("compile record needs id and session id")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO compiles (id, session_id, seq, content_sha256, status, artifact_bytes, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SessionID, int64(rec.Seq), rec.ContentSHA256, string(rec.Status),
		rec.ArtifactBytes, rec.Error, rec.StartedAt.UTC(), rec.FinishedAt.UTC(),
	)
	return err
}

// ListCompiles returns a session's compile history, newest first.
func (s *SQLiteStorage) ListCompiles(ctx context.Context, sessionID string, offset, limit int) ([]*models.CompileRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, seq, content_sha256, status, artifact_bytes, error, started_at, finished_at
		 FROM compiles WHERE session_id = ?
		 ORDER BY started_at DESC, seq DESC LIMIT ? OFFSET ?`,
		sessionID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*models.CompileRecord{}
	for rows.Next() {
		var rec models.CompileRecord
		var seq int64
		var status string
		var errText sql.NullString
		if err := rows.Scan(&rec.ID, &rec.SessionID, &seq, &rec.ContentSHA256, &status,
			&rec.ArtifactBytes, &errText, &rec.StartedAt, &rec.FinishedAt); err != nil {
			return nil, err
		}
		rec.Seq = uint64(seq)
		rec.Status = models.CompileStatus(status)
		rec.Error = errText.String
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// CountCompiles returns the total number of compile records.
func (s *SQLiteStorage) CountCompiles(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM compiles`).Scan(&n)
	return n, err
}

// CountCompilesByStatus groups compile records by outcome.
func (s *SQLiteStorage) CountCompilesByStatus(ctx context.Context) (map[models.CompileStatus]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM compiles GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[models.CompileStatus]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[models.CompileStatus(status)] = n
	}
	return out, rows.Err()
}

// DeleteCompiles removes a session's compile history and returns the number of rows removed.
func (s *SQLiteStorage) DeleteCompiles(ctx context.Context, sessionID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM compiles WHERE session_id = ?`, sessionID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// OpenSession logs a new session. Reopening an ID clears its closed time.
func (s *SQLiteStorage) OpenSession(ctx context.Context, id, sourcePath string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, source_path, created_at, closed_at) VALUES (?, ?, ?, NULL)
		 ON CONFLICT(id) DO UPDATE SET source_path = excluded.source_path, closed_at = NULL`,
		id, sourcePath, at.UTC(),
	)
	return err
}

// CloseSession marks a session closed.
func (s *SQLiteStorage) CloseSession(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET closed_at = ? WHERE id = ? AND closed_at IS NULL`, at.UTC(), id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("session not open: %s", id)
	}
	return nil
}

// CountOpenSessions returns the number of sessions not yet closed.
func (s *SQLiteStorage) CountOpenSessions(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE closed_at IS NULL`).Scan(&n)
	return n, err
}

// SizeBytes returns the on-disk size of the database including its WAL files.
// Missing files count as zero.
func (s *SQLiteStorage) SizeBytes() (int64, error) {
	var total int64
	for _, p := range []string{s.path, s.path + "-wal", s.path + "-shm"} {
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, err
		}
		total += info.Size()
	}
	return total, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
