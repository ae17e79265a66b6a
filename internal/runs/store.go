// Package runs keeps a SQLite ledger of pipeline runs for the CLI.
package runs

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"stillpoint/internal/pipeline"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; existing databases must be deleted after a bump.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the
// expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run is one ledger row.
type Run struct {
	RunID           string
	EmotionalState  string
	MeditationStyle string
	MeditationTheme string
	DurationMinutes int
	LanguageCode    string
	VoiceType       string
	Soundscape      string
	Status          string
	ErrorMessage    string
	NarrationFile   string
	MixedFile       string
	SampleFile      string
	StartedAt       time.Time
	FinishedAt      *time.Time
}

// Store manages run persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the ledger database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin schema tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()
		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return tx.Commit()
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete the ledger database)",
			ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

// Begin records the start of a run.
func (s *Store) Begin(ctx context.Context, runID string, req pipeline.Request) error {
	if strings.TrimSpace(runID) == "" {
		return errors.New("run id is required")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (
            run_id, emotional_state, meditation_style, meditation_theme,
            duration_minutes, language_code, voice_type, soundscape,
            status, started_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID,
		req.EmotionalState,
		req.MeditationStyle,
		req.MeditationTheme,
		req.DurationMinutes,
		req.LanguageCode,
		req.VoiceType,
		req.Soundscape,
		StatusRunning,
		now,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Finish records the terminal state of a run. Finishing an unknown run is a
// no-op so a ledger added mid-flight never fails the pipeline.
func (s *Store) Finish(ctx context.Context, runID string, record *pipeline.Record) error {
	status := StatusCompleted
	if record.Failed() {
		status = StatusFailed
	}
	var narration, mixed, sample string
	if record.AudioOutput != nil {
		narration = record.AudioOutput.NarrationFile
		mixed = record.AudioOutput.MixedFile
		sample = record.AudioOutput.SampleFile
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET
            status = ?, error_message = ?, narration_file = ?,
            mixed_file = ?, sample_file = ?, finished_at = ?
        WHERE run_id = ?`,
		status,
		record.Error,
		narration,
		mixed,
		sample,
		now,
		runID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

// List returns runs newest first, up to limit (0 means all).
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT run_id, emotional_state, meditation_style, meditation_theme,
        duration_minutes, language_code, voice_type, soundscape,
        status, error_message, narration_file, mixed_file, sample_file,
        started_at, finished_at
        FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run        Run
			startedAt  string
			finishedAt sql.NullString
		)
		if err := rows.Scan(
			&run.RunID, &run.EmotionalState, &run.MeditationStyle, &run.MeditationTheme,
			&run.DurationMinutes, &run.LanguageCode, &run.VoiceType, &run.Soundscape,
			&run.Status, &run.ErrorMessage, &run.NarrationFile, &run.MixedFile, &run.SampleFile,
			&startedAt, &finishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if parsed, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
			run.StartedAt = parsed
		}
		if finishedAt.Valid {
			if parsed, err := time.Parse(time.RFC3339Nano, finishedAt.String); err == nil {
				run.FinishedAt = &parsed
			}
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
