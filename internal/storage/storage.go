// Package storage provides SQLite persistence for pipeline runs and
// their detections. The pipeline core never touches it; the service
// shell hands completed results here.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/framesight/framesight/internal/detection"
	"github.com/framesight/framesight/internal/pipeline"
)

// DB wraps the SQL database connection.
type DB struct {
	*sql.DB
	path   string
	logger *slog.Logger
}

// Open opens (and migrates) the database at path.
func Open(path string) (*DB, error) {
	logger := slog.Default().With("component", "storage")

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=ON", path)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	d := &DB{DB: db, path: path, logger: logger}
	if err := d.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("Database opened", "path", path)
	return d, nil
}

func (d *DB) migrate() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			video_path TEXT NOT NULL,
			model_name TEXT NOT NULL,
			state TEXT NOT NULL,
			frames_read INTEGER NOT NULL DEFAULT 0,
			frames_submitted INTEGER NOT NULL DEFAULT 0,
			frames_timed_out INTEGER NOT NULL DEFAULT 0,
			screenshots INTEGER NOT NULL DEFAULT 0,
			degraded_reason TEXT NOT NULL DEFAULT '',
			started_at TIMESTAMP NOT NULL,
			duration_ms INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS detections (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			class_label TEXT NOT NULL,
			confidence REAL NOT NULL,
			x REAL NOT NULL,
			y REAL NOT NULL,
			width REAL NOT NULL,
			height REAL NOT NULL,
			timestamp REAL NOT NULL,
			frame_number INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_detections_run ON detections(run_id, frame_number)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,
	}

	for _, stmt := range schema {
		if _, err := d.Exec(stmt); err != nil {
			return fmt.Errorf("migrating schema: %w", err)
		}
	}
	return nil
}

// RunRecord is one persisted pipeline run.
type RunRecord struct {
	ID              string            `json:"id"`
	VideoPath       string            `json:"video_path"`
	ModelName       string            `json:"model_name"`
	State           pipeline.RunState `json:"state"`
	FramesRead      int               `json:"frames_read"`
	FramesSubmitted int               `json:"frames_submitted"`
	FramesTimedOut  int               `json:"frames_timed_out"`
	Screenshots     int               `json:"screenshots"`
	DegradedReason  string            `json:"degraded_reason,omitempty"`
	StartedAt       time.Time         `json:"started_at"`
	DurationMs      int64             `json:"duration_ms"`
	DetectionCount  int               `json:"detection_count"`
}

// SaveResult persists a pipeline result and its detections atomically.
func (d *DB) SaveResult(ctx context.Context, result *pipeline.Result) error {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, video_path, model_name, state, frames_read,
			frames_submitted, frames_timed_out, screenshots, degraded_reason,
			started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.RunID, result.VideoPath, result.ModelName, string(result.State),
		result.FramesRead, result.FramesSubmitted, result.FramesTimedOut,
		result.Screenshots, result.DegradedReason,
		result.StartedAt.UTC(), result.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO detections (id, run_id, class_label, confidence,
			x, y, width, height, timestamp, frame_number)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing detection insert: %w", err)
	}
	defer stmt.Close()

	for _, det := range result.Detections {
		_, err = stmt.ExecContext(ctx,
			uuid.New().String(), result.RunID, det.ClassLabel, det.Confidence,
			det.BoundingBox.X, det.BoundingBox.Y,
			det.BoundingBox.Width, det.BoundingBox.Height,
			det.Timestamp, det.FrameNumber)
		if err != nil {
			return fmt.Errorf("inserting detection: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing run: %w", err)
	}

	d.logger.Debug("Run persisted", "run_id", result.RunID, "detections", len(result.Detections))
	return nil
}

// GetRun returns one run record, or sql.ErrNoRows.
func (d *DB) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	row := d.QueryRowContext(ctx, `
		SELECT r.id, r.video_path, r.model_name, r.state, r.frames_read,
			r.frames_submitted, r.frames_timed_out, r.screenshots,
			r.degraded_reason, r.started_at, r.duration_ms,
			(SELECT COUNT(*) FROM detections WHERE run_id = r.id)
		FROM runs r WHERE r.id = ?`, id)

	var rec RunRecord
	var state string
	err := row.Scan(&rec.ID, &rec.VideoPath, &rec.ModelName, &state,
		&rec.FramesRead, &rec.FramesSubmitted, &rec.FramesTimedOut,
		&rec.Screenshots, &rec.DegradedReason, &rec.StartedAt,
		&rec.DurationMs, &rec.DetectionCount)
	if err != nil {
		return nil, err
	}
	rec.State = pipeline.RunState(state)
	return &rec, nil
}

// ListRuns returns the most recent runs, newest first.
func (d *DB) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := d.QueryContext(ctx, `
		SELECT r.id, r.video_path, r.model_name, r.state, r.frames_read,
			r.frames_submitted, r.frames_timed_out, r.screenshots,
			r.degraded_reason, r.started_at, r.duration_ms,
			(SELECT COUNT(*) FROM detections WHERE run_id = r.id)
		FROM runs r ORDER BY r.started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		var state string
		if err := rows.Scan(&rec.ID, &rec.VideoPath, &rec.ModelName, &state,
			&rec.FramesRead, &rec.FramesSubmitted, &rec.FramesTimedOut,
			&rec.Screenshots, &rec.DegradedReason, &rec.StartedAt,
			&rec.DurationMs, &rec.DetectionCount); err != nil {
			return nil, err
		}
		rec.State = pipeline.RunState(state)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetDetections returns a run's detections ordered by frame number.
func (d *DB) GetDetections(ctx context.Context, runID string) ([]detection.Detection, error) {
	rows, err := d.QueryContext(ctx, `
		SELECT class_label, confidence, x, y, width, height, timestamp, frame_number
		FROM detections WHERE run_id = ?
		ORDER BY frame_number, confidence DESC`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying detections: %w", err)
	}
	defer rows.Close()

	var out []detection.Detection
	for rows.Next() {
		var det detection.Detection
		if err := rows.Scan(&det.ClassLabel, &det.Confidence,
			&det.BoundingBox.X, &det.BoundingBox.Y,
			&det.BoundingBox.Width, &det.BoundingBox.Height,
			&det.Timestamp, &det.FrameNumber); err != nil {
			return nil, err
		}
		out = append(out, det)
	}
	return out, rows.Err()
}
