// Package state persists a catalog of sampling runs and the frames they
// wrote in SQLite.
package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/phako/tn/internal/logger"
	"github.com/phako/tn/internal/sampler"
	"github.com/phako/tn/internal/video"
)

// Run statuses
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Catalog records sampling runs. It implements sampler.Observer.
type Catalog struct {
	db     *Database
	logger *logger.Logger
	mu     sync.RWMutex
}

var _ sampler.Observer = (*Catalog)(nil)

// RunState is a catalogued run
type RunState struct {
	ID            string
	Input         string
	Backend       string
	Count         int
	Offset        int
	Format        string
	Step          int64
	Stream        video.StreamInfo
	Status        string
	Error         string
	FramesWritten int
	FramesDecoded int
	StartedAt     time.Time
	FinishedAt    *time.Time
}

// FrameState is a catalogued frame
type FrameState struct {
	RunID         string
	Sample        int
	Index         int
	PTS           int64
	Path          string
	HistogramPath string
}

// NewCatalog opens or creates the catalog database at dbPath
func NewCatalog(dbPath string, log *logger.Logger) (*Catalog, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	db, err := NewDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	return &Catalog{
		db:     db,
		logger: log,
	}, nil
}

// Close closes the catalog database
func (c *Catalog) Close() error {
	return c.db.Close()
}

// RunStarted inserts a run in running state
func (c *Catalog) RunStarted(ctx context.Context, run sampler.RunInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	streamJSON, err := json.Marshal(run.Stream)
	if err != nil {
		return fmt.Errorf("failed to marshal stream info: %w", err)
	}

	query := `
		INSERT INTO runs (id, input, backend, sample_count, frame_offset, format, step, stream, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = c.db.GetDB().ExecContext(ctx, query,
		run.RunID, run.Input, run.Backend, run.Count, run.Offset, run.Format,
		run.Step, string(streamJSON), StatusRunning, run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	c.logger.Debug("Catalogued run", "run_id", run.RunID, "input", run.Input)
	return nil
}

// FrameEmitted records a written frame. Re-emitting a sample replaces it.
func (c *Catalog) FrameEmitted(ctx context.Context, frame sampler.FrameRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	query := `
		INSERT INTO frames (run_id, sample, file_index, pts, path, histogram_path)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, sample) DO UPDATE SET
			file_index = excluded.file_index,
			pts = excluded.pts,
			path = excluded.path,
			histogram_path = excluded.histogram_path
	`
	_, err := c.db.GetDB().ExecContext(ctx, query,
		frame.RunID, frame.Sample, frame.Index, frame.PTS, frame.Path, nullString(frame.HistogramPath),
	)
	if err != nil {
		return fmt.Errorf("failed to save frame: %w", err)
	}

	return nil
}

// RunFinished stores the outcome of a run
func (c *Catalog) RunFinished(ctx context.Context, summary sampler.RunSummary) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := StatusCompleted
	var errText sql.NullString
	if summary.Err != nil {
		status = StatusFailed
		errText = sql.NullString{String: summary.Err.Error(), Valid: true}
	}

	query := `
		UPDATE runs SET status = ?, error = ?, frames_written = ?, frames_decoded = ?, finished_at = ?
		WHERE id = ?
	`
	res, err := c.db.GetDB().ExecContext(ctx, query,
		status, errText, summary.Frames, summary.Decoded, summary.FinishedAt, summary.RunID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run not found: %s", summary.RunID)
	}

	return nil
}

// GetRun retrieves a run by ID. It returns nil when the run does not exist.
func (c *Catalog) GetRun(ctx context.Context, id string) (*RunState, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	query := `
		SELECT id, input, backend, sample_count, frame_offset, format, step, stream,
		       status, error, frames_written, frames_decoded, started_at, finished_at
		FROM runs WHERE id = ?
	`
	run, err := scanRun(c.db.GetDB().QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the runs of an input, newest first. An empty input lists
// all runs.
func (c *Catalog) ListRuns(ctx context.Context, input string, limit int) ([]RunState, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, input, backend, sample_count, frame_offset, format, step, stream,
		       status, error, frames_written, frames_decoded, started_at, finished_at
		FROM runs WHERE (? = '' OR input = ?)
		ORDER BY started_at DESC
		LIMIT ?
	`
	rows, err := c.db.GetDB().QueryContext(ctx, query, input, input, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]RunState, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}

	return runs, rows.Err()
}

// ListFrames returns the frames of a run in sample order
func (c *Catalog) ListFrames(ctx context.Context, runID string) ([]FrameState, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	query := `
		SELECT run_id, sample, file_index, pts, path, histogram_path
		FROM frames WHERE run_id = ?
		ORDER BY sample
	`
	rows, err := c.db.GetDB().QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query frames: %w", err)
	}
	defer rows.Close()

	frames := make([]FrameState, 0)
	for rows.Next() {
		var frame FrameState
		var histPath sql.NullString
		if err := rows.Scan(&frame.RunID, &frame.Sample, &frame.Index, &frame.PTS, &frame.Path, &histPath); err != nil {
			return nil, fmt.Errorf("failed to scan frame: %w", err)
		}
		frame.HistogramPath = histPath.String
		frames = append(frames, frame)
	}

	return frames, rows.Err()
}

// MarkInterrupted fails runs left in running state by a crashed process
func (c *Catalog) MarkInterrupted(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.db.GetDB().ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE status = ?`,
		StatusFailed, "interrupted", time.Now(), StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark interrupted runs: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		c.logger.Warn("Marked interrupted runs as failed", "count", n)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*RunState, error) {
	var run RunState
	var stream, errText sql.NullString
	var finishedAt sql.NullTime

	err := row.Scan(
		&run.ID, &run.Input, &run.Backend, &run.Count, &run.Offset, &run.Format, &run.Step, &stream,
		&run.Status, &errText, &run.FramesWritten, &run.FramesDecoded, &run.StartedAt, &finishedAt,
	)
	if err != nil {
		return nil, err
	}

	if stream.Valid && stream.String != "" {
		if err := json.Unmarshal([]byte(stream.String), &run.Stream); err != nil {
			return nil, fmt.Errorf("failed to unmarshal stream info: %w", err)
		}
	}
	run.Error = errText.String
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}

	return &run, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
