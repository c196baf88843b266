package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hydrosat/patchseg/internal/model"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Scene statuses.
const (
	SceneUsed    = "used"
	SceneSkipped = "skipped"
)

// Run is one training invocation.
type Run struct {
	RunID          string
	Classification string
	DataDir        string
	PatchSize      int
	PatchStride    int
	BatchSize      int
	Epochs         int
	Blocks         int
	LearningRate   float64
	Status         string
	SceneCount     int
	TrainPatches   int
	TestPatches    int
	ModelPath      string
	Error          string
	StartedAt      time.Time
	CompletedAt    *time.Time
}

// RunSummary is what a finished run reports.
type RunSummary struct {
	SceneCount   int
	TrainPatches int
	TestPatches  int
	ModelPath    string
	Error        string
}

// SceneRecord is one scene's outcome within a run.
type SceneRecord struct {
	RunID          string
	Index          int
	Name           string
	Status         string
	Rows           int
	Cols           int
	PositivePixels int
	Error          string
}

// CreateRun inserts r with status running. An empty RunID is assigned a new
// UUID, written back to r.
func (l *Ledger) CreateRun(r *Run) error {
	if r.RunID == "" {
		r.RunID = uuid.New().String()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	r.Status = StatusRunning
	query := `
		INSERT INTO runs (
			run_id, classification, data_dir, patch_size, patch_stride,
			batch_size, epochs, blocks, learning_rate, status, started_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	err := retryOnBusy(func() error {
		_, err := l.db.Exec(query,
			r.RunID, r.Classification, r.DataDir, r.PatchSize, r.PatchStride,
			r.BatchSize, r.Epochs, r.Blocks, r.LearningRate, r.Status,
			r.StartedAt.UTC().Format(time.RFC3339Nano),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", r.RunID, err)
	}
	diagf("Created run %s (%s, %s)", r.RunID, r.Classification, r.DataDir)
	return nil
}

// RecordScene stores one scene outcome.
func (l *Ledger) RecordScene(s SceneRecord) error {
	query := `
		INSERT INTO run_scenes (
			run_id, scene_index, scene_name, status, row_count, col_count, positive_pixels, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	err := retryOnBusy(func() error {
		_, err := l.db.Exec(query,
			s.RunID, s.Index, s.Name, s.Status, s.Rows, s.Cols, s.PositivePixels, nullStr(s.Error),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("recording scene %s for run %s: %w", s.Name, s.RunID, err)
	}
	return nil
}

// RecordEpochs stores a run's training curves in one transaction.
func (l *Ledger) RecordEpochs(runID string, epochs []model.EpochMetrics) error {
	query := `
		INSERT INTO run_epochs (
			run_id, epoch, loss, val_loss, binary_accuracy, val_binary_accuracy
		) VALUES (?, ?, ?, ?, ?, ?)
	`
	err := retryOnBusy(func() error {
		tx, err := l.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()
		stmt, err := tx.Prepare(query)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, e := range epochs {
			if _, err := stmt.Exec(runID, e.Epoch, e.Loss, e.ValLoss, e.BinaryAccuracy, e.ValBinaryAccuracy); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("recording epochs for run %s: %w", runID, err)
	}
	return nil
}

// FinishRun marks a run completed, or failed when summary.Error is set.
func (l *Ledger) FinishRun(runID string, summary RunSummary, completedAt time.Time) error {
	status := StatusCompleted
	if summary.Error != "" {
		status = StatusFailed
	}
	query := `
		UPDATE runs
		SET status = ?, scene_count = ?, train_patches = ?, test_patches = ?,
		    model_path = ?, error = ?, completed_at = ?
		WHERE run_id = ?
	`
	var res sql.Result
	err := retryOnBusy(func() error {
		var err error
		res, err = l.db.Exec(query,
			status, summary.SceneCount, summary.TrainPatches, summary.TestPatches,
			nullStr(summary.ModelPath), nullStr(summary.Error),
			completedAt.UTC().Format(time.RFC3339Nano), runID,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finishing run %s: %w", runID, ErrNotFound)
	}
	diagf("Run %s %s", runID, status)
	return nil
}

// GetRun loads a run by ID.
func (l *Ledger) GetRun(runID string) (*Run, error) {
	query := `
		SELECT run_id, classification, data_dir, patch_size, patch_stride,
		       batch_size, epochs, blocks, learning_rate, status,
		       scene_count, train_patches, test_patches, model_path, error,
		       started_at, completed_at
		FROM runs
		WHERE run_id = ?
	`
	var r Run
	var sceneCount, trainPatches, testPatches sql.NullInt64
	var modelPath, errMsg, completedAt sql.NullString
	var startedAt string
	err := l.db.QueryRow(query, runID).Scan(
		&r.RunID, &r.Classification, &r.DataDir, &r.PatchSize, &r.PatchStride,
		&r.BatchSize, &r.Epochs, &r.Blocks, &r.LearningRate, &r.Status,
		&sceneCount, &trainPatches, &testPatches, &modelPath, &errMsg,
		&startedAt, &completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying run %s: %w", runID, err)
	}
	r.SceneCount = int(sceneCount.Int64)
	r.TrainPatches = int(trainPatches.Int64)
	r.TestPatches = int(testPatches.Int64)
	r.ModelPath = modelPath.String
	r.Error = errMsg.String
	if r.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return nil, fmt.Errorf("run %s started_at: %w", runID, err)
	}
	if completedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("run %s completed_at: %w", runID, err)
		}
		r.CompletedAt = &t
	}
	return &r, nil
}

// ListScenes returns a run's scene outcomes in filename order.
func (l *Ledger) ListScenes(runID string) ([]SceneRecord, error) {
	rows, err := l.db.Query(`
		SELECT run_id, scene_index, scene_name, status, row_count, col_count, positive_pixels, error
		FROM run_scenes
		WHERE run_id = ?
		ORDER BY scene_index
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing scenes for run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []SceneRecord
	for rows.Next() {
		var s SceneRecord
		var errMsg sql.NullString
		if err := rows.Scan(&s.RunID, &s.Index, &s.Name, &s.Status, &s.Rows, &s.Cols, &s.PositivePixels, &errMsg); err != nil {
			return nil, err
		}
		s.Error = errMsg.String
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListEpochs returns a run's training curves in epoch order.
func (l *Ledger) ListEpochs(runID string) ([]model.EpochMetrics, error) {
	rows, err := l.db.Query(`
		SELECT epoch, loss, val_loss, binary_accuracy, val_binary_accuracy
		FROM run_epochs
		WHERE run_id = ?
		ORDER BY epoch
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing epochs for run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []model.EpochMetrics
	for rows.Next() {
		var e model.EpochMetrics
		if err := rows.Scan(&e.Epoch, &e.Loss, &e.ValLoss, &e.BinaryAccuracy, &e.ValBinaryAccuracy); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
