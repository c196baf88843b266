package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Prediction is one reassembled scene written to disk.
type Prediction struct {
	PredictionID string
	ModelPath    string
	ScenePath    string
	OutputPath   string
	Rows         int
	Cols         int
	TileSize     int
	Boundary     int
	EdgePolicy   string
	CreatedAt    time.Time
}

// RecordPrediction stores p, assigning a UUID when PredictionID is empty.
func (l *Ledger) RecordPrediction(p *Prediction) error {
	if p.PredictionID == "" {
		p.PredictionID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO predictions (
			prediction_id, model_path, scene_path, output_path, row_count, col_count,
			tile_size, boundary, edge_policy, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	err := retryOnBusy(func() error {
		_, err := l.db.Exec(query,
			p.PredictionID, p.ModelPath, p.ScenePath, p.OutputPath, p.Rows, p.Cols,
			p.TileSize, p.Boundary, p.EdgePolicy, p.CreatedAt.UTC().Format(time.RFC3339Nano),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("recording prediction %s: %w", p.PredictionID, err)
	}
	return nil
}

// ListPredictions returns the predictions made with modelPath, oldest first.
func (l *Ledger) ListPredictions(modelPath string) ([]Prediction, error) {
	rows, err := l.db.Query(`
		SELECT prediction_id, model_path, scene_path, output_path, row_count, col_count,
		       tile_size, boundary, edge_policy, created_at
		FROM predictions
		WHERE model_path = ?
		ORDER BY created_at, prediction_id
	`, modelPath)
	if err != nil {
		return nil, fmt.Errorf("listing predictions for %s: %w", modelPath, err)
	}
	defer rows.Close()

	var out []Prediction
	for rows.Next() {
		var p Prediction
		var created string
		if err := rows.Scan(&p.PredictionID, &p.ModelPath, &p.ScenePath, &p.OutputPath, &p.Rows, &p.Cols,
			&p.TileSize, &p.Boundary, &p.EdgePolicy, &created); err != nil {
			return nil, err
		}
		if p.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("prediction %s created_at: %w", p.PredictionID, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
