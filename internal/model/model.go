package model

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/hydrosat/patchseg/internal/patch"
	"github.com/hydrosat/patchseg/internal/predict"
	"github.com/hydrosat/patchseg/internal/timeutil"
)

// Definition describes the model to train.
type Definition struct {
	InputShape   [3]int // patch rows, cols, channels
	Blocks       int
	LearningRate float64
}

// Validate checks the definition before training starts.
func (d Definition) Validate() error {
	for i, n := range d.InputShape {
		if n <= 0 {
			return fmt.Errorf("input shape dimension %d must be positive, got %v", i, d.InputShape)
		}
	}
	if d.Blocks <= 0 {
		return fmt.Errorf("blocks must be positive, got %d", d.Blocks)
	}
	if d.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be positive, got %g", d.LearningRate)
	}
	return nil
}

// EpochMetrics are the per-epoch training curves.
type EpochMetrics struct {
	Epoch             int // 1-based
	Loss              float64
	ValLoss           float64
	BinaryAccuracy    float64
	ValBinaryAccuracy float64
}

// History collects EpochMetrics in training order.
type History struct {
	Epochs []EpochMetrics
}

// Last returns the final epoch's metrics.
func (h *History) Last() (EpochMetrics, bool) {
	if h == nil || len(h.Epochs) == 0 {
		return EpochMetrics{}, false
	}
	return h.Epochs[len(h.Epochs)-1], true
}

// Model is a trained scorer that can be persisted.
type Model interface {
	predict.Scorer
	Save(w io.Writer) error
}

// Driver trains a Model.
type Driver interface {
	Train(ctx context.Context, def Definition, train, test patch.Dataset, batchSize, epochs int) (Model, *History, error)
}

// ArtifactParams are the run settings encoded in a model's file name.
type ArtifactParams struct {
	Epochs    int
	BatchSize int
	Class     string
	PatchSize int
	Blocks    int
}

// ArtifactExt is the extension of persisted models.
const ArtifactExt = ".gob.gz"

// ArtifactName returns the file name for a trained model, e.g.
// vz01_sparcs_2D_100epochs_64bs_shadow_64patch_2blocks_2026-10-19.gob.gz.
func ArtifactName(p ArtifactParams, date time.Time) string {
	return fmt.Sprintf("vz01_sparcs_2D_%depochs_%dbs_%s_%dpatch_%dblocks_%s%s",
		p.Epochs, p.BatchSize, p.Class, p.PatchSize, p.Blocks, timeutil.DateStamp(date), ArtifactExt)
}
