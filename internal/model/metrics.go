package model

import (
	"context"
	"fmt"
	"math"

	"github.com/hydrosat/patchseg/internal/patch"
	"github.com/hydrosat/patchseg/internal/predict"
)

// probEpsilon bounds probabilities away from 0 and 1 in the loss.
const probEpsilon = 1e-7

// Metrics accumulates binary cross entropy and accuracy over pixels.
type Metrics struct {
	n       int
	loss    float64
	correct int
}

// Add records one label/probability pair.
func (m *Metrics) Add(label, prob float64) {
	p := math.Min(math.Max(prob, probEpsilon), 1-probEpsilon)
	m.loss -= label*math.Log(p) + (1-label)*math.Log(1-p)
	if (prob > 0.5) == (label > 0.5) {
		m.correct++
	}
	m.n++
}

// Loss is the mean binary cross entropy so far.
func (m *Metrics) Loss() float64 {
	if m.n == 0 {
		return 0
	}
	return m.loss / float64(m.n)
}

// Accuracy is the fraction of pixels whose thresholded probability matches
// the label.
func (m *Metrics) Accuracy() float64 {
	if m.n == 0 {
		return 0
	}
	return float64(m.correct) / float64(m.n)
}

// Count is the number of pixels recorded.
func (m *Metrics) Count() int { return m.n }

// Evaluate scores every patch of ds and returns the pixel-level metrics.
func Evaluate(ctx context.Context, s predict.Scorer, ds patch.Dataset) (Metrics, error) {
	var m Metrics
	for i, x := range ds.X {
		if err := ctx.Err(); err != nil {
			return m, err
		}
		pred, err := s.Predict(ctx, x)
		if err != nil {
			return m, fmt.Errorf("patch %d: %w", i, err)
		}
		y := ds.Y[i]
		if len(pred.Data) != len(y.Data) {
			return m, fmt.Errorf("patch %d: %w: %dx%d vs label %dx%d", i, predict.ErrScoreShape, pred.Rows, pred.Cols, y.Rows, y.Cols)
		}
		for k, p := range pred.Data {
			m.Add(y.Data[k], p)
		}
	}
	return m, nil
}
