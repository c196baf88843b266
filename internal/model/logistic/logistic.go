// Package logistic is a reference model.Driver: a per-pixel logistic
// regression over the calibrated channel vector, trained with Adam on binary
// cross entropy.
//
// It exists so the train and predict commands run end to end without an
// external deep-learning runtime; a convolutional driver plugs in through
// the same model.Driver interface.
package logistic

import (
	"compress/gzip"
	"context"
	"encoding/gob"
	"fmt"
	"io"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"

	"github.com/hydrosat/patchseg/internal/model"
	"github.com/hydrosat/patchseg/internal/patch"
	"github.com/hydrosat/patchseg/internal/raster"
)

// snapshotFormat versions the persisted layout.
const snapshotFormat = 1

// Driver trains logistic models. The zero value is ready to use.
type Driver struct {
	// Seed drives the per-epoch batch shuffle.
	Seed uint64

	// OnEpoch, if set, is called after every epoch.
	OnEpoch func(model.EpochMetrics)
}

// Model scores each pixel independently as sigmoid(w.x + b).
type Model struct {
	def     model.Definition
	weights []float64
	bias    float64
}

// Definition returns the definition the model was trained with.
func (m *Model) Definition() model.Definition { return m.def }

// Weights returns a copy of the per-channel weights.
func (m *Model) Weights() []float64 { return append([]float64(nil), m.weights...) }

// Bias returns the intercept.
func (m *Model) Bias() float64 { return m.bias }

func (m *Model) prob(px []float64) float64 {
	return sigmoid(floats.Dot(m.weights, px) + m.bias)
}

// Predict returns per-pixel probabilities for tile.
func (m *Model) Predict(ctx context.Context, tile *raster.Cube) (*raster.Grid, error) {
	if tile.Channels != len(m.weights) {
		return nil, fmt.Errorf("tile has %d channels, model expects %d", tile.Channels, len(m.weights))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := raster.NewGrid(tile.Rows, tile.Cols)
	for r := 0; r < tile.Rows; r++ {
		for c := 0; c < tile.Cols; c++ {
			out.Set(r, c, m.prob(tile.Pixel(r, c)))
		}
	}
	return out, nil
}

type snapshot struct {
	Format     int
	Definition model.Definition
	Weights    []float64
	Bias       float64
}

// Save writes the model as a gzip-compressed gob stream.
func (m *Model) Save(w io.Writer) error {
	gz := gzip.NewWriter(w)
	enc := gob.NewEncoder(gz)
	if err := enc.Encode(snapshot{Format: snapshotFormat, Definition: m.def, Weights: m.weights, Bias: m.bias}); err != nil {
		gz.Close()
		return fmt.Errorf("failed to encode model: %w", err)
	}
	return gz.Close()
}

// Load restores a model written by Save.
func Load(r io.Reader) (*Model, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	var s snapshot
	if err := gob.NewDecoder(gz).Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}
	if s.Format != snapshotFormat {
		return nil, fmt.Errorf("unsupported model format %d", s.Format)
	}
	if len(s.Weights) != s.Definition.InputShape[2] {
		return nil, fmt.Errorf("model has %d weights for %d channels", len(s.Weights), s.Definition.InputShape[2])
	}
	return &Model{def: s.Definition, weights: s.Weights, bias: s.Bias}, nil
}

// Train fits a model on train and reports validation metrics on test after
// every epoch. Weights start at zero, so results depend only on the data,
// the definition and Seed.
func (d *Driver) Train(ctx context.Context, def model.Definition, train, test patch.Dataset, batchSize, epochs int) (model.Model, *model.History, error) {
	if err := def.Validate(); err != nil {
		return nil, nil, err
	}
	if batchSize <= 0 || epochs <= 0 {
		return nil, nil, fmt.Errorf("batch size and epochs must be positive, got %d and %d", batchSize, epochs)
	}
	if train.Len() == 0 {
		return nil, nil, fmt.Errorf("empty training set")
	}
	for name, ds := range map[string]patch.Dataset{"train": train, "test": test} {
		if err := checkShapes(def, ds); err != nil {
			return nil, nil, fmt.Errorf("%s set: %w", name, err)
		}
	}

	channels := def.InputShape[2]
	params := make([]float64, channels+1) // weights then bias
	m := &Model{def: def, weights: params[:channels:channels]}
	opt := newAdam(def.LearningRate, channels+1)
	grad := make([]float64, channels+1)
	rng := rand.New(rand.NewPCG(d.Seed, d.Seed))
	hist := &model.History{}

	for epoch := 1; epoch <= epochs; epoch++ {
		order := rng.Perm(train.Len())
		var trainMetrics model.Metrics
		for start := 0; start < len(order); start += batchSize {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
			batch := order[start:min(start+batchSize, len(order))]
			m.gradient(train, batch, grad, &trainMetrics)
			opt.step(params, grad)
			m.bias = params[channels]
		}

		em := model.EpochMetrics{
			Epoch:          epoch,
			Loss:           trainMetrics.Loss(),
			BinaryAccuracy: trainMetrics.Accuracy(),
		}
		if test.Len() > 0 {
			val, err := model.Evaluate(ctx, m, test)
			if err != nil {
				return nil, nil, err
			}
			em.ValLoss, em.ValBinaryAccuracy = val.Loss(), val.Accuracy()
		}
		hist.Epochs = append(hist.Epochs, em)
		if d.OnEpoch != nil {
			d.OnEpoch(em)
		}
	}
	return m, hist, nil
}

// gradient fills grad with the mean BCE gradient over every pixel of the
// batch, weights first and bias last, and records the batch in metrics.
func (m *Model) gradient(ds patch.Dataset, batch []int, grad []float64, metrics *model.Metrics) {
	for i := range grad {
		grad[i] = 0
	}
	channels := len(m.weights)
	pixels := 0
	for _, idx := range batch {
		x, y := ds.X[idx], ds.Y[idx]
		for k, label := range y.Data {
			px := x.Data[k*channels : (k+1)*channels]
			p := m.prob(px)
			floats.AddScaled(grad[:channels], p-label, px)
			grad[channels] += p - label
			metrics.Add(label, p)
		}
		pixels += len(y.Data)
	}
	if pixels > 0 {
		floats.Scale(1/float64(pixels), grad)
	}
}

func checkShapes(def model.Definition, ds patch.Dataset) error {
	if len(ds.X) != len(ds.Y) {
		return fmt.Errorf("%d inputs but %d labels", len(ds.X), len(ds.Y))
	}
	rows, cols, channels := def.InputShape[0], def.InputShape[1], def.InputShape[2]
	for i, x := range ds.X {
		if x.Rows != rows || x.Cols != cols || x.Channels != channels {
			return fmt.Errorf("patch %d is %dx%dx%d, want %v", i, x.Rows, x.Cols, x.Channels, def.InputShape)
		}
		if y := ds.Y[i]; y.Rows != rows || y.Cols != cols {
			return fmt.Errorf("label %d is %dx%d, want %dx%d", i, y.Rows, y.Cols, rows, cols)
		}
	}
	return nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
