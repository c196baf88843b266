package model

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydrosat/patchseg/internal/patch"
	"github.com/hydrosat/patchseg/internal/predict"
	"github.com/hydrosat/patchseg/internal/raster"
)

func TestArtifactName(t *testing.T) {
	p := ArtifactParams{Epochs: 100, BatchSize: 64, Class: "shadow", PatchSize: 64, Blocks: 2}
	date := time.Date(2026, 10, 19, 23, 59, 0, 0, time.UTC)

	assert.Equal(t, "vz01_sparcs_2D_100epochs_64bs_shadow_64patch_2blocks_2026-10-19.gob.gz", ArtifactName(p, date))
}

func TestDefinition_Validate(t *testing.T) {
	ok := Definition{InputShape: [3]int{64, 64, 5}, Blocks: 2, LearningRate: 1e-4}
	assert.NoError(t, ok.Validate())

	tests := []struct {
		name string
		def  Definition
	}{
		{"zero channels", Definition{InputShape: [3]int{64, 64, 0}, Blocks: 2, LearningRate: 1e-4}},
		{"zero blocks", Definition{InputShape: [3]int{64, 64, 5}, LearningRate: 1e-4}},
		{"zero learning rate", Definition{InputShape: [3]int{64, 64, 5}, Blocks: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.def.Validate())
		})
	}
}

func TestHistory_Last(t *testing.T) {
	var h *History
	_, ok := h.Last()
	assert.False(t, ok)

	h = &History{Epochs: []EpochMetrics{{Epoch: 1}, {Epoch: 2, Loss: 0.3}}}
	last, ok := h.Last()
	require.True(t, ok)
	assert.Equal(t, 2, last.Epoch)
}

func TestMetrics(t *testing.T) {
	var m Metrics
	assert.Zero(t, m.Loss())
	assert.Zero(t, m.Accuracy())

	m.Add(1, 0.9)
	m.Add(0, 0.2)
	m.Add(1, 0.4)
	m.Add(0, 0)

	want := -(math.Log(0.9) + math.Log(0.8) + math.Log(0.4) + math.Log(1-1e-7)) / 4
	assert.InDelta(t, want, m.Loss(), 1e-12)
	assert.InDelta(t, 0.75, m.Accuracy(), 1e-12)
	assert.Equal(t, 4, m.Count())
}

func TestEvaluate(t *testing.T) {
	x := raster.NewCube(2, 2, 1)
	y, err := raster.GridFrom(2, 2, []float64{1, 0, 1, 1})
	require.NoError(t, err)
	ds := patch.Dataset{X: []*raster.Cube{x}, Y: []*raster.Grid{y}}

	half := predict.ScorerFunc(func(_ context.Context, tile *raster.Cube) (*raster.Grid, error) {
		g := raster.NewGrid(tile.Rows, tile.Cols)
		for i := range g.Data {
			g.Data[i] = 0.75
		}
		return g, nil
	})
	m, err := Evaluate(context.Background(), half, ds)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, m.Accuracy(), 1e-12)

	wrong := predict.ScorerFunc(func(_ context.Context, _ *raster.Cube) (*raster.Grid, error) {
		return raster.NewGrid(1, 1), nil
	})
	_, err = Evaluate(context.Background(), wrong, ds)
	assert.ErrorIs(t, err, predict.ErrScoreShape)
}
