package predict

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydrosat/patchseg/internal/raster"
)

// rampCube fills channel 0 with 1 + flat pixel index so every pixel is
// distinguishable and nonzero.
func rampCube(rows, cols int) *raster.Cube {
	c := raster.NewCube(rows, cols, raster.CalibratedChannels)
	for r := 0; r < rows; r++ {
		for col := 0; col < cols; col++ {
			c.Set(r, col, 0, float64(1+r*cols+col))
			c.Set(r, col, 4, 0.5)
		}
	}
	return c
}

// echoScorer scores each pixel with its channel 0 value.
var echoScorer = ScorerFunc(func(_ context.Context, tile *raster.Cube) (*raster.Grid, error) {
	return tile.Channel(0), nil
})

func TestParsePolicy(t *testing.T) {
	for _, s := range []string{"pad", "drop", "reject"} {
		p, err := ParsePolicy(s)
		require.NoError(t, err)
		assert.Equal(t, Policy(s), p)
	}
	_, err := ParsePolicy("mirror")
	assert.Error(t, err)
}

func TestReassemble_PadCoversEveryPixel(t *testing.T) {
	tests := []struct {
		name       string
		rows, cols int
		tile, b    int
	}{
		{"exact multiple", 24, 16, 8, 2},
		{"ragged", 23, 17, 8, 2},
		{"smaller than tile", 5, 3, 8, 2},
		{"no boundary", 10, 9, 4, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cube := rampCube(tt.rows, tt.cols)
			tiler := Tiler{TileSize: tt.tile, Boundary: tt.b, Policy: PolicyPad}

			got, err := tiler.Reassemble(context.Background(), cube, echoScorer)
			require.NoError(t, err)
			if diff := cmp.Diff(cube.Channel(0).Data, got.Data); diff != "" {
				t.Errorf("reassembled scene differs (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReassemble_DropLeavesBoundaryAndRemainder(t *testing.T) {
	cube := rampCube(21, 20)
	tiler := Tiler{TileSize: 8, Boundary: 2, Policy: PolicyDrop}

	got, err := tiler.Reassemble(context.Background(), cube, echoScorer)
	require.NoError(t, err)

	// 4 tile rows and cols; interiors span [2, 18) on both axes.
	for r := 0; r < 21; r++ {
		for c := 0; c < 20; c++ {
			inside := r >= 2 && r < 18 && c >= 2 && c < 18
			if inside {
				require.Equal(t, cube.At(r, c, 0), got.At(r, c), "(%d,%d)", r, c)
			} else {
				require.Zero(t, got.At(r, c), "(%d,%d)", r, c)
			}
		}
	}
}

func TestReassemble_Reject(t *testing.T) {
	tiler := Tiler{TileSize: 8, Boundary: 2, Policy: PolicyReject}

	_, err := tiler.Reassemble(context.Background(), rampCube(20, 20), echoScorer)
	assert.NoError(t, err)

	for _, shape := range [][2]int{{21, 20}, {20, 22}, {6, 6}} {
		_, err := tiler.Reassemble(context.Background(), rampCube(shape[0], shape[1]), echoScorer)
		assert.ErrorIs(t, err, ErrPartialTile, "%v", shape)
	}
}

func TestReassemble_Idempotent(t *testing.T) {
	cube := rampCube(30, 19)
	for _, p := range []Policy{PolicyPad, PolicyDrop} {
		tiler := Tiler{TileSize: 10, Boundary: 3, Policy: p}
		first, err := tiler.Reassemble(context.Background(), cube, echoScorer)
		require.NoError(t, err)
		second, err := tiler.Reassemble(context.Background(), cube, echoScorer)
		require.NoError(t, err)
		assert.True(t, cmp.Equal(first, second), "policy %s", p)
	}
}

func TestReassemble_NoPixelWrittenTwice(t *testing.T) {
	cube := rampCube(17, 26)
	tiler := Tiler{TileSize: 9, Boundary: 2, Policy: PolicyPad}

	// Every tile scores all ones; summing the pastes into a counter would
	// exceed 1 on any overlap, so the output must be exactly 1 everywhere.
	counts := raster.NewGrid(17, 26)
	ones := ScorerFunc(func(_ context.Context, tile *raster.Cube) (*raster.Grid, error) {
		g := raster.NewGrid(tile.Rows, tile.Cols)
		for i := range g.Data {
			g.Data[i] = 1
		}
		return g, nil
	})
	out, err := tiler.Reassemble(context.Background(), cube, ones)
	require.NoError(t, err)

	s := tiler.Stride()
	for _, r0 := range tiler.origins(17) {
		for _, c0 := range tiler.origins(26) {
			for r := r0 + 2; r < r0+2+s; r++ {
				for c := c0 + 2; c < c0+2+s; c++ {
					if r >= 0 && r < 17 && c >= 0 && c < 26 {
						counts.Set(r, c, counts.At(r, c)+1)
					}
				}
			}
		}
	}
	for i := range counts.Data {
		require.Equal(t, 1.0, counts.Data[i], "pixel %d", i)
		require.Equal(t, 1.0, out.Data[i], "pixel %d", i)
	}
}

func TestReassemble_ScoreShape(t *testing.T) {
	tiler := Tiler{TileSize: 8, Boundary: 2, Policy: PolicyPad}
	small := ScorerFunc(func(_ context.Context, _ *raster.Cube) (*raster.Grid, error) {
		return raster.NewGrid(7, 8), nil
	})

	_, err := tiler.Reassemble(context.Background(), rampCube(8, 8), small)
	assert.ErrorIs(t, err, ErrScoreShape)
}

func TestReassemble_ScorerError(t *testing.T) {
	boom := errors.New("boom")
	failing := ScorerFunc(func(_ context.Context, _ *raster.Cube) (*raster.Grid, error) {
		return nil, boom
	})
	tiler := Tiler{TileSize: 8, Boundary: 2, Policy: PolicyPad}

	_, err := tiler.Reassemble(context.Background(), rampCube(8, 8), failing)
	assert.ErrorIs(t, err, boom)
}

func TestReassemble_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tiler := Tiler{TileSize: 8, Boundary: 2, Policy: PolicyPad}

	_, err := tiler.Reassemble(ctx, rampCube(16, 16), echoScorer)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReassemble_InvalidTiler(t *testing.T) {
	tests := []Tiler{
		{TileSize: 0, Boundary: 0, Policy: PolicyPad},
		{TileSize: 8, Boundary: -1, Policy: PolicyPad},
		{TileSize: 8, Boundary: 4, Policy: PolicyPad},
		{TileSize: 8, Boundary: 2, Policy: "wrap"},
	}
	for _, tiler := range tests {
		_, err := tiler.Reassemble(context.Background(), rampCube(8, 8), echoScorer)
		assert.Error(t, err, "%+v", tiler)
	}
}

func TestThreshold(t *testing.T) {
	g, err := raster.GridFrom(1, 4, []float64{0.1, 0.5, 0.51, 0.9})
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 0, 1, 1}, Threshold(g, 0.5).Data)
}
