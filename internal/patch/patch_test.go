package patch

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydrosat/patchseg/internal/raster"
)

func seqGrid(rows, cols int) *raster.Grid {
	g := raster.NewGrid(rows, cols)
	for i := range g.Data {
		g.Data[i] = float64(i)
	}
	return g
}

func seqCube(rows, cols, channels int) *raster.Cube {
	c := raster.NewCube(rows, cols, channels)
	for i := range c.Data {
		c.Data[i] = float64(i)
	}
	return c
}

func TestPositions(t *testing.T) {
	tests := []struct {
		extent, size, stride, want int
	}{
		{100, 64, 64, 1},
		{100, 50, 50, 2},
		{128, 64, 54, 2},
		{64, 64, 54, 1},
		{63, 64, 54, 0},
		{10, 3, 1, 8},
		{10, 0, 1, 0},
		{10, 3, 0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Positions(tt.extent, tt.size, tt.stride), "%+v", tt)
	}
}

func TestExtract_100x100Counts(t *testing.T) {
	cube := seqCube(100, 100, 5)

	one, layout, err := ExtractCube(cube, 64, 64)
	require.NoError(t, err)
	assert.Len(t, one, 1)
	assert.Equal(t, 1, layout.Len())

	four, layout, err := ExtractCube(cube, 50, 50)
	require.NoError(t, err)
	assert.Len(t, four, 4)
	assert.Equal(t, Layout{Rows: 2, Cols: 2, Size: 50, Stride: 50}, layout)
	for _, p := range four {
		assert.Equal(t, 50, p.Rows)
		assert.Equal(t, 50, p.Cols)
		assert.Equal(t, 5, p.Channels)
	}
}

func TestExtractCube_RowMajorOrigins(t *testing.T) {
	cube := seqCube(7, 9, 2)

	patches, layout, err := ExtractCube(cube, 3, 2)
	require.NoError(t, err)
	require.Equal(t, Layout{Rows: 3, Cols: 4, Size: 3, Stride: 2}, layout)

	for i := 0; i < layout.Rows; i++ {
		for j := 0; j < layout.Cols; j++ {
			idx := layout.Index(i, j)
			r0, c0 := layout.Origin(idx)
			assert.Equal(t, i*2, r0)
			assert.Equal(t, j*2, c0)
			p := patches[idx]
			for ch := 0; ch < 2; ch++ {
				assert.Equal(t, cube.At(r0, c0, ch), p.At(0, 0, ch))
				assert.Equal(t, cube.At(r0+2, c0+2, ch), p.At(2, 2, ch))
			}
		}
	}
}

func TestExtractGrid_PatchesAreCopies(t *testing.T) {
	g := seqGrid(4, 4)
	patches, _, err := ExtractGrid(g, 2, 2)
	require.NoError(t, err)

	patches[0].Set(0, 0, -1)
	assert.Equal(t, 0.0, g.At(0, 0))
}

func TestAssembleGrid_RoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		rows, cols int
		size       int
	}{
		{"exact", 12, 8, 4},
		{"remainder dropped", 13, 10, 4},
		{"single", 5, 5, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := seqGrid(tt.rows, tt.cols)
			patches, layout, err := ExtractGrid(g, tt.size, tt.size)
			require.NoError(t, err)

			back, err := AssembleGrid(patches, layout, tt.rows, tt.cols)
			require.NoError(t, err)

			cr, cc := layout.Covered()
			for r := 0; r < tt.rows; r++ {
				for c := 0; c < tt.cols; c++ {
					want := 0.0
					if r < cr && c < cc {
						want = g.At(r, c)
					}
					require.Equal(t, want, back.At(r, c), "(%d,%d)", r, c)
				}
			}
		})
	}
}

func TestAssembleGrid_Rejects(t *testing.T) {
	g := seqGrid(8, 8)
	patches, layout, err := ExtractGrid(g, 4, 4)
	require.NoError(t, err)

	_, err = AssembleGrid(patches[:3], layout, 8, 8)
	assert.Error(t, err)

	_, err = AssembleGrid(patches, layout, 6, 8)
	assert.Error(t, err)

	patches[1] = raster.NewGrid(3, 4)
	_, err = AssembleGrid(patches, layout, 8, 8)
	assert.Error(t, err)
}

func TestSplit_Deterministic(t *testing.T) {
	train1, test1 := Split(50, 0.1, 2)
	train2, test2 := Split(50, 0.1, 2)

	if diff := cmp.Diff(train1, train2); diff != "" {
		t.Errorf("train differs (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(test1, test2); diff != "" {
		t.Errorf("test differs (-first +second):\n%s", diff)
	}
	assert.Len(t, test1, 5)
	assert.Len(t, train1, 45)
}

func TestSplit_Partition(t *testing.T) {
	for _, n := range []int{1, 2, 9, 31} {
		train, test := Split(n, 0.1, 7)
		seen := make(map[int]bool, n)
		for _, i := range append(append([]int{}, train...), test...) {
			require.False(t, seen[i], "index %d repeated", i)
			seen[i] = true
		}
		assert.Len(t, seen, n)
		assert.NotEmpty(t, test, "ceil keeps at least one test sample")
	}

	train, test := Split(0, 0.1, 2)
	assert.Empty(t, train)
	assert.Empty(t, test)
}

func TestSplit_SeedChangesOrder(t *testing.T) {
	_, a := Split(1000, 0.5, 1)
	_, b := Split(1000, 0.5, 2)
	assert.NotEqual(t, a, b)
}

func TestBuild_KeepsAlignment(t *testing.T) {
	cube := seqCube(20, 30, 5)
	mask := raster.NewGrid(20, 30)
	for r := 0; r < 20; r++ {
		for c := 0; c < 30; c++ {
			mask.Set(r, c, cube.At(r, c, 0))
		}
	}

	train, test, err := Build(cube, mask, 10, 5, 0.25, 2)
	require.NoError(t, err)
	assert.Equal(t, 3*5, train.Len()+test.Len())
	assert.Equal(t, 4, test.Len())

	for _, ds := range []Dataset{train, test} {
		for i := range ds.X {
			assert.Equal(t, ds.X[i].Channel(0).Data, ds.Y[i].Data)
		}
	}
}

func TestBuild_Rejects(t *testing.T) {
	_, _, err := Build(seqCube(10, 10, 5), raster.NewGrid(10, 11), 4, 4, 0.1, 2)
	assert.Error(t, err)

	_, _, err = Build(seqCube(10, 10, 5), raster.NewGrid(10, 10), 16, 16, 0.1, 2)
	assert.True(t, errors.Is(err, ErrNoPatches))
}
