package patch

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/hydrosat/patchseg/internal/raster"
)

// Split shuffles the indices 0..n-1 with a PCG source seeded by seed and
// returns ceil(testFraction*n) of them as the test set, the rest as train.
// The same (n, testFraction, seed) always yields the same partition.
func Split(n int, testFraction float64, seed uint64) (train, test []int) {
	if n <= 0 {
		return nil, nil
	}
	nTest := int(math.Ceil(testFraction * float64(n)))
	nTest = min(max(nTest, 0), n)

	perm := rand.New(rand.NewPCG(seed, seed)).Perm(n)
	return perm[nTest:], perm[:nTest]
}

// Dataset pairs input patches with their label patches; X[i] and Y[i]
// always come from the same window.
type Dataset struct {
	X []*raster.Cube
	Y []*raster.Grid
}

// Len is the number of samples.
func (d Dataset) Len() int { return len(d.X) }

// Subset returns the samples at idx, in that order. Patch data is shared.
func (d Dataset) Subset(idx []int) Dataset {
	out := Dataset{
		X: make([]*raster.Cube, len(idx)),
		Y: make([]*raster.Grid, len(idx)),
	}
	for k, i := range idx {
		out.X[k] = d.X[i]
		out.Y[k] = d.Y[i]
	}
	return out
}

// Build extracts aligned patches from a calibrated cube and its binary mask
// and partitions them with Split.
func Build(cube *raster.Cube, mask *raster.Grid, size, stride int, testFraction float64, seed uint64) (train, test Dataset, err error) {
	if cube.Rows != mask.Rows || cube.Cols != mask.Cols {
		return Dataset{}, Dataset{}, fmt.Errorf("cube is %dx%d but mask is %dx%d", cube.Rows, cube.Cols, mask.Rows, mask.Cols)
	}
	xs, layout, err := ExtractCube(cube, size, stride)
	if err != nil {
		return Dataset{}, Dataset{}, err
	}
	if layout.Len() == 0 {
		return Dataset{}, Dataset{}, fmt.Errorf("%w: %dx%d raster, %d patch", ErrNoPatches, cube.Rows, cube.Cols, size)
	}
	ys, _, err := ExtractGrid(mask, size, stride)
	if err != nil {
		return Dataset{}, Dataset{}, err
	}
	all := Dataset{X: xs, Y: ys}
	trainIdx, testIdx := Split(all.Len(), testFraction, seed)
	return all.Subset(trainIdx), all.Subset(testIdx), nil
}
