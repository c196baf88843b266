package patch

import (
	"errors"
	"fmt"
)

// ErrNoPatches is returned when a raster is smaller than one window.
var ErrNoPatches = errors.New("raster smaller than patch size")

// Positions returns how many windows of size fit along an axis of extent when
// stepping by stride: (extent-size)/stride + 1, or 0 if extent < size.
func Positions(extent, size, stride int) int {
	if size <= 0 || stride <= 0 || extent < size {
		return 0
	}
	return (extent-size)/stride + 1
}

// Layout records the window grid that produced a flat list of patches.
// Rows and Cols count window positions (not pixels) along each axis.
type Layout struct {
	Rows   int
	Cols   int
	Size   int
	Stride int
}

// NewLayout computes the window grid over a rows x cols raster.
func NewLayout(rows, cols, size, stride int) (Layout, error) {
	if size <= 0 {
		return Layout{}, fmt.Errorf("patch size must be positive, got %d", size)
	}
	if stride <= 0 {
		return Layout{}, fmt.Errorf("patch stride must be positive, got %d", stride)
	}
	return Layout{
		Rows:   Positions(rows, size, stride),
		Cols:   Positions(cols, size, stride),
		Size:   size,
		Stride: stride,
	}, nil
}

// Len is the number of windows.
func (l Layout) Len() int { return l.Rows * l.Cols }

// Index maps grid position (i, j) to the flat patch index.
func (l Layout) Index(i, j int) int { return i*l.Cols + j }

// Origin returns the pixel coordinates of the top-left corner of patch idx.
func (l Layout) Origin(idx int) (row, col int) {
	i, j := idx/l.Cols, idx%l.Cols
	return i * l.Stride, j * l.Stride
}

// Covered reports the pixel extent spanned by the windows: the bottom-right
// remainder beyond it is not represented in any patch.
func (l Layout) Covered() (rows, cols int) {
	if l.Len() == 0 {
		return 0, 0
	}
	return (l.Rows-1)*l.Stride + l.Size, (l.Cols-1)*l.Stride + l.Size
}
