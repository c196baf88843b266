package patch

import (
	"fmt"

	"github.com/hydrosat/patchseg/internal/raster"
)

// ExtractCube cuts size x size windows out of cube at the given stride. Every
// patch is an independent copy carrying all channels.
func ExtractCube(cube *raster.Cube, size, stride int) ([]*raster.Cube, Layout, error) {
	layout, err := NewLayout(cube.Rows, cube.Cols, size, stride)
	if err != nil {
		return nil, Layout{}, err
	}
	out := make([]*raster.Cube, 0, layout.Len())
	for idx := 0; idx < layout.Len(); idx++ {
		r, c := layout.Origin(idx)
		w, err := cube.Window(r, c, size, size)
		if err != nil {
			return nil, Layout{}, fmt.Errorf("patch %d: %w", idx, err)
		}
		out = append(out, w)
	}
	return out, layout, nil
}

// ExtractGrid is ExtractCube for single-plane rasters such as label masks.
func ExtractGrid(g *raster.Grid, size, stride int) ([]*raster.Grid, Layout, error) {
	layout, err := NewLayout(g.Rows, g.Cols, size, stride)
	if err != nil {
		return nil, Layout{}, err
	}
	out := make([]*raster.Grid, 0, layout.Len())
	for idx := 0; idx < layout.Len(); idx++ {
		r, c := layout.Origin(idx)
		w, err := g.Window(r, c, size, size)
		if err != nil {
			return nil, Layout{}, fmt.Errorf("patch %d: %w", idx, err)
		}
		out = append(out, w)
	}
	return out, layout, nil
}

// AssembleGrid writes patches back at their layout positions into a
// rows x cols grid. Where windows overlap the later patch wins; cells no
// window covers are left at zero. For a tiling with stride == size this is
// the exact inverse of ExtractGrid over the covered extent.
func AssembleGrid(patches []*raster.Grid, layout Layout, rows, cols int) (*raster.Grid, error) {
	if len(patches) != layout.Len() {
		return nil, fmt.Errorf("got %d patches for a %dx%d layout", len(patches), layout.Rows, layout.Cols)
	}
	if cr, cc := layout.Covered(); cr > rows || cc > cols {
		return nil, fmt.Errorf("layout covers %dx%d, larger than %dx%d output", cr, cc, rows, cols)
	}
	out := raster.NewGrid(rows, cols)
	for idx, p := range patches {
		if p.Rows != layout.Size || p.Cols != layout.Size {
			return nil, fmt.Errorf("patch %d is %dx%d, want %dx%d", idx, p.Rows, p.Cols, layout.Size, layout.Size)
		}
		r0, c0 := layout.Origin(idx)
		for r := 0; r < p.Rows; r++ {
			copy(out.Data[(r0+r)*cols+c0:(r0+r)*cols+c0+p.Cols], p.Data[r*p.Cols:(r+1)*p.Cols])
		}
	}
	return out, nil
}
