package raster

import "fmt"

// Grid is a rows x cols plane of samples stored row-major.
type Grid struct {
	Rows int
	Cols int
	Data []float64
}

// NewGrid allocates a zeroed grid.
func NewGrid(rows, cols int) *Grid {
	return &Grid{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

// GridFrom wraps data without copying. len(data) must equal rows*cols.
func GridFrom(rows, cols int, data []float64) (*Grid, error) {
	if len(data) != rows*cols {
		return nil, fmt.Errorf("grid data has %d samples, want %d (%dx%d)", len(data), rows*cols, rows, cols)
	}
	return &Grid{Rows: rows, Cols: cols, Data: data}, nil
}

// At returns the sample at (r, c).
func (g *Grid) At(r, c int) float64 { return g.Data[r*g.Cols+c] }

// Set stores v at (r, c).
func (g *Grid) Set(r, c int, v float64) { g.Data[r*g.Cols+c] = v }

// SameShape reports whether g and o have identical dimensions.
func (g *Grid) SameShape(o *Grid) bool {
	return g.Rows == o.Rows && g.Cols == o.Cols
}

// Clone returns a deep copy.
func (g *Grid) Clone() *Grid {
	out := &Grid{Rows: g.Rows, Cols: g.Cols, Data: make([]float64, len(g.Data))}
	copy(out.Data, g.Data)
	return out
}

// Window copies the h x w region whose top-left corner is (r0, c0).
func (g *Grid) Window(r0, c0, h, w int) (*Grid, error) {
	if r0 < 0 || c0 < 0 || h < 0 || w < 0 || r0+h > g.Rows || c0+w > g.Cols {
		return nil, fmt.Errorf("window %dx%d at (%d,%d) outside %dx%d grid", h, w, r0, c0, g.Rows, g.Cols)
	}
	out := NewGrid(h, w)
	for r := 0; r < h; r++ {
		copy(out.Data[r*w:(r+1)*w], g.Data[(r0+r)*g.Cols+c0:(r0+r)*g.Cols+c0+w])
	}
	return out, nil
}

// HConcatGrids joins grids along the column axis. All inputs must have the
// same row count.
func HConcatGrids(grids ...*Grid) (*Grid, error) {
	if len(grids) == 0 {
		return nil, fmt.Errorf("no grids to concatenate")
	}
	rows := grids[0].Rows
	cols := 0
	for i, g := range grids {
		if g.Rows != rows {
			return nil, fmt.Errorf("grid %d has %d rows, want %d", i, g.Rows, rows)
		}
		cols += g.Cols
	}
	out := NewGrid(rows, cols)
	for r := 0; r < rows; r++ {
		off := r * cols
		for _, g := range grids {
			copy(out.Data[off:off+g.Cols], g.Data[r*g.Cols:(r+1)*g.Cols])
			off += g.Cols
		}
	}
	return out, nil
}
