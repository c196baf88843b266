package raster

import "fmt"

// Channel order of a calibrated data cube.
const (
	ChannelBlue = iota
	ChannelGreen
	ChannelRed
	ChannelNIR
	ChannelTemperature

	CalibratedChannels = 5
)

// Cube is a rows x cols x channels array. The channel axis varies fastest:
// sample (r, c, ch) lives at Data[(r*Cols+c)*Channels+ch].
type Cube struct {
	Rows     int
	Cols     int
	Channels int
	Data     []float64
}

// NewCube allocates a zeroed cube.
func NewCube(rows, cols, channels int) *Cube {
	return &Cube{Rows: rows, Cols: cols, Channels: channels, Data: make([]float64, rows*cols*channels)}
}

func (c *Cube) index(r, col, ch int) int { return (r*c.Cols+col)*c.Channels + ch }

// At returns the sample at (r, col, ch).
func (c *Cube) At(r, col, ch int) float64 { return c.Data[c.index(r, col, ch)] }

// Set stores v at (r, col, ch).
func (c *Cube) Set(r, col, ch int, v float64) { c.Data[c.index(r, col, ch)] = v }

// Pixel returns the channel vector at (r, col). The slice aliases Data.
func (c *Cube) Pixel(r, col int) []float64 {
	i := c.index(r, col, 0)
	return c.Data[i : i+c.Channels]
}

// Channel copies one channel out as a Grid.
func (c *Cube) Channel(ch int) *Grid {
	g := NewGrid(c.Rows, c.Cols)
	for i := range g.Data {
		g.Data[i] = c.Data[i*c.Channels+ch]
	}
	return g
}

// SetChannel overwrites one channel from g, which must match the cube's
// spatial shape.
func (c *Cube) SetChannel(ch int, g *Grid) error {
	if g.Rows != c.Rows || g.Cols != c.Cols {
		return fmt.Errorf("channel grid %dx%d does not match cube %dx%d", g.Rows, g.Cols, c.Rows, c.Cols)
	}
	if ch < 0 || ch >= c.Channels {
		return fmt.Errorf("channel %d out of range [0,%d)", ch, c.Channels)
	}
	for i, v := range g.Data {
		c.Data[i*c.Channels+ch] = v
	}
	return nil
}

// Window copies the h x w region whose top-left corner is (r0, c0), keeping
// every channel.
func (c *Cube) Window(r0, c0, h, w int) (*Cube, error) {
	if r0 < 0 || c0 < 0 || h < 0 || w < 0 || r0+h > c.Rows || c0+w > c.Cols {
		return nil, fmt.Errorf("window %dx%d at (%d,%d) outside %dx%d cube", h, w, r0, c0, c.Rows, c.Cols)
	}
	out := NewCube(h, w, c.Channels)
	rowLen := w * c.Channels
	for r := 0; r < h; r++ {
		src := c.index(r0+r, c0, 0)
		copy(out.Data[r*rowLen:(r+1)*rowLen], c.Data[src:src+rowLen])
	}
	return out, nil
}

// HConcat joins cubes along the column axis. All inputs must share the row
// count and channel count.
func HConcat(cubes ...*Cube) (*Cube, error) {
	if len(cubes) == 0 {
		return nil, fmt.Errorf("no cubes to concatenate")
	}
	rows, channels := cubes[0].Rows, cubes[0].Channels
	cols := 0
	for i, c := range cubes {
		if c.Rows != rows {
			return nil, fmt.Errorf("cube %d has %d rows, want %d", i, c.Rows, rows)
		}
		if c.Channels != channels {
			return nil, fmt.Errorf("cube %d has %d channels, want %d", i, c.Channels, channels)
		}
		cols += c.Cols
	}
	out := NewCube(rows, cols, channels)
	for r := 0; r < rows; r++ {
		off := r * cols * channels
		for _, c := range cubes {
			n := c.Cols * channels
			copy(out.Data[off:off+n], c.Data[r*n:(r+1)*n])
			off += n
		}
	}
	return out, nil
}
