package predict

import (
	"context"
	"errors"
	"fmt"

	"github.com/hydrosat/patchseg/internal/raster"
)

var (
	// ErrPartialTile is returned under PolicyReject when the tile grid would
	// leave part of the scene interior unscored.
	ErrPartialTile = errors.New("scene does not divide into whole tiles")

	// ErrScoreShape is returned when a scorer's output is not TileSize x TileSize.
	ErrScoreShape = errors.New("scorer output has wrong shape")
)

// Scorer produces a per-pixel score for one tile.
type Scorer interface {
	Predict(ctx context.Context, tile *raster.Cube) (*raster.Grid, error)
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(ctx context.Context, tile *raster.Cube) (*raster.Grid, error)

// Predict calls f.
func (f ScorerFunc) Predict(ctx context.Context, tile *raster.Cube) (*raster.Grid, error) {
	return f(ctx, tile)
}

// Policy decides what happens to scene pixels the plain tile grid misses.
type Policy string

const (
	// PolicyPad replicates edge pixels outward so every scene pixel falls in
	// exactly one tile interior.
	PolicyPad Policy = "pad"
	// PolicyDrop scores only whole tiles inside the scene. The boundary ring
	// and the bottom/right remainder stay zero.
	PolicyDrop Policy = "drop"
	// PolicyReject behaves like PolicyDrop but fails with ErrPartialTile if
	// any interior pixel would be left unscored.
	PolicyReject Policy = "reject"
)

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyPad, PolicyDrop, PolicyReject:
		return p, nil
	}
	return "", fmt.Errorf("unknown edge policy %q (want pad, drop or reject)", s)
}

// Tiler reassembles full-scene predictions from overlapping tiles.
type Tiler struct {
	TileSize int
	Boundary int
	Policy   Policy
}

// Stride is the distance between tile origins, TileSize - 2*Boundary.
func (t Tiler) Stride() int { return t.TileSize - 2*t.Boundary }

func (t Tiler) validate() error {
	if t.TileSize <= 0 {
		return fmt.Errorf("tile size must be positive, got %d", t.TileSize)
	}
	if t.Boundary < 0 {
		return fmt.Errorf("boundary must be non-negative, got %d", t.Boundary)
	}
	if t.Stride() <= 0 {
		return fmt.Errorf("boundary %d leaves no interior in a %d tile", t.Boundary, t.TileSize)
	}
	if _, err := ParsePolicy(string(t.Policy)); err != nil {
		return err
	}
	return nil
}

// origins returns the top-left corners of the tiles along one axis, in scene
// coordinates. Under PolicyPad the first origin is -Boundary.
func (t Tiler) origins(extent int) []int {
	s := t.Stride()
	var out []int
	if t.Policy == PolicyPad {
		n := (extent + s - 1) / s
		for i := 0; i < n; i++ {
			out = append(out, i*s-t.Boundary)
		}
		return out
	}
	if extent < t.TileSize {
		return nil
	}
	for i := 0; i <= (extent-t.TileSize)/s; i++ {
		out = append(out, i*s)
	}
	return out
}

// checkCoverage reports ErrPartialTile when whole tiles cannot reach the
// scene's bottom/right interior edge.
func (t Tiler) checkCoverage(rows, cols int) error {
	s := t.Stride()
	if rows < t.TileSize || cols < t.TileSize || (rows-t.TileSize)%s != 0 || (cols-t.TileSize)%s != 0 {
		return fmt.Errorf("%w: %dx%d scene, tile %d, stride %d", ErrPartialTile, rows, cols, t.TileSize, s)
	}
	return nil
}

// Reassemble scores cube tile by tile and returns the stitched rows x cols
// prediction. The output is deterministic for a deterministic scorer and no
// output pixel is written twice.
func (t Tiler) Reassemble(ctx context.Context, cube *raster.Cube, scorer Scorer) (*raster.Grid, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}
	if t.Policy == PolicyReject {
		if err := t.checkCoverage(cube.Rows, cube.Cols); err != nil {
			return nil, err
		}
	}

	rowOrigins := t.origins(cube.Rows)
	colOrigins := t.origins(cube.Cols)
	if len(rowOrigins) == 0 || len(colOrigins) == 0 {
		opsf("Scene %dx%d is smaller than one %d tile; prediction is empty", cube.Rows, cube.Cols, t.TileSize)
	}
	diagf("Reassembling %dx%d scene: %dx%d tiles, size %d, boundary %d, policy %s",
		cube.Rows, cube.Cols, len(rowOrigins), len(colOrigins), t.TileSize, t.Boundary, t.Policy)

	out := raster.NewGrid(cube.Rows, cube.Cols)
	for _, r0 := range rowOrigins {
		for _, c0 := range colOrigins {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			tile := t.tileAt(cube, r0, c0)
			scores, err := scorer.Predict(ctx, tile)
			if err != nil {
				return nil, fmt.Errorf("tile at (%d,%d): %w", r0, c0, err)
			}
			if scores.Rows != t.TileSize || scores.Cols != t.TileSize {
				return nil, fmt.Errorf("%w: tile at (%d,%d) scored %dx%d, want %dx%d",
					ErrScoreShape, r0, c0, scores.Rows, scores.Cols, t.TileSize, t.TileSize)
			}
			t.paste(out, scores, r0, c0)
			tracef("Scored tile at (%d,%d)", r0, c0)
		}
	}
	return out, nil
}

// tileAt copies the TileSize window at (r0, c0). Coordinates outside the
// scene are clamped to the nearest edge pixel.
func (t Tiler) tileAt(cube *raster.Cube, r0, c0 int) *raster.Cube {
	n := t.TileSize
	if r0 >= 0 && c0 >= 0 && r0+n <= cube.Rows && c0+n <= cube.Cols {
		w, _ := cube.Window(r0, c0, n, n)
		return w
	}
	tile := raster.NewCube(n, n, cube.Channels)
	for r := 0; r < n; r++ {
		sr := clamp(r0+r, cube.Rows)
		for c := 0; c < n; c++ {
			sc := clamp(c0+c, cube.Cols)
			copy(tile.Pixel(r, c), cube.Pixel(sr, sc))
		}
	}
	return tile
}

// paste copies the interior of scores into out at its scene position,
// skipping any part that falls outside the scene.
func (t Tiler) paste(out, scores *raster.Grid, r0, c0 int) {
	b := t.Boundary
	for r := b; r < t.TileSize-b; r++ {
		or := r0 + r
		if or < 0 || or >= out.Rows {
			continue
		}
		for c := b; c < t.TileSize-b; c++ {
			oc := c0 + c
			if oc < 0 || oc >= out.Cols {
				continue
			}
			out.Set(or, oc, scores.At(r, c))
		}
	}
}

func clamp(i, n int) int {
	return min(max(i, 0), n-1)
}

// Threshold returns a binary map with 1 where g exceeds cut.
func Threshold(g *raster.Grid, cut float64) *raster.Grid {
	out := raster.NewGrid(g.Rows, g.Cols)
	for i, v := range g.Data {
		if v > cut {
			out.Data[i] = 1
		}
	}
	return out
}
