package scene

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hydrosat/patchseg/internal/fsutil"
	"github.com/hydrosat/patchseg/internal/label"
	"github.com/hydrosat/patchseg/internal/raster"
)

// Calibrator converts an opened raw scene into a calibrated cube.
type Calibrator interface {
	Calibrate(s raster.Scene) (*raster.Cube, error)
}

// Outcome is the per-scene result of an Assemble call. Err is nil for scenes
// that made it into the composite.
type Outcome struct {
	Index     int // position in filename order
	Name      string
	Rows      int
	Cols      int
	Positives int // pixels in the target class
	Err       error
}

// Used reports whether the scene is part of the composite.
func (o Outcome) Used() bool { return o.Err == nil }

// Result is the assembled training composite.
type Result struct {
	Cube   *raster.Cube
	Mask   *raster.Grid
	Count  int
	Scenes []Outcome
}

// Assembler builds a composite from every usable scene in a directory.
type Assembler struct {
	FS         fsutil.FileSystem
	Opener     raster.Opener
	Calibrator Calibrator
	Target     label.Target

	// Workers bounds how many scenes are processed concurrently. Values
	// below 1 mean 1.
	Workers int

	// Observer, if set, receives each scene's outcome in filename order once
	// the composite has been decided.
	Observer func(Outcome)
}

type processed struct {
	cube *raster.Cube
	mask *raster.Grid
	err  error
}

// Assemble discovers, calibrates and concatenates the scenes in dir.
// Per-scene failures are isolated and reported in Result.Scenes; only
// context cancellation, an unlistable directory or zero usable scenes
// (ErrEmptyDataset) fail the call.
func (a *Assembler) Assemble(ctx context.Context, dir string) (*Result, error) {
	files, err := Discover(a.FS, dir)
	if err != nil {
		return nil, err
	}

	results := make([]processed, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(a.Workers, 1))
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			cube, mask, err := a.processScene(f)
			results[i] = processed{cube: cube, mask: mask, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Scenes: make([]Outcome, len(files))}
	var cubes []*raster.Cube
	var masks []*raster.Grid
	for i, f := range files {
		p := results[i]
		out := Outcome{Index: i, Name: f.Name, Err: p.err}
		if p.err == nil {
			out.Rows, out.Cols = p.cube.Rows, p.cube.Cols
			if len(cubes) > 0 && p.cube.Rows != cubes[0].Rows {
				out.Err = &ShapeMismatchError{
					Scene: f.Name, What: "scene",
					Rows: p.cube.Rows, Cols: p.cube.Cols,
					WantRows: cubes[0].Rows, WantCols: cubes[0].Cols,
				}
			}
		}
		if out.Err != nil {
			a.report(out)
			res.Scenes[i] = out
			continue
		}
		out.Positives = countPositive(p.mask)
		cubes = append(cubes, p.cube)
		masks = append(masks, p.mask)
		diagf("Scene %s: %dx%d, %d target pixels", f.Name, out.Rows, out.Cols, out.Positives)
		a.report(out)
		res.Scenes[i] = out
	}

	res.Count = len(cubes)
	if res.Count == 0 {
		return res, fmt.Errorf("%w in %s (%d candidates)", ErrEmptyDataset, dir, len(files))
	}
	if res.Cube, err = raster.HConcat(cubes...); err != nil {
		return nil, err
	}
	if res.Mask, err = raster.HConcatGrids(masks...); err != nil {
		return nil, err
	}
	diagf("Assembled %d/%d scenes into %dx%d composite", res.Count, len(files), res.Cube.Rows, res.Cube.Cols)
	return res, nil
}

func (a *Assembler) report(o Outcome) {
	if o.Err != nil {
		if expected(o.Err) {
			diagf("Skipping scene %s: %v", o.Name, o.Err)
		} else {
			opsf("Skipping scene %s: %v", o.Name, o.Err)
		}
	}
	if a.Observer != nil {
		a.Observer(o)
	}
}

// processScene runs one scene end to end. The returned arrays are owned by
// the caller.
func (a *Assembler) processScene(f Files) (*raster.Cube, *raster.Grid, error) {
	for _, companion := range []string{f.Labels, f.Photo} {
		if !a.FS.Exists(companion) {
			return nil, nil, &MissingCompanionFileError{Scene: f.Name, Path: companion}
		}
	}

	src, err := a.Opener.OpenData(f.Data)
	if err != nil {
		return nil, nil, &UnreadableRasterError{Path: f.Data, Err: err}
	}
	cube, err := a.Calibrator.Calibrate(src)
	src.Close()
	if err != nil {
		return nil, nil, &UnreadableRasterError{Path: f.Data, Err: err}
	}

	labels, err := a.Opener.ReadLabels(f.Labels)
	if err != nil {
		return nil, nil, &UnreadableRasterError{Path: f.Labels, Err: err}
	}
	if labels.Rows != cube.Rows || labels.Cols != cube.Cols {
		return nil, nil, &ShapeMismatchError{
			Scene: f.Name, What: "labels",
			Rows: labels.Rows, Cols: labels.Cols,
			WantRows: cube.Rows, WantCols: cube.Cols,
		}
	}

	pr, pc, err := a.Opener.PhotoSize(f.Photo)
	if err != nil {
		return nil, nil, &UnreadableRasterError{Path: f.Photo, Err: err}
	}
	if pr != cube.Rows || pc != cube.Cols {
		return nil, nil, &ShapeMismatchError{
			Scene: f.Name, What: "photo",
			Rows: pr, Cols: pc,
			WantRows: cube.Rows, WantCols: cube.Cols,
		}
	}

	return cube, label.Binarize(labels, a.Target), nil
}

func countPositive(mask *raster.Grid) int {
	n := 0
	for _, v := range mask.Data {
		if v == 1 {
			n++
		}
	}
	return n
}
