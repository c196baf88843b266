// Package pipeline wires configuration, calibration tables, scene assembly,
// patch extraction, the training driver and the run ledger into the two
// end-to-end operations exposed by the command-line tools.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hydrosat/patchseg/internal/calib"
	"github.com/hydrosat/patchseg/internal/config"
	"github.com/hydrosat/patchseg/internal/fsutil"
	"github.com/hydrosat/patchseg/internal/label"
	"github.com/hydrosat/patchseg/internal/ledger"
	"github.com/hydrosat/patchseg/internal/model"
	"github.com/hydrosat/patchseg/internal/patch"
	"github.com/hydrosat/patchseg/internal/predict"
	"github.com/hydrosat/patchseg/internal/raster"
	"github.com/hydrosat/patchseg/internal/scene"
	"github.com/hydrosat/patchseg/internal/timeutil"
)

// ModelLoader restores a persisted model for prediction.
type ModelLoader func(r io.Reader) (predict.Scorer, error)

// Runner executes training and prediction runs.
type Runner struct {
	Config *config.PipelineConfig
	FS     fsutil.FileSystem
	Opener raster.Opener
	Driver model.Driver
	Loader ModelLoader

	// Ledger is optional; when nil nothing is recorded.
	Ledger *ledger.Ledger
	Clock  timeutil.Clock
}

func (r *Runner) clock() timeutil.Clock {
	if r.Clock == nil {
		return timeutil.RealClock{}
	}
	return r.Clock
}

// TrainResult summarizes a finished training run.
type TrainResult struct {
	RunID        string
	ModelPath    string
	History      *model.History
	Scenes       []scene.Outcome
	SceneCount   int
	TrainPatches int
	TestPatches  int
}

// Calibrator loads the SBAF and LUT tables named by the configuration.
func (r *Runner) Calibrator() (*calib.Calibrator, error) {
	cfg := r.Config
	sbaf, err := calib.LoadSBAF(r.FS, cfg.GetSBAFPath())
	if err != nil {
		return nil, err
	}
	luts, err := calib.LoadLUTs(r.FS, cfg.GetLUTDir(), cfg.GetThermalBand())
	if err != nil {
		return nil, err
	}
	return calib.NewCalibrator(calib.ParamsFromConfig(cfg), sbaf, luts)
}

// Train assembles every scene in dataDir, trains a model on the resulting
// patches and writes it under the configured model directory.
func (r *Runner) Train(ctx context.Context, dataDir string) (*TrainResult, error) {
	cfg := r.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	target, err := label.Lookup(cfg.GetClassification())
	if err != nil {
		return nil, err
	}
	cal, err := r.Calibrator()
	if err != nil {
		return nil, err
	}

	start := r.clock().Now()
	res := &TrainResult{}
	if r.Ledger != nil {
		run := &ledger.Run{
			Classification: target.Name,
			DataDir:        dataDir,
			PatchSize:      cfg.GetPatchSize(),
			PatchStride:    cfg.GetPatchStride(),
			BatchSize:      cfg.GetBatchSize(),
			Epochs:         cfg.GetEpochs(),
			Blocks:         cfg.GetBlocks(),
			LearningRate:   cfg.GetLearningRate(),
			StartedAt:      start,
		}
		if err := r.Ledger.CreateRun(run); err != nil {
			return nil, err
		}
		res.RunID = run.RunID
	}

	if err := r.train(ctx, dataDir, target, cal, res); err != nil {
		r.finish(res, err)
		return nil, err
	}
	r.finish(res, nil)
	diagf("Training finished in %.1f minutes: model %s", r.clock().Since(start).Minutes(), res.ModelPath)
	return res, nil
}

func (r *Runner) train(ctx context.Context, dataDir string, target label.Target, cal *calib.Calibrator, res *TrainResult) error {
	cfg := r.Config
	asm := &scene.Assembler{
		FS:         r.FS,
		Opener:     r.Opener,
		Calibrator: cal,
		Target:     target,
		Workers:    cfg.GetWorkers(),
		Observer:   r.sceneObserver(res.RunID),
	}
	composite, err := asm.Assemble(ctx, dataDir)
	if composite != nil {
		res.Scenes = composite.Scenes
		res.SceneCount = composite.Count
	}
	if err != nil {
		return err
	}

	size, stride := cfg.GetPatchSize(), cfg.GetPatchStride()
	train, test, err := patch.Build(composite.Cube, composite.Mask, size, stride, cfg.GetTestFraction(), cfg.GetSplitSeed())
	if err != nil {
		return err
	}
	res.TrainPatches, res.TestPatches = train.Len(), test.Len()
	def := model.Definition{
		InputShape:   [3]int{size, size, composite.Cube.Channels},
		Blocks:       cfg.GetBlocks(),
		LearningRate: cfg.GetLearningRate(),
	}
	diagf("Patches: %d train, %d test, input shape %v", res.TrainPatches, res.TestPatches, def.InputShape)

	m, hist, err := r.Driver.Train(ctx, def, train, test, cfg.GetBatchSize(), cfg.GetEpochs())
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}
	res.History = hist
	if last, ok := hist.Last(); ok {
		diagf("Final epoch %d: loss %.4f val_loss %.4f acc %.4f val_acc %.4f",
			last.Epoch, last.Loss, last.ValLoss, last.BinaryAccuracy, last.ValBinaryAccuracy)
	}
	if r.Ledger != nil && res.RunID != "" {
		if err := r.Ledger.RecordEpochs(res.RunID, hist.Epochs); err != nil {
			return err
		}
	}

	name := model.ArtifactName(model.ArtifactParams{
		Epochs:    cfg.GetEpochs(),
		BatchSize: cfg.GetBatchSize(),
		Class:     target.Name,
		PatchSize: size,
		Blocks:    cfg.GetBlocks(),
	}, r.clock().Now())
	res.ModelPath = filepath.Join(cfg.GetModelDir(), name)
	return r.saveModel(m, res.ModelPath)
}

func (r *Runner) saveModel(m model.Model, path string) error {
	if err := r.FS.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}
	w, err := r.FS.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create model file: %w", err)
	}
	if err := m.Save(w); err != nil {
		w.Close()
		return fmt.Errorf("failed to save model: %w", err)
	}
	return w.Close()
}

func (r *Runner) sceneObserver(runID string) func(scene.Outcome) {
	if r.Ledger == nil || runID == "" {
		return nil
	}
	return func(o scene.Outcome) {
		rec := ledger.SceneRecord{
			RunID: runID, Index: o.Index, Name: o.Name,
			Status: ledger.SceneUsed, Rows: o.Rows, Cols: o.Cols, PositivePixels: o.Positives,
		}
		if o.Err != nil {
			rec.Status = ledger.SceneSkipped
			rec.Error = o.Err.Error()
		}
		if err := r.Ledger.RecordScene(rec); err != nil {
			opsf("Failed to record scene %s: %v", o.Name, err)
		}
	}
}

func (r *Runner) finish(res *TrainResult, runErr error) {
	if r.Ledger == nil || res.RunID == "" {
		return
	}
	summary := ledger.RunSummary{
		SceneCount:   res.SceneCount,
		TrainPatches: res.TrainPatches,
		TestPatches:  res.TestPatches,
		ModelPath:    res.ModelPath,
	}
	if runErr != nil {
		summary.Error = runErr.Error()
		summary.ModelPath = ""
	}
	if err := r.Ledger.FinishRun(res.RunID, summary, r.clock().Now()); err != nil {
		opsf("Failed to finish run %s: %v", res.RunID, err)
	}
}

// PredictResult lists what a prediction wrote.
type PredictResult struct {
	Rows, Cols int
	ScoresPath string
	MaskPaths  []string
}

// Predict calibrates one scene, scores it tile by tile with the model at
// modelPath, writes the score raster to outPath and a binary mask for each
// threshold next to it.
func (r *Runner) Predict(ctx context.Context, dataPath, modelPath, outPath string, thresholds []float64) (*PredictResult, error) {
	cfg := r.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	policy, err := predict.ParsePolicy(cfg.GetEdgePolicy())
	if err != nil {
		return nil, err
	}
	cal, err := r.Calibrator()
	if err != nil {
		return nil, err
	}
	scorer, err := r.loadModel(modelPath)
	if err != nil {
		return nil, err
	}

	src, err := r.Opener.OpenData(dataPath)
	if err != nil {
		return nil, &scene.UnreadableRasterError{Path: dataPath, Err: err}
	}
	cube, err := cal.Calibrate(src)
	src.Close()
	if err != nil {
		return nil, &scene.UnreadableRasterError{Path: dataPath, Err: err}
	}

	tiler := predict.Tiler{TileSize: cfg.GetPatchSize(), Boundary: cfg.GetBoundary(), Policy: policy}
	start := r.clock().Now()
	scores, err := tiler.Reassemble(ctx, cube, scorer)
	if err != nil {
		return nil, err
	}
	diagf("Scored %dx%d scene in %.1fs", cube.Rows, cube.Cols, r.clock().Since(start).Seconds())

	res := &PredictResult{Rows: scores.Rows, Cols: scores.Cols, ScoresPath: outPath}
	if err := r.writeRaster(outPath, scores, raster.EncodeScores); err != nil {
		return nil, err
	}
	for _, cut := range thresholds {
		p := ThresholdPath(outPath, cut)
		if err := r.writeRaster(p, predict.Threshold(scores, cut), raster.EncodeMask); err != nil {
			return nil, err
		}
		res.MaskPaths = append(res.MaskPaths, p)
	}

	if r.Ledger != nil {
		err := r.Ledger.RecordPrediction(&ledger.Prediction{
			ModelPath:  modelPath,
			ScenePath:  dataPath,
			OutputPath: outPath,
			Rows:       scores.Rows,
			Cols:       scores.Cols,
			TileSize:   tiler.TileSize,
			Boundary:   tiler.Boundary,
			EdgePolicy: string(policy),
			CreatedAt:  r.clock().Now(),
		})
		if err != nil {
			opsf("Failed to record prediction: %v", err)
		}
	}
	return res, nil
}

func (r *Runner) loadModel(path string) (predict.Scorer, error) {
	if r.Loader == nil {
		return nil, fmt.Errorf("no model loader configured")
	}
	f, err := r.FS.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open model: %w", err)
	}
	defer f.Close()
	s, err := r.Loader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func (r *Runner) writeRaster(path string, g *raster.Grid, encode func(io.Writer, *raster.Grid) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := r.FS.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	w, err := r.FS.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := encode(w, g); err != nil {
		w.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return w.Close()
}

// ThresholdPath names the binary mask for cut next to the score raster:
// out/S1.tif with cut 0.5 becomes out/S1_gt0.5.tif.
func ThresholdPath(scoresPath string, cut float64) string {
	ext := filepath.Ext(scoresPath)
	return strings.TrimSuffix(scoresPath, ext) + "_gt" + strconv.FormatFloat(cut, 'g', -1, 64) + ext
}
