// Command patchseg-predict calibrates one scene, scores it tile by tile with
// a trained model and writes the reassembled score raster, plus optional
// thresholded masks.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/hydrosat/patchseg/internal/config"
	"github.com/hydrosat/patchseg/internal/fsutil"
	"github.com/hydrosat/patchseg/internal/ledger"
	"github.com/hydrosat/patchseg/internal/model/logistic"
	"github.com/hydrosat/patchseg/internal/monitoring"
	"github.com/hydrosat/patchseg/internal/pipeline"
	"github.com/hydrosat/patchseg/internal/predict"
	"github.com/hydrosat/patchseg/internal/raster"
	"github.com/hydrosat/patchseg/internal/version"
)

var (
	configPath  = flag.String("config", config.DefaultConfigPath, "Pipeline config JSON")
	modelPath   = flag.String("model", "", "Trained model artifact (.gob.gz)")
	scenePath   = flag.String("scene", "", "Scene *_data.tif to score")
	outPath     = flag.String("out", "", "Output score TIFF path")
	patchSize   = flag.Int("patch", 0, "Tile size in pixels; must match training, overrides config")
	edgePolicy  = flag.String("edge-policy", "", "Edge handling: pad, drop or reject; overrides config")
	thresholds  = flag.String("thresholds", "", "Comma-separated score cuts, each written as <out>_gt<cut>.tif")
	dbPath      = flag.String("db", "", "Run ledger SQLite path; overrides config, \"none\" disables")
	verbose     = flag.Bool("v", false, "Log progress and timings")
	trace       = flag.Bool("trace", false, "Log every scored tile")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// parseCSVFloatSlice parses a comma-separated list of floats
func parseCSVFloatSlice(s string) ([]float64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float '%s': %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String("patchseg-predict"))
		return
	}
	if *modelPath == "" || *scenePath == "" || *outPath == "" {
		log.Fatal("-model, -scene and -out are required")
	}
	cuts, err := parseCSVFloatSlice(*thresholds)
	if err != nil {
		log.Fatalf("bad -thresholds: %v", err)
	}

	cfg, err := config.LoadPipelineConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *patchSize > 0 {
		cfg = cfg.WithPatch(*patchSize, 0)
	}
	if *edgePolicy != "" {
		cfg = cfg.WithEdgePolicy(*edgePolicy)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if err := run(cfg, cuts); err != nil {
		log.Fatalf("prediction failed: %v", err)
	}
}

func run(cfg *config.PipelineConfig, cuts []float64) error {
	pipeline.SetLogWriters(monitoring.StreamsFor(os.Stderr, *verbose, *trace))

	runner := &pipeline.Runner{
		Config: cfg,
		FS:     fsutil.OSFileSystem{},
		Opener: raster.NewFileOpener(),
		Loader: func(r io.Reader) (predict.Scorer, error) { return logistic.Load(r) },
	}

	ledgerPath := cfg.GetLedgerPath()
	if *dbPath != "" {
		ledgerPath = *dbPath
	}
	if ledgerPath != "none" {
		l, err := ledger.Open(ledgerPath)
		if err != nil {
			return fmt.Errorf("failed to open run ledger: %w", err)
		}
		defer l.Close()
		runner.Ledger = l
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := runner.Predict(ctx, *scenePath, *modelPath, *outPath, cuts)
	if err != nil {
		return err
	}
	monitoring.Logf("wrote %dx%d scores to %s", res.Rows, res.Cols, res.ScoresPath)
	for _, p := range res.MaskPaths {
		monitoring.Logf("wrote mask %s", p)
	}
	return nil
}
