// Command patchseg-train calibrates every scene in a directory, extracts
// training patches and trains a segmentation model for one class group.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hydrosat/patchseg/internal/config"
	"github.com/hydrosat/patchseg/internal/fsutil"
	"github.com/hydrosat/patchseg/internal/label"
	"github.com/hydrosat/patchseg/internal/ledger"
	"github.com/hydrosat/patchseg/internal/model"
	"github.com/hydrosat/patchseg/internal/model/logistic"
	"github.com/hydrosat/patchseg/internal/monitoring"
	"github.com/hydrosat/patchseg/internal/pipeline"
	"github.com/hydrosat/patchseg/internal/raster"
	"github.com/hydrosat/patchseg/internal/version"
)

var (
	configPath  = flag.String("config", config.DefaultConfigPath, "Pipeline config JSON")
	dataDir     = flag.String("data", "", "Directory of *_data.tif scenes with labels and photo companions")
	class       = flag.String("class", "", "Class group to segment ("+strings.Join(label.Names(), ", ")+"); overrides config")
	patchSize   = flag.Int("patch", 0, "Patch size in pixels; overrides config (stride becomes patch-10)")
	workers     = flag.Int("workers", 0, "Scenes processed concurrently; overrides config")
	dbPath      = flag.String("db", "", "Run ledger SQLite path; overrides config, \"none\" disables")
	seed        = flag.Uint64("seed", 0, "Training shuffle seed")
	verbose     = flag.Bool("v", false, "Log per-scene progress and run summaries")
	trace       = flag.Bool("trace", false, "Log per-tile and per-batch detail")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String("patchseg-train"))
		return
	}
	if *dataDir == "" {
		log.Fatal("-data is required")
	}

	cfg, err := config.LoadPipelineConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *class != "" {
		cfg = cfg.WithClassification(*class)
	}
	if *patchSize > 0 {
		cfg = cfg.WithPatch(*patchSize, 0)
	}
	if *workers > 0 {
		cfg = cfg.WithWorkers(*workers)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if err := run(cfg); err != nil {
		log.Fatalf("training failed: %v", err)
	}
}

func run(cfg *config.PipelineConfig) error {
	pipeline.SetLogWriters(monitoring.StreamsFor(os.Stderr, *verbose, *trace))

	runner := &pipeline.Runner{
		Config: cfg,
		FS:     fsutil.OSFileSystem{},
		Opener: raster.NewFileOpener(),
		Driver: &logistic.Driver{
			Seed: *seed,
			OnEpoch: func(m model.EpochMetrics) {
				monitoring.Logf("epoch %d: loss=%.4f val_loss=%.4f binary_accuracy=%.4f val_binary_accuracy=%.4f",
					m.Epoch, m.Loss, m.ValLoss, m.BinaryAccuracy, m.ValBinaryAccuracy)
			},
		},
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

	res, err := runner.Train(ctx, *dataDir)
	if err != nil {
		return err
	}
	monitoring.Logf("trained on %d scenes (%d train / %d test patches); model written to %s",
		res.SceneCount, res.TrainPatches, res.TestPatches, res.ModelPath)
	if res.RunID != "" {
		monitoring.Logf("run %s recorded in %s", res.RunID, ledgerPath)
	}
	return nil
}
