package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydrosat/patchseg/internal/label"
	"github.com/hydrosat/patchseg/internal/predict"
)

func TestEmptyPipelineConfig_Defaults(t *testing.T) {
	cfg := EmptyPipelineConfig()

	assert.Equal(t, "spec_files/vz01_sbaf_landsat8.json", cfg.GetSBAFPath())
	assert.Equal(t, "viri", cfg.GetReflectiveSensor())
	assert.Equal(t, "liri", cfg.GetThermalSensor())
	assert.Equal(t, 2.0e-5, cfg.GetReflectiveGain())
	assert.Equal(t, 0.1, cfg.GetReflectiveBias())
	assert.Equal(t, 3.342e-4, cfg.GetThermalScale())
	assert.Equal(t, 0.1, cfg.GetThermalOffset())
	assert.Equal(t, [4]float64{1.2107, 1.2107, 1.2107, 1.2107}, cfg.GetNormalizationMaxima())
	assert.Equal(t, 220.0, cfg.GetTemperatureFloorK())
	assert.Equal(t, 330.0, cfg.GetTemperatureSpanHighK())
	assert.Equal(t, 200.0, cfg.GetTemperatureSpanLowK())
	assert.Equal(t, "shadow", cfg.GetClassification())
	assert.Equal(t, 64, cfg.GetPatchSize())
	assert.Equal(t, 54, cfg.GetPatchStride(), "stride defaults to patch_size - 10")
	assert.Equal(t, 4, cfg.GetBoundary())
	assert.Equal(t, 0.10, cfg.GetTestFraction())
	assert.Equal(t, uint64(2), cfg.GetSplitSeed())
	assert.Equal(t, 64, cfg.GetBatchSize())
	assert.Equal(t, 100, cfg.GetEpochs())
	assert.Equal(t, 2, cfg.GetBlocks())
	assert.Equal(t, 1e-4, cfg.GetLearningRate())
	assert.Equal(t, 1, cfg.GetWorkers())
	assert.Equal(t, string(predict.PolicyPad), cfg.GetEdgePolicy())

	require.NoError(t, cfg.Validate())
}

func TestMustLoadDefaultConfig_MatchesBuiltins(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	empty := EmptyPipelineConfig()

	assert.Equal(t, empty.GetNormalizationMaxima(), cfg.GetNormalizationMaxima())
	assert.Equal(t, empty.GetPatchStride(), cfg.GetPatchStride())
	assert.Equal(t, empty.GetClassification(), cfg.GetClassification())
	assert.Equal(t, empty.GetSplitSeed(), cfg.GetSplitSeed())
	assert.Equal(t, empty.GetTemperatureFloorK(), cfg.GetTemperatureFloorK())
}

func TestLoadPipelineConfig_Partial(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "classification": "cloud",
  "patch_size": 128,
  "normalization_maxima": [1.0, 1.1, 1.2, 1.3],
  "workers": 4
}`), 0644))

	cfg, err := LoadPipelineConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "cloud", cfg.GetClassification())
	assert.Equal(t, 128, cfg.GetPatchSize())
	assert.Equal(t, 118, cfg.GetPatchStride())
	assert.Equal(t, [4]float64{1.0, 1.1, 1.2, 1.3}, cfg.GetNormalizationMaxima())
	assert.Equal(t, 4, cfg.GetWorkers())
	assert.Equal(t, 4, cfg.GetBoundary(), "omitted fields keep defaults")
}

func TestLoadPipelineConfig_FileChecks(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadPipelineConfig(filepath.Join(dir, "run.yaml"))
	assert.ErrorContains(t, err, ".json extension")

	_, err = LoadPipelineConfig(filepath.Join(dir, "missing.json"))
	assert.ErrorContains(t, err, "failed to stat")

	big := filepath.Join(dir, "big.json")
	require.NoError(t, os.WriteFile(big, []byte(strings.Repeat(" ", 1024*1024+1)), 0644))
	_, err = LoadPipelineConfig(big)
	assert.ErrorContains(t, err, "too large")

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"patch_size": "big"}`), 0644))
	_, err = LoadPipelineConfig(bad)
	assert.ErrorContains(t, err, "failed to parse")
}

func TestValidate_UnknownClassificationFailsFast(t *testing.T) {
	_, err := ParsePipelineConfig([]byte(`{"classification": "water"}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, label.ErrUnknownTarget)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"three maxima", `{"normalization_maxima": [1, 1, 1]}`},
		{"zero maximum", `{"normalization_maxima": [1, 0, 1, 1]}`},
		{"inverted temperature span", `{"temperature_span_high_k": 200, "temperature_span_low_k": 200}`},
		{"bad thermal band", `{"thermal_band": "SWIR"}`},
		{"zero patch", `{"patch_size": 0}`},
		{"negative stride", `{"patch_stride": -1}`},
		{"tiny patch default stride", `{"patch_size": 10}`},
		{"negative boundary", `{"boundary": -1}`},
		{"boundary eats patch", `{"patch_size": 8, "patch_stride": 8, "boundary": 4}`},
		{"test fraction zero", `{"test_fraction": 0}`},
		{"test fraction one", `{"test_fraction": 1}`},
		{"zero batch", `{"batch_size": 0}`},
		{"zero epochs", `{"epochs": 0}`},
		{"one block", `{"blocks": 1}`},
		{"five blocks", `{"blocks": 5}`},
		{"zero learning rate", `{"learning_rate": 0}`},
		{"zero workers", `{"workers": 0}`},
		{"edge policy", `{"edge_policy": "wrap"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParsePipelineConfig([]byte(tc.json))
			assert.Error(t, err)
		})
	}
}

func TestWithOverrides(t *testing.T) {
	base := EmptyPipelineConfig()

	c := base.WithClassification("snow").WithPatch(32, 32).WithLearningRate(0.01)
	assert.Equal(t, "snow", c.GetClassification())
	assert.Equal(t, 32, c.GetPatchSize())
	assert.Equal(t, 32, c.GetPatchStride())
	assert.Equal(t, 0.01, c.GetLearningRate())

	assert.Equal(t, "shadow", base.GetClassification(), "base must be unchanged")
	assert.Equal(t, 64, base.GetPatchSize())

	d := base.WithPatch(48, 0)
	assert.Equal(t, 38, d.GetPatchStride())
}

func TestValidate_EdgePolicies(t *testing.T) {
	for _, p := range []predict.Policy{predict.PolicyPad, predict.PolicyDrop, predict.PolicyReject} {
		cfg := EmptyPipelineConfig().WithEdgePolicy(string(p))
		assert.NoError(t, cfg.Validate(), p)
	}

	err := EmptyPipelineConfig().WithEdgePolicy("wrap").Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "edge_policy")
	assert.ErrorContains(t, err, `"wrap"`)
}
