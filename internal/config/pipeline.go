package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hydrosat/patchseg/internal/label"
	"github.com/hydrosat/patchseg/internal/predict"
)

// DefaultConfigPath is the path to the canonical pipeline defaults file.
const DefaultConfigPath = "config/pipeline.defaults.json"

// PipelineConfig is the root configuration for a calibration, training and
// prediction run. Omitted fields fall back to the defaults returned by the
// Get* accessors, so partial files are safe.
type PipelineConfig struct {
	// Sidecar tables
	SBAFPath *string `json:"sbaf_path,omitempty"`
	LUTDir   *string `json:"lut_dir,omitempty"`

	// Calibration constants
	ReflectiveSensor     *string   `json:"reflective_sensor,omitempty"`
	ThermalSensor        *string   `json:"thermal_sensor,omitempty"`
	ReflectiveGain       *float64  `json:"reflective_gain,omitempty"`
	ReflectiveBias       *float64  `json:"reflective_bias,omitempty"`
	ThermalScale         *float64  `json:"thermal_scale,omitempty"`
	ThermalOffset        *float64  `json:"thermal_offset,omitempty"`
	ThermalBand          *string   `json:"thermal_band,omitempty"`
	NormalizationMaxima  []float64 `json:"normalization_maxima,omitempty"`
	TemperatureFloorK    *float64  `json:"temperature_floor_k,omitempty"`
	TemperatureSpanHighK *float64  `json:"temperature_span_high_k,omitempty"`
	TemperatureSpanLowK  *float64  `json:"temperature_span_low_k,omitempty"`

	// Labels and patches
	Classification *string  `json:"classification,omitempty"`
	PatchSize      *int     `json:"patch_size,omitempty"`
	PatchStride    *int     `json:"patch_stride,omitempty"` // 0 means patch_size - 10
	Boundary       *int     `json:"boundary,omitempty"`
	TestFraction   *float64 `json:"test_fraction,omitempty"`
	SplitSeed      *uint64  `json:"split_seed,omitempty"`

	// Training driver
	BatchSize    *int     `json:"batch_size,omitempty"`
	Epochs       *int     `json:"epochs,omitempty"`
	Blocks       *int     `json:"blocks,omitempty"`
	LearningRate *float64 `json:"learning_rate,omitempty"`

	// Execution and outputs
	Workers    *int    `json:"workers,omitempty"`
	EdgePolicy *string `json:"edge_policy,omitempty"`
	ModelDir   *string `json:"model_dir,omitempty"`
	LedgerPath *string `json:"ledger_path,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyPipelineConfig returns a PipelineConfig with all fields unset.
func EmptyPipelineConfig() *PipelineConfig {
	return &PipelineConfig{}
}

// LoadPipelineConfig loads a PipelineConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParsePipelineConfig(data)
}

// ParsePipelineConfig decodes and validates JSON config bytes.
func ParsePipelineConfig(data []byte) (*PipelineConfig, error) {
	cfg := EmptyPipelineConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath,
// searching the current directory and its parents. Panics if the file cannot
// be loaded; intended for test setup.
func MustLoadDefaultConfig() *PipelineConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/model/logistic/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadPipelineConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid. Unknown
// classification targets fail here, before any scene is touched.
func (c *PipelineConfig) Validate() error {
	if _, err := label.Lookup(c.GetClassification()); err != nil {
		return err
	}
	if len(c.NormalizationMaxima) != 0 && len(c.NormalizationMaxima) != 4 {
		return fmt.Errorf("normalization_maxima must have 4 values, got %d", len(c.NormalizationMaxima))
	}
	for i, m := range c.GetNormalizationMaxima() {
		if m <= 0 {
			return fmt.Errorf("normalization_maxima[%d] must be positive, got %f", i, m)
		}
	}
	if c.GetTemperatureSpanHighK() <= c.GetTemperatureSpanLowK() {
		return fmt.Errorf("temperature_span_high_k (%f) must exceed temperature_span_low_k (%f)",
			c.GetTemperatureSpanHighK(), c.GetTemperatureSpanLowK())
	}
	switch c.GetThermalBand() {
	case "LWIR1", "LWIR2":
	default:
		return fmt.Errorf("thermal_band must be LWIR1 or LWIR2, got %q", c.GetThermalBand())
	}

	if c.GetPatchSize() <= 0 {
		return fmt.Errorf("patch_size must be positive, got %d", c.GetPatchSize())
	}
	if c.PatchStride != nil && *c.PatchStride < 0 {
		return fmt.Errorf("patch_stride must be non-negative, got %d", *c.PatchStride)
	}
	if c.GetPatchStride() <= 0 {
		return fmt.Errorf("effective patch stride must be positive, got %d (patch_size %d)", c.GetPatchStride(), c.GetPatchSize())
	}
	if c.GetBoundary() < 0 {
		return fmt.Errorf("boundary must be non-negative, got %d", c.GetBoundary())
	}
	if c.GetPatchSize()-2*c.GetBoundary() <= 0 {
		return fmt.Errorf("boundary %d leaves no interior in a %d patch", c.GetBoundary(), c.GetPatchSize())
	}
	if f := c.GetTestFraction(); f <= 0 || f >= 1 {
		return fmt.Errorf("test_fraction must be in (0, 1), got %f", f)
	}

	if c.GetBatchSize() <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", c.GetBatchSize())
	}
	if c.GetEpochs() <= 0 {
		return fmt.Errorf("epochs must be positive, got %d", c.GetEpochs())
	}
	if c.GetBlocks() < 2 || c.GetBlocks() > 4 {
		return fmt.Errorf("blocks must be in [2, 4], got %d", c.GetBlocks())
	}
	if c.GetLearningRate() <= 0 {
		return fmt.Errorf("learning_rate must be positive, got %f", c.GetLearningRate())
	}
	if c.GetWorkers() < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.GetWorkers())
	}
	if _, err := predict.ParsePolicy(c.GetEdgePolicy()); err != nil {
		return fmt.Errorf("edge_policy: %w", err)
	}
	return nil
}

// GetSBAFPath returns the sbaf_path value or the default.
func (c *PipelineConfig) GetSBAFPath() string {
	if c.SBAFPath == nil {
		return "spec_files/vz01_sbaf_landsat8.json"
	}
	return *c.SBAFPath
}

// GetLUTDir returns the lut_dir value or the default.
func (c *PipelineConfig) GetLUTDir() string {
	if c.LUTDir == nil {
		return "spec_files"
	}
	return *c.LUTDir
}

// GetReflectiveSensor returns the SBAF key of the reflective sensor.
func (c *PipelineConfig) GetReflectiveSensor() string {
	if c.ReflectiveSensor == nil {
		return "viri"
	}
	return *c.ReflectiveSensor
}

// GetThermalSensor returns the SBAF key of the thermal sensor.
func (c *PipelineConfig) GetThermalSensor() string {
	if c.ThermalSensor == nil {
		return "liri"
	}
	return *c.ThermalSensor
}

// GetReflectiveGain returns the DN-to-reflectance gain.
func (c *PipelineConfig) GetReflectiveGain() float64 {
	if c.ReflectiveGain == nil {
		return 2.0e-5
	}
	return *c.ReflectiveGain
}

// GetReflectiveBias returns the reflectance bias subtracted after the gain.
func (c *PipelineConfig) GetReflectiveBias() float64 {
	if c.ReflectiveBias == nil {
		return 0.1
	}
	return *c.ReflectiveBias
}

// GetThermalScale returns the DN-to-radiance scale.
func (c *PipelineConfig) GetThermalScale() float64 {
	if c.ThermalScale == nil {
		return 3.342e-4
	}
	return *c.ThermalScale
}

// GetThermalOffset returns the DN-to-radiance offset.
func (c *PipelineConfig) GetThermalOffset() float64 {
	if c.ThermalOffset == nil {
		return 0.1
	}
	return *c.ThermalOffset
}

// GetThermalBand returns the thermal band used for the temperature channel.
func (c *PipelineConfig) GetThermalBand() string {
	if c.ThermalBand == nil {
		return "LWIR1"
	}
	return *c.ThermalBand
}

// GetNormalizationMaxima returns the four reflective channel maxima.
// TODO: the four defaults are identical; confirm with the calibration team
// whether per-band maxima were intended.
func (c *PipelineConfig) GetNormalizationMaxima() [4]float64 {
	if len(c.NormalizationMaxima) != 4 {
		return [4]float64{1.2107, 1.2107, 1.2107, 1.2107}
	}
	return [4]float64{c.NormalizationMaxima[0], c.NormalizationMaxima[1], c.NormalizationMaxima[2], c.NormalizationMaxima[3]}
}

// GetTemperatureFloorK returns the temperature subtracted before stretching.
func (c *PipelineConfig) GetTemperatureFloorK() float64 {
	if c.TemperatureFloorK == nil {
		return 220
	}
	return *c.TemperatureFloorK
}

// GetTemperatureSpanHighK returns the upper term of the stretch divisor.
func (c *PipelineConfig) GetTemperatureSpanHighK() float64 {
	if c.TemperatureSpanHighK == nil {
		return 330
	}
	return *c.TemperatureSpanHighK
}

// GetTemperatureSpanLowK returns the lower term of the stretch divisor.
func (c *PipelineConfig) GetTemperatureSpanLowK() float64 {
	if c.TemperatureSpanLowK == nil {
		return 200
	}
	return *c.TemperatureSpanLowK
}

// GetClassification returns the target class group name.
func (c *PipelineConfig) GetClassification() string {
	if c.Classification == nil {
		return "shadow"
	}
	return *c.Classification
}

// GetPatchSize returns the patch edge length in pixels.
func (c *PipelineConfig) GetPatchSize() int {
	if c.PatchSize == nil {
		return 64
	}
	return *c.PatchSize
}

// GetPatchStride returns the extraction stride. Unset or zero means
// patch_size - 10.
func (c *PipelineConfig) GetPatchStride() int {
	if c.PatchStride == nil || *c.PatchStride == 0 {
		return c.GetPatchSize() - 10
	}
	return *c.PatchStride
}

// GetBoundary returns the margin trimmed from each side of a predicted tile.
func (c *PipelineConfig) GetBoundary() int {
	if c.Boundary == nil {
		return 4
	}
	return *c.Boundary
}

// GetTestFraction returns the share of patches held out for validation.
func (c *PipelineConfig) GetTestFraction() float64 {
	if c.TestFraction == nil {
		return 0.10
	}
	return *c.TestFraction
}

// GetSplitSeed returns the train/test shuffle seed.
func (c *PipelineConfig) GetSplitSeed() uint64 {
	if c.SplitSeed == nil {
		return 2
	}
	return *c.SplitSeed
}

// GetBatchSize returns the training batch size.
func (c *PipelineConfig) GetBatchSize() int {
	if c.BatchSize == nil {
		return 64
	}
	return *c.BatchSize
}

// GetEpochs returns the number of training epochs.
func (c *PipelineConfig) GetEpochs() int {
	if c.Epochs == nil {
		return 100
	}
	return *c.Epochs
}

// GetBlocks returns the encoder/decoder block count of the model definition.
func (c *PipelineConfig) GetBlocks() int {
	if c.Blocks == nil {
		return 2
	}
	return *c.Blocks
}

// GetLearningRate returns the optimizer learning rate.
func (c *PipelineConfig) GetLearningRate() float64 {
	if c.LearningRate == nil {
		return 1e-4
	}
	return *c.LearningRate
}

// GetWorkers returns the number of scenes processed concurrently.
func (c *PipelineConfig) GetWorkers() int {
	if c.Workers == nil {
		return 1
	}
	return *c.Workers
}

// GetEdgePolicy returns how tiles crossing the scene edge are handled.
func (c *PipelineConfig) GetEdgePolicy() string {
	if c.EdgePolicy == nil {
		return string(predict.PolicyPad)
	}
	return *c.EdgePolicy
}

// GetModelDir returns the directory model artifacts are written to.
func (c *PipelineConfig) GetModelDir() string {
	if c.ModelDir == nil {
		return "models"
	}
	return *c.ModelDir
}

// GetLedgerPath returns the SQLite run ledger path.
func (c *PipelineConfig) GetLedgerPath() string {
	if c.LedgerPath == nil {
		return "patchseg.db"
	}
	return *c.LedgerPath
}

// WithClassification returns a copy of c with the classification overridden.
func (c *PipelineConfig) WithClassification(name string) *PipelineConfig {
	out := *c
	out.Classification = ptrString(name)
	return &out
}

// WithPatch returns a copy of c with patch size and stride overridden.
// A zero stride keeps the patch_size - 10 default.
func (c *PipelineConfig) WithPatch(size, stride int) *PipelineConfig {
	out := *c
	out.PatchSize = ptrInt(size)
	out.PatchStride = ptrInt(stride)
	return &out
}

// WithLearningRate returns a copy of c with the learning rate overridden.
func (c *PipelineConfig) WithLearningRate(lr float64) *PipelineConfig {
	out := *c
	out.LearningRate = ptrFloat64(lr)
	return &out
}

// WithWorkers returns a copy of c with the scene worker count overridden.
func (c *PipelineConfig) WithWorkers(n int) *PipelineConfig {
	out := *c
	out.Workers = ptrInt(n)
	return &out
}

// WithEdgePolicy returns a copy of c with the edge policy overridden.
func (c *PipelineConfig) WithEdgePolicy(policy string) *PipelineConfig {
	out := *c
	out.EdgePolicy = ptrString(policy)
	return &out
}
