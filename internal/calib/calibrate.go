package calib

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/hydrosat/patchseg/internal/config"
	"github.com/hydrosat/patchseg/internal/raster"
)

// Raw band indices (1-based) fixed by the source sensor's file convention.
const (
	BandBlue  = 2
	BandGreen = 3
	BandRed   = 4
	BandNIR   = 5
	BandLWIR1 = 9
	BandLWIR2 = 10

	// BandMask is the raw band whose sign defines pixel validity.
	BandMask = BandLWIR1

	// MinBands is the fewest bands a data raster may carry.
	MinBands = 10
)

// ErrTooFewBands is returned for data rasters with fewer than MinBands bands.
var ErrTooFewBands = errors.New("raster has too few bands")

type reflectiveBand struct {
	raw     int
	sbafKey string
	channel int
}

var reflectiveBands = []reflectiveBand{
	{BandBlue, "BLUE", raster.ChannelBlue},
	{BandGreen, "GREEN", raster.ChannelGreen},
	{BandRed, "RED", raster.ChannelRed},
	{BandNIR, "NIR2", raster.ChannelNIR},
}

var thermalRawBand = map[string]int{
	"LWIR1": BandLWIR1,
	"LWIR2": BandLWIR2,
}

// Params are the sensor constants and normalization bounds.
type Params struct {
	ReflectiveSensor string
	ThermalSensor    string
	ReflectiveGain   float64
	ReflectiveBias   float64
	ThermalScale     float64
	ThermalOffset    float64
	ThermalBand      string

	// NormalizationMaxima divide the blue, green, red and NIR channels.
	NormalizationMaxima [4]float64

	// Temperature stretch: (T - FloorK) / (SpanHighK - SpanLowK), floored at 0.
	TemperatureFloorK    float64
	TemperatureSpanHighK float64
	TemperatureSpanLowK  float64
}

// ParamsFromConfig copies the calibration settings out of cfg.
func ParamsFromConfig(cfg *config.PipelineConfig) Params {
	return Params{
		ReflectiveSensor:     cfg.GetReflectiveSensor(),
		ThermalSensor:        cfg.GetThermalSensor(),
		ReflectiveGain:       cfg.GetReflectiveGain(),
		ReflectiveBias:       cfg.GetReflectiveBias(),
		ThermalScale:         cfg.GetThermalScale(),
		ThermalOffset:        cfg.GetThermalOffset(),
		ThermalBand:          cfg.GetThermalBand(),
		NormalizationMaxima:  cfg.GetNormalizationMaxima(),
		TemperatureFloorK:    cfg.GetTemperatureFloorK(),
		TemperatureSpanHighK: cfg.GetTemperatureSpanHighK(),
		TemperatureSpanLowK:  cfg.GetTemperatureSpanLowK(),
	}
}

// DefaultParams returns the built-in calibration constants.
func DefaultParams() Params {
	return ParamsFromConfig(config.EmptyPipelineConfig())
}

// Calibrator turns raw scenes into 5-channel calibrated cubes.
type Calibrator struct {
	params     Params
	reflective [4]Coefficients
	thermal    Coefficients
	lut        *LUT
}

// NewCalibrator resolves every coefficient and table the calibration needs,
// so a missing SBAF entry or LUT fails at startup instead of per scene.
func NewCalibrator(p Params, sbaf *SBAF, luts map[string]*LUT) (*Calibrator, error) {
	if sbaf == nil {
		return nil, fmt.Errorf("nil SBAF table")
	}
	if _, ok := thermalRawBand[p.ThermalBand]; !ok {
		return nil, fmt.Errorf("unsupported thermal band %q", p.ThermalBand)
	}
	c := &Calibrator{params: p}
	for i, rb := range reflectiveBands {
		coef, err := sbaf.Coefficients(p.ReflectiveSensor, rb.sbafKey)
		if err != nil {
			return nil, err
		}
		c.reflective[i] = coef
	}
	coef, err := sbaf.Coefficients(p.ThermalSensor, p.ThermalBand)
	if err != nil {
		return nil, err
	}
	c.thermal = coef
	c.lut = luts[p.ThermalBand]
	if c.lut == nil {
		return nil, fmt.Errorf("no LUT loaded for thermal band %s", p.ThermalBand)
	}
	for i, m := range p.NormalizationMaxima {
		if m <= 0 {
			return nil, fmt.Errorf("normalization maximum %d must be positive, got %g", i, m)
		}
	}
	if p.TemperatureSpanHighK <= p.TemperatureSpanLowK {
		return nil, fmt.Errorf("temperature span high %g must exceed low %g", p.TemperatureSpanHighK, p.TemperatureSpanLowK)
	}
	return c, nil
}

// Params returns the constants the calibrator was built with.
func (c *Calibrator) Params() Params { return c.params }

// Calibrate produces the normalized cube for one scene:
//
//  1. reflective bands: offset + (raw*gain - bias)*scale
//  2. thermal band: radiance = raw*scale + offset, SBAF polynomial, then LUT
//  3. validity mask from the raw mask band, multiplied into every channel
//  4. reflective channels divided by their maxima; temperature stretched and
//     floored at 0 with no upper clamp
//  5. the whole cube inverted (1 - v)
func (c *Calibrator) Calibrate(scene raster.Scene) (*raster.Cube, error) {
	if n := scene.BandCount(); n < MinBands {
		return nil, fmt.Errorf("%w: got %d, need %d", ErrTooFewBands, n, MinBands)
	}
	rows, cols := scene.Size()
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("empty raster %dx%d", rows, cols)
	}

	channels := make([]*raster.Grid, raster.CalibratedChannels)
	p := c.params

	for i, rb := range reflectiveBands {
		g, err := c.readBand(scene, rb.raw, rows, cols)
		if err != nil {
			return nil, err
		}
		d := g.Data
		floats.Scale(p.ReflectiveGain, d)
		floats.AddConst(-p.ReflectiveBias, d)
		coef := c.reflective[i]
		for k, x := range d {
			d[k] = coef.Apply(x)
		}
		channels[rb.channel] = g
	}

	thermal, err := c.readBand(scene, thermalRawBand[p.ThermalBand], rows, cols)
	if err != nil {
		return nil, err
	}
	td := thermal.Data
	floats.Scale(p.ThermalScale, td)
	floats.AddConst(p.ThermalOffset, td)
	for k, radiance := range td {
		td[k] = c.lut.TemperatureAt(c.thermal.Apply(radiance))
	}
	channels[raster.ChannelTemperature] = thermal

	rawMask, err := c.readBand(scene, BandMask, rows, cols)
	if err != nil {
		return nil, err
	}
	mask := ValidityMask(rawMask)
	for _, ch := range channels {
		floats.Mul(ch.Data, mask.Data)
	}

	for i := raster.ChannelBlue; i <= raster.ChannelNIR; i++ {
		floats.Scale(1/p.NormalizationMaxima[i], channels[i].Data)
	}
	stretchTemperature(td, p.TemperatureFloorK, p.TemperatureSpanHighK-p.TemperatureSpanLowK)

	cube := raster.NewCube(rows, cols, raster.CalibratedChannels)
	for i, ch := range channels {
		floats.Scale(-1, ch.Data)
		floats.AddConst(1, ch.Data)
		if err := cube.SetChannel(i, ch); err != nil {
			return nil, err
		}
	}

	valid := floats.Sum(mask.Data)
	diagf("Calibrated %dx%d scene: %.0f/%d valid pixels", rows, cols, valid, rows*cols)
	if valid == 0 {
		opsf("Scene has no valid pixels in mask band %d", BandMask)
	}
	return cube, nil
}

func (c *Calibrator) readBand(scene raster.Scene, band, rows, cols int) (*raster.Grid, error) {
	g, err := scene.ReadBand(band)
	if err != nil {
		return nil, fmt.Errorf("read band %d: %w", band, err)
	}
	if g.Rows != rows || g.Cols != cols {
		return nil, fmt.Errorf("band %d is %dx%d, scene is %dx%d", band, g.Rows, g.Cols, rows, cols)
	}
	return g, nil
}

// stretchTemperature maps kelvin to (T - floor)/span in place, setting
// negative results to 0. Values above 1 are kept.
func stretchTemperature(d []float64, floor, span float64) {
	for i, t := range d {
		v := (t - floor) / span
		if v < 0 {
			v = 0
		}
		d[i] = v
	}
}

// ValidityMask derives the per-pixel validity from the raw mask band:
// strictly positive samples are valid (1); zero, negative and NaN samples
// are invalid (0).
func ValidityMask(raw *raster.Grid) *raster.Grid {
	m := raster.NewGrid(raw.Rows, raw.Cols)
	for i, v := range raw.Data {
		if v > 0 {
			m.Data[i] = 1
		}
	}
	return m
}
