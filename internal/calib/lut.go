package calib

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/interp"

	"github.com/hydrosat/patchseg/internal/fsutil"
)

// LUT maps calibrated radiance to apparent temperature for one thermal band.
// Pairs are held sorted by radiance; lookups interpolate linearly and clamp
// to the first/last temperature outside the radiance range.
type LUT struct {
	Band        string
	Radiance    []float64
	Temperature []float64

	fit interp.PiecewiseLinear
}

// NewLUT builds a LUT from unsorted (radiance, temperature) pairs. At least
// two pairs are required and radiance values must be distinct.
func NewLUT(band string, radiance, temperature []float64) (*LUT, error) {
	if len(radiance) != len(temperature) {
		return nil, fmt.Errorf("LUT %s: %d radiance values but %d temperatures", band, len(radiance), len(temperature))
	}
	if len(radiance) < 2 {
		return nil, fmt.Errorf("LUT %s: need at least 2 rows, got %d", band, len(radiance))
	}
	idx := make([]int, len(radiance))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return radiance[idx[a]] < radiance[idx[b]] })

	l := &LUT{
		Band:        band,
		Radiance:    make([]float64, len(idx)),
		Temperature: make([]float64, len(idx)),
	}
	for i, j := range idx {
		l.Radiance[i] = radiance[j]
		l.Temperature[i] = temperature[j]
		if i > 0 && l.Radiance[i] == l.Radiance[i-1] {
			return nil, fmt.Errorf("LUT %s: duplicate radiance %g", band, l.Radiance[i])
		}
	}
	if err := l.fit.Fit(l.Radiance, l.Temperature); err != nil {
		return nil, fmt.Errorf("LUT %s: %w", band, err)
	}
	return l, nil
}

// TemperatureAt returns the apparent temperature for a calibrated radiance.
// NaN propagates.
func (l *LUT) TemperatureAt(radiance float64) float64 {
	n := len(l.Radiance)
	switch {
	case math.IsNaN(radiance):
		return radiance
	case radiance <= l.Radiance[0]:
		return l.Temperature[0]
	case radiance >= l.Radiance[n-1]:
		return l.Temperature[n-1]
	}
	return l.fit.Predict(radiance)
}

// ReadLUT parses a two-column comma-delimited table with no header. Blank
// lines and lines starting with '#' are ignored.
func ReadLUT(band string, r io.Reader) (*LUT, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var rad, temp []float64
	line := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("LUT %s: %w", band, err)
		}
		if len(rec) < 2 {
			return nil, fmt.Errorf("LUT %s row %d: want 2 columns, got %d", band, line, len(rec))
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("LUT %s row %d: radiance: %w", band, line, err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("LUT %s row %d: temperature: %w", band, line, err)
		}
		rad = append(rad, x)
		temp = append(temp, y)
	}
	return NewLUT(band, rad, temp)
}

// LUTFileName is the on-disk name of a band's table.
func LUTFileName(band string) string {
	return "LUT_" + band + ".csv"
}

// LoadLUTs reads LUT_<band>.csv from dir for each band.
func LoadLUTs(fs fsutil.FileSystem, dir string, bands ...string) (map[string]*LUT, error) {
	out := make(map[string]*LUT, len(bands))
	for _, band := range bands {
		path := filepath.Join(dir, LUTFileName(band))
		f, err := fs.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open LUT: %w", err)
		}
		l, err := ReadLUT(band, f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		diagf("Loaded %s: %d rows, radiance [%g, %g]", path, len(l.Radiance), l.Radiance[0], l.Radiance[len(l.Radiance)-1])
		out[band] = l
	}
	return out, nil
}
