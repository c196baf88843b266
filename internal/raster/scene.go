package raster

import (
	"errors"
	"fmt"
)

// ErrGDALDisabled is returned by the GDAL opener in builds without -tags gdal.
var ErrGDALDisabled = errors.New("GDAL support not enabled: rebuild with -tags=gdal to read multi-band scenes")

// Scene is an opened multi-band raw raster. Band indices are 1-based, in the
// order the sensor writes them.
type Scene interface {
	Size() (rows, cols int)
	BandCount() int
	ReadBand(band int) (*Grid, error)
	Close() error
}

// Opener opens the three co-located files that make up one training scene.
type Opener interface {
	// OpenData opens the multi-band data raster.
	OpenData(path string) (Scene, error)
	// ReadLabels reads the single-band class index raster.
	ReadLabels(path string) (*Grid, error)
	// PhotoSize returns the dimensions of the RGB preview image.
	PhotoSize(path string) (rows, cols int, err error)
}

// MemScene is a Scene backed by in-memory bands, used by tests and by callers
// that already hold decoded arrays.
type MemScene struct {
	Bands []*Grid
}

// Size returns the dimensions of the first band.
func (m *MemScene) Size() (int, int) {
	if len(m.Bands) == 0 {
		return 0, 0
	}
	return m.Bands[0].Rows, m.Bands[0].Cols
}

// BandCount returns the number of bands.
func (m *MemScene) BandCount() int { return len(m.Bands) }

// ReadBand returns a copy of band (1-based).
func (m *MemScene) ReadBand(band int) (*Grid, error) {
	if band < 1 || band > len(m.Bands) {
		return nil, &BandRangeError{Band: band, Count: len(m.Bands)}
	}
	return m.Bands[band-1].Clone(), nil
}

// Close is a no-op.
func (m *MemScene) Close() error { return nil }

// BandRangeError reports a band index outside the raster.
type BandRangeError struct {
	Band  int
	Count int
}

func (e *BandRangeError) Error() string {
	return fmt.Sprintf("band %d out of range [1,%d]", e.Band, e.Count)
}
