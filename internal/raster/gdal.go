//go:build gdal
// +build gdal

package raster

import (
	"fmt"
	"sync"

	"github.com/airbusgeo/godal"
)

var registerOnce sync.Once

// gdalScene adapts a godal dataset to Scene.
type gdalScene struct {
	ds    *godal.Dataset
	rows  int
	cols  int
	bands []godal.Band
}

// openDataGDAL opens a multi-band raster through GDAL. Only available when
// building with the 'gdal' build tag.
func openDataGDAL(path string) (Scene, error) {
	registerOnce.Do(godal.RegisterAll)

	ds, err := godal.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	st := ds.Structure()
	return &gdalScene{ds: ds, rows: st.SizeY, cols: st.SizeX, bands: ds.Bands()}, nil
}

func (s *gdalScene) Size() (int, int) { return s.rows, s.cols }

func (s *gdalScene) BandCount() int { return len(s.bands) }

func (s *gdalScene) ReadBand(band int) (*Grid, error) {
	if band < 1 || band > len(s.bands) {
		return nil, &BandRangeError{Band: band, Count: len(s.bands)}
	}
	b := s.bands[band-1]
	bs := b.Structure()
	if bs.SizeX != s.cols || bs.SizeY != s.rows {
		return nil, fmt.Errorf("band %d is %dx%d, dataset is %dx%d", band, bs.SizeY, bs.SizeX, s.rows, s.cols)
	}
	data := make([]float64, s.rows*s.cols)
	if err := b.Read(0, 0, data, s.cols, s.rows); err != nil {
		return nil, fmt.Errorf("read band %d: %w", band, err)
	}
	return &Grid{Rows: s.rows, Cols: s.cols, Data: data}, nil
}

func (s *gdalScene) Close() error {
	return s.ds.Close()
}

// readFirstBandGDAL reads band 1 of any GDAL-readable raster.
func readFirstBandGDAL(path string) (*Grid, error) {
	sc, err := openDataGDAL(path)
	if err != nil {
		return nil, err
	}
	defer sc.Close()
	return sc.ReadBand(1)
}

// gdalAvailable reports whether this build can open rasters through GDAL.
const gdalAvailable = true
