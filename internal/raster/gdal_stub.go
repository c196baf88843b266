//go:build !gdal
// +build !gdal

package raster

// openDataGDAL is a stub when GDAL support is disabled.
// Build with -tags=gdal to enable multi-band raster reading.
func openDataGDAL(path string) (Scene, error) {
	return nil, ErrGDALDisabled
}

// readFirstBandGDAL is a stub when GDAL support is disabled.
func readFirstBandGDAL(path string) (*Grid, error) {
	return nil, ErrGDALDisabled
}

const gdalAvailable = false
