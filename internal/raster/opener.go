package raster

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hydrosat/patchseg/internal/fsutil"
)

// FileOpener reads scenes from disk. Data rasters go through GDAL; label
// TIFFs and photo headers are decoded in Go through FS, falling back to
// GDAL for label formats the Go decoder cannot read.
type FileOpener struct {
	FS fsutil.FileSystem
}

// NewFileOpener returns an opener over the OS filesystem.
func NewFileOpener() *FileOpener {
	return &FileOpener{FS: fsutil.OSFileSystem{}}
}

// OpenData opens the multi-band data raster.
func (o *FileOpener) OpenData(path string) (Scene, error) {
	return openDataGDAL(path)
}

// ReadLabels reads the class index raster.
func (o *FileOpener) ReadLabels(path string) (*Grid, error) {
	f, err := o.FS.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	g, err := DecodeLabels(f)
	if err == nil {
		return g, nil
	}
	if !gdalAvailable || !strings.HasSuffix(strings.ToLower(path), ".tif") {
		return nil, err
	}
	// Signed or float label rasters are outside x/image/tiff.
	g, gerr := readFirstBandGDAL(path)
	if gerr != nil {
		return nil, errors.Join(err, gerr)
	}
	return g, nil
}

// PhotoSize returns the dimensions of the RGB preview image.
func (o *FileOpener) PhotoSize(path string) (int, int, error) {
	f, err := o.FS.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	rows, cols, err := DecodePhotoSize(f)
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", path, err)
	}
	return rows, cols, nil
}
