//go:build !gdal
// +build !gdal

package raster

import (
	"errors"
	"testing"
)

func TestOpenDataGDAL_Stub(t *testing.T) {
	_, err := openDataGDAL("scene_data.tif")
	if !errors.Is(err, ErrGDALDisabled) {
		t.Fatalf("expected ErrGDALDisabled, got %v", err)
	}
	if gdalAvailable {
		t.Error("gdalAvailable should be false without the gdal tag")
	}
}
