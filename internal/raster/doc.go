// Package raster holds the in-memory array types shared by the calibration,
// patching and prediction stages, plus the readers and writers that move
// them on and off disk.
//
// Grid is a single row-major plane. Cube stacks channels with the channel
// axis fastest, so a pixel's channel vector is contiguous.
//
// The GDAL-backed scene reader is compiled only with -tags gdal.
package raster
