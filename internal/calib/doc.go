// Package calib converts raw sensor digital numbers into calibrated,
// normalized data cubes.
//
// Responsibilities: spectral band adjustment (SBAF) tables, radiance to
// temperature lookup tables, the quality mask, and the fixed normalization
// that the segmentation model expects.
// Key types: SBAF, LUT, Calibrator.
//
// Tables are loaded once per run and shared read-only; a Calibrator holds
// no mutable state, so one value may serve any number of goroutines.
package calib
