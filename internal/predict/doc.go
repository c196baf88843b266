// Package predict runs a patch scorer over a full calibrated scene and
// stitches the per-tile predictions back into one raster.
//
// Tiles overlap by twice the boundary width; only the interior of each tile
// prediction is kept, so the reassembled raster is free of tile-edge
// artifacts. Tiles are scored one at a time in row-major order.
package predict
