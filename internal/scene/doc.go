// Package scene discovers scene files in a directory and assembles them into
// one calibrated training composite.
//
// A scene is three files sharing a stem: <stem>data.tif (multi-band raw
// raster), <stem>labels.tif (per-pixel class codes) and <stem>photo.png
// (visual reference, used only for its dimensions). Scenes that fail any
// step are skipped and reported; the rest are concatenated along the column
// axis in filename order.
package scene
