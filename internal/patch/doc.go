// Package patch cuts calibrated cubes and label masks into fixed-size square
// windows and splits them into train and test sets.
//
// Windows are taken on a regular grid with a fixed stride; the trailing
// remainder of each axis that cannot hold a full window is dropped, never
// padded. The flat patch order is row-major over grid positions, so index
// i*Layout.Cols+j always has its top-left corner at (i*stride, j*stride).
package patch
