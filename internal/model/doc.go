// Package model defines the narrow contract between the pipeline and a
// patch segmentation model: a Driver trains on patch datasets and returns a
// Model that scores tiles and can persist itself.
//
// Concrete drivers live in subpackages; the pipeline depends only on the
// interfaces here.
package model
