package raster

import (
	"fmt"
	"image"
	"image/color"
	_ "image/png" // photo previews
	"io"
	"math"

	"golang.org/x/image/tiff"
)

// DecodeLabels decodes a single-band class index TIFF. 8- and 16-bit gray
// and paletted images are accepted; for paletted images the palette index
// is the class.
func DecodeLabels(r io.Reader) (*Grid, error) {
	img, err := tiff.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode label tiff: %w", err)
	}
	b := img.Bounds()
	g := NewGrid(b.Dy(), b.Dx())
	switch im := img.(type) {
	case *image.Gray:
		for y := 0; y < g.Rows; y++ {
			for x := 0; x < g.Cols; x++ {
				g.Set(y, x, float64(im.GrayAt(b.Min.X+x, b.Min.Y+y).Y))
			}
		}
	case *image.Gray16:
		for y := 0; y < g.Rows; y++ {
			for x := 0; x < g.Cols; x++ {
				g.Set(y, x, float64(im.Gray16At(b.Min.X+x, b.Min.Y+y).Y))
			}
		}
	case *image.Paletted:
		for y := 0; y < g.Rows; y++ {
			for x := 0; x < g.Cols; x++ {
				g.Set(y, x, float64(im.ColorIndexAt(b.Min.X+x, b.Min.Y+y)))
			}
		}
	default:
		return nil, fmt.Errorf("label tiff has unsupported color model %T", img)
	}
	return g, nil
}

// DecodePhotoSize reads only the header of a preview image.
func DecodePhotoSize(r io.Reader) (rows, cols int, err error) {
	cfg, _, err := image.DecodeConfig(r)
	if err != nil {
		return 0, 0, fmt.Errorf("decode photo header: %w", err)
	}
	return cfg.Height, cfg.Width, nil
}

// EncodeScores writes a continuous score raster as a deflate-compressed
// 16-bit gray TIFF. Scores are clamped to [0,1] and scaled to 0..65535.
func EncodeScores(w io.Writer, g *Grid) error {
	img := image.NewGray16(image.Rect(0, 0, g.Cols, g.Rows))
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			v := math.Max(0, math.Min(1, g.At(r, c)))
			img.SetGray16(c, r, color.Gray16{Y: uint16(math.Round(v * math.MaxUint16))})
		}
	}
	return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
}

// EncodeMask writes a {0,1} raster as an 8-bit gray TIFF with values 0/1.
func EncodeMask(w io.Writer, g *Grid) error {
	img := image.NewGray(image.Rect(0, 0, g.Cols, g.Rows))
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			if g.At(r, c) != 0 {
				img.SetGray(c, r, color.Gray{Y: 1})
			}
		}
	}
	return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
}
