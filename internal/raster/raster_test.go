package raster

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"

	"github.com/hydrosat/patchseg/internal/fsutil"
)

func seqCube(rows, cols, channels int) *Cube {
	c := NewCube(rows, cols, channels)
	for i := range c.Data {
		c.Data[i] = float64(i)
	}
	return c
}

func TestCube_ChannelLayout(t *testing.T) {
	c := seqCube(2, 3, 5)

	assert.Equal(t, float64((1*3+2)*5+4), c.At(1, 2, 4))
	assert.Equal(t, []float64{5, 6, 7, 8, 9}, c.Pixel(0, 1))

	ch := c.Channel(ChannelTemperature)
	assert.Equal(t, 2, ch.Rows)
	assert.Equal(t, 3, ch.Cols)
	assert.Equal(t, c.At(1, 0, ChannelTemperature), ch.At(1, 0))
}

func TestCube_SetChannel(t *testing.T) {
	c := NewCube(2, 2, 3)
	g := NewGrid(2, 2)
	g.Data = []float64{1, 2, 3, 4}

	require.NoError(t, c.SetChannel(1, g))
	if diff := cmp.Diff(g.Data, c.Channel(1).Data); diff != "" {
		t.Errorf("channel mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 0.0, c.At(1, 1, 0))

	assert.Error(t, c.SetChannel(3, g))
	assert.Error(t, c.SetChannel(0, NewGrid(3, 2)))
}

func TestCube_Window(t *testing.T) {
	c := seqCube(4, 5, 2)

	w, err := c.Window(1, 2, 2, 3)
	require.NoError(t, err)
	for r := 0; r < 2; r++ {
		for col := 0; col < 3; col++ {
			for ch := 0; ch < 2; ch++ {
				assert.Equal(t, c.At(1+r, 2+col, ch), w.At(r, col, ch))
			}
		}
	}

	_, err = c.Window(3, 0, 2, 1)
	assert.Error(t, err)
	_, err = c.Window(-1, 0, 1, 1)
	assert.Error(t, err)
}

func TestHConcat(t *testing.T) {
	a := seqCube(2, 2, 1)
	b := NewCube(2, 3, 1)
	for i := range b.Data {
		b.Data[i] = 100 + float64(i)
	}

	out, err := HConcat(a, b)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Rows)
	assert.Equal(t, 5, out.Cols)
	assert.Equal(t, []float64{0, 1, 100, 101, 102, 2, 3, 103, 104, 105}, out.Data)

	_, err = HConcat(a, NewCube(3, 2, 1))
	assert.Error(t, err, "row mismatch")
	_, err = HConcat(a, NewCube(2, 2, 2))
	assert.Error(t, err, "channel mismatch")
	_, err = HConcat()
	assert.Error(t, err)
}

func TestHConcatGrids(t *testing.T) {
	a, _ := GridFrom(2, 1, []float64{1, 2})
	b, _ := GridFrom(2, 2, []float64{3, 4, 5, 6})

	out, err := HConcatGrids(a, b)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 3, 4, 2, 5, 6}, out.Data)

	_, err = HConcatGrids(a, NewGrid(1, 1))
	assert.Error(t, err)
}

func TestGridFrom_LengthCheck(t *testing.T) {
	_, err := GridFrom(2, 2, []float64{1, 2, 3})
	assert.Error(t, err)
}

func TestMemScene_ReadBand(t *testing.T) {
	b1, _ := GridFrom(1, 2, []float64{1, 2})
	s := &MemScene{Bands: []*Grid{b1}}

	got, err := s.ReadBand(1)
	require.NoError(t, err)
	got.Data[0] = 9
	assert.Equal(t, 1.0, b1.Data[0], "ReadBand must return a copy")

	_, err = s.ReadBand(2)
	var rangeErr *BandRangeError
	assert.ErrorAs(t, err, &rangeErr)
}

func TestMaskTIFF_RoundTripThroughLabelDecoder(t *testing.T) {
	g, _ := GridFrom(2, 3, []float64{0, 1, 1, 0, 0, 1})

	var buf bytes.Buffer
	require.NoError(t, EncodeMask(&buf, g))

	got, err := DecodeLabels(&buf)
	require.NoError(t, err)
	assert.Equal(t, g.Data, got.Data)
}

func TestDecodeLabels_Paletted(t *testing.T) {
	pal := color.Palette{color.Black, color.White, color.Gray{Y: 128}, color.Gray{Y: 200}}
	img := image.NewPaletted(image.Rect(0, 0, 2, 2), pal)
	img.SetColorIndex(0, 0, 3)
	img.SetColorIndex(1, 1, 2)

	var buf bytes.Buffer
	require.NoError(t, tiff.Encode(&buf, img, nil))

	got, err := DecodeLabels(&buf)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 0, 0, 2}, got.Data)
}

func TestEncodeScores_ClampsAndScales(t *testing.T) {
	g, _ := GridFrom(1, 4, []float64{-0.5, 0, 0.5, 1.7})

	var buf bytes.Buffer
	require.NoError(t, EncodeScores(&buf, g))

	img, err := tiff.Decode(&buf)
	require.NoError(t, err)
	gray, ok := img.(*image.Gray16)
	require.True(t, ok, "expected Gray16, got %T", img)
	assert.Equal(t, uint16(0), gray.Gray16At(0, 0).Y)
	assert.Equal(t, uint16(0), gray.Gray16At(1, 0).Y)
	assert.Equal(t, uint16(32768), gray.Gray16At(2, 0).Y)
	assert.Equal(t, uint16(65535), gray.Gray16At(3, 0).Y)
}

func TestFileOpener_LabelsAndPhoto(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()

	labels, _ := GridFrom(2, 2, []float64{0, 1, 1, 0})
	var lbuf bytes.Buffer
	require.NoError(t, EncodeMask(&lbuf, labels))
	require.NoError(t, mfs.WriteFile("/s/a_labels.tif", lbuf.Bytes(), 0644))

	var pbuf bytes.Buffer
	require.NoError(t, png.Encode(&pbuf, image.NewRGBA(image.Rect(0, 0, 7, 3))))
	require.NoError(t, mfs.WriteFile("/s/a_photo.png", pbuf.Bytes(), 0644))

	o := &FileOpener{FS: mfs}

	got, err := o.ReadLabels("/s/a_labels.tif")
	require.NoError(t, err)
	assert.Equal(t, labels.Data, got.Data)

	rows, cols, err := o.PhotoSize("/s/a_photo.png")
	require.NoError(t, err)
	assert.Equal(t, 3, rows)
	assert.Equal(t, 7, cols)

	_, err = o.ReadLabels("/s/missing_labels.tif")
	assert.Error(t, err)
}
