package services

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransformer(t *testing.T) *Transformer {
	return NewTransformer(testConfig(t))
}

func TestTransformDownscalesLargeRaster(t *testing.T) {
	tr := newTestTransformer(t)

	out, err := tr.Transform(pngBytes(t, 3000, 1500), "image/png")
	require.NoError(t, err)

	assert.Equal(t, "image/jpeg", out.MimeType)
	assert.Equal(t, ".jpg", out.Extension)
	require.NotNil(t, out.Width)
	require.NotNil(t, out.Height)
	assert.Equal(t, 3000, *out.Width)
	assert.Equal(t, 1500, *out.Height)

	stored, err := jpeg.DecodeConfig(bytes.NewReader(out.Data))
	require.NoError(t, err)
	assert.Equal(t, 2000, stored.Width)
	assert.Equal(t, 1000, stored.Height)
}

func TestTransformNeverUpscales(t *testing.T) {
	tr := newTestTransformer(t)

	out, err := tr.Transform(pngBytes(t, 640, 480), "image/png")
	require.NoError(t, err)

	stored, err := jpeg.DecodeConfig(bytes.NewReader(out.Data))
	require.NoError(t, err)
	assert.Equal(t, 640, stored.Width)
	assert.Equal(t, 480, stored.Height)
	assert.Equal(t, 640, *out.Width)
	assert.Equal(t, 480, *out.Height)
}

func TestTransformTallImage(t *testing.T) {
	tr := newTestTransformer(t)

	out, err := tr.Transform(pngBytes(t, 500, 4000), "image/png")
	require.NoError(t, err)

	stored, err := jpeg.DecodeConfig(bytes.NewReader(out.Data))
	require.NoError(t, err)
	assert.Equal(t, 250, stored.Width)
	assert.Equal(t, 2000, stored.Height)
}

func TestTransformGIFPassthrough(t *testing.T) {
	tr := newTestTransformer(t)

	pal := image.NewPaletted(image.Rect(0, 0, 3000, 20), []color.Color{color.Black, color.White})
	anim := &gif.GIF{Image: []*image.Paletted{pal, pal}, Delay: []int{10, 10}}
	var buf bytes.Buffer
	require.NoError(t, gif.EncodeAll(&buf, anim))
	data := buf.Bytes()

	out, err := tr.Transform(data, "image/gif")
	require.NoError(t, err)
	assert.Equal(t, data, out.Data)
	assert.Equal(t, "image/gif", out.MimeType)
	assert.Equal(t, ".gif", out.Extension)
	require.NotNil(t, out.Width)
	assert.Equal(t, 3000, *out.Width)
	assert.Equal(t, 20, *out.Height)
}

func TestTransformVideoPassthrough(t *testing.T) {
	tr := newTestTransformer(t)
	data := []byte("\x00\x00\x00\x18ftypmp42 not really a movie")

	out, err := tr.Transform(data, "video/mp4")
	require.NoError(t, err)
	assert.Equal(t, data, out.Data)
	assert.Equal(t, ".mp4", out.Extension)
	assert.Nil(t, out.Width)
	assert.Nil(t, out.Height)
}

func TestTransformDecodeError(t *testing.T) {
	tr := newTestTransformer(t)

	_, err := tr.Transform([]byte("definitely not a png"), "image/png")
	assert.Error(t, err)
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		w, h, wantW, wantH int
	}{
		{3000, 1500, 2000, 1000},
		{1500, 3000, 1000, 2000},
		{2000, 2000, 2000, 2000},
		{100, 50, 100, 50},
		{4001, 1, 2000, 1},
	}
	for _, tt := range tests {
		w, h := fitWithin(tt.w, tt.h, 2000, 2000)
		assert.Equal(t, tt.wantW, w, "%dx%d", tt.w, tt.h)
		assert.Equal(t, tt.wantH, h, "%dx%d", tt.w, tt.h)
	}
}
