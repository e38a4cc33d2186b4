package processor

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRawGray(t *testing.T) {
	img, err := decodeRaw([]byte{0, 64, 128, 255}, 2, 2, 1)
	require.NoError(t, err)

	gray, ok := img.(*image.Gray)
	require.True(t, ok)
	assert.Equal(t, uint8(128), gray.GrayAt(0, 1).Y)
}

func TestDecodeRawRGB(t *testing.T) {
	img, err := decodeRaw([]byte{255, 0, 0, 0, 255, 0}, 2, 1, 3)
	require.NoError(t, err)

	r, g, b, _ := img.At(1, 0).RGBA()
	assert.Zero(t, r)
	assert.NotZero(t, g)
	assert.Zero(t, b)
}

func TestDecodeRawErrors(t *testing.T) {
	_, err := decodeRaw([]byte{1, 2}, 2, 2, 1)
	assert.Error(t, err)

	_, err = decodeRaw(nil, 0, 2, 1)
	assert.Error(t, err)

	_, err = decodeRaw(make([]byte, 16), 2, 2, 4)
	assert.ErrorIs(t, err, errUnsupportedImage)
}

func TestWritePNG(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "images")
	img := image.NewGray(image.Rect(0, 0, 3, 3))

	path, err := writePNG(dir, img)
	require.NoError(t, err)
	assert.Equal(t, ".png", filepath.Ext(path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	decoded, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 3, decoded.Bounds().Dx())
}
