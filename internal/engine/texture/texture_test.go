package texture

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func checker() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.NRGBA{255, 0, 0, 255})
	img.Set(1, 0, color.NRGBA{0, 255, 0, 255})
	img.Set(0, 1, color.NRGBA{0, 0, 255, 255})
	img.Set(1, 1, color.NRGBA{255, 255, 255, 255})
	return img
}

func TestDecodePNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, checker()))

	img, err := Decode("checker.png", buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 2, 2), img.Bounds())
	assert.Equal(t, color.RGBA{0, 255, 0, 255}, img.RGBAAt(1, 0))
	assert.Equal(t, color.RGBA{0, 0, 255, 255}, img.RGBAAt(0, 1))
}

func TestDecodeBMP(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, checker()))

	// The extension does not matter for sniffed formats.
	img, err := Decode("checker.png", buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, img.RGBAAt(0, 0))
}

func makeTGA(imageType byte, bpp byte, topToBottom bool, width, height int, body []byte) []byte {
	h := make([]byte, tgaHeaderSize)
	h[2] = imageType
	h[12], h[13] = byte(width), byte(width>>8)
	h[14], h[15] = byte(height), byte(height>>8)
	h[16] = bpp
	if topToBottom {
		h[17] = 0x20
	}
	return append(h, body...)
}

func TestDecodeTGAUncompressed(t *testing.T) {
	// Bottom-up rows, BGR order.
	body := []byte{
		255, 0, 0, 0, 255, 0, // bottom row: blue, green
		0, 0, 255, 255, 255, 255, // top row: red, white
	}
	img, err := Decode("tex.TGA", makeTGA(TGATypeUncompressed, 24, false, 2, 2, body))
	require.NoError(t, err)

	assert.Equal(t, color.RGBA{255, 0, 0, 255}, img.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, img.RGBAAt(1, 0))
	assert.Equal(t, color.RGBA{0, 0, 255, 255}, img.RGBAAt(0, 1))
	assert.Equal(t, color.RGBA{0, 255, 0, 255}, img.RGBAAt(1, 1))
}

func TestDecodeTGARLE(t *testing.T) {
	body := []byte{
		0x82, 10, 20, 30, 128, // run of 3 pixels
		0x00, 1, 2, 3, 4, // one raw pixel
	}
	img, err := DecodeTGA(makeTGA(TGATypeRLE, 32, true, 2, 2, body))
	require.NoError(t, err)

	run := color.RGBA{R: 30, G: 20, B: 10, A: 128}
	assert.Equal(t, run, img.RGBAAt(0, 0))
	assert.Equal(t, run, img.RGBAAt(1, 0))
	assert.Equal(t, run, img.RGBAAt(0, 1))
	assert.Equal(t, color.RGBA{R: 3, G: 2, B: 1, A: 4}, img.RGBAAt(1, 1))
}

func TestDecodeTGAErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"too short", []byte{0, 0, 2}},
		{"color mapped", func() []byte { d := makeTGA(1, 24, false, 1, 1, []byte{0, 0, 0}); d[1] = 1; return d }()},
		{"grayscale", makeTGA(3, 8, false, 1, 1, []byte{0})},
		{"16 bit", makeTGA(TGATypeUncompressed, 16, false, 1, 1, []byte{0, 0})},
		{"truncated pixels", makeTGA(TGATypeUncompressed, 24, false, 2, 2, []byte{1, 2, 3})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeTGA(tt.data)
			assert.Error(t, err)
		})
	}
}

func TestDecodeGarbage(t *testing.T) {
	_, err := Decode("broken.png", []byte("definitely not an image"))
	assert.Error(t, err)
}

func TestFlipVertical(t *testing.T) {
	img := ToRGBA(checker())
	flipped := FlipVertical(img)

	assert.Equal(t, img.RGBAAt(0, 0), flipped.RGBAAt(0, 1))
	assert.Equal(t, img.RGBAAt(1, 1), flipped.RGBAAt(1, 0))
	assert.Equal(t, img.RGBAAt(0, 0), FlipVertical(flipped).RGBAAt(0, 0))
}

func TestToRGBAOffsetBounds(t *testing.T) {
	src := image.NewRGBA(image.Rect(5, 5, 7, 6))
	src.SetRGBA(5, 5, color.RGBA{9, 9, 9, 255})

	out := ToRGBA(src)
	assert.Equal(t, image.Rect(0, 0, 2, 1), out.Bounds())
	assert.Equal(t, color.RGBA{9, 9, 9, 255}, out.RGBAAt(0, 0))
}

func TestBlank(t *testing.T) {
	img := Blank()
	assert.Equal(t, image.Rect(0, 0, 1, 1), img.Bounds())
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, img.RGBAAt(0, 0))
}
