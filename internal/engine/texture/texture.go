// Package texture decodes encoded images into RGBA pixel buffers for the GPU
// backends.
package texture

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultBlankName is the image name materials without a texture fall back
// to. A scene may ship its own image under this name; otherwise Blank is used.
const DefaultBlankName = "DEFAULT_BLANK_TEXTURE.png"

// Decode decodes an encoded image to RGBA. The name selects the TGA decoder
// by extension; every other format is sniffed from the data.
func Decode(name string, data []byte) (*image.RGBA, error) {
	if strings.EqualFold(filepath.Ext(name), ".tga") {
		img, err := DecodeTGA(data)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", name, err)
		}
		return img, nil
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", name, err)
	}
	if format == "" {
		return nil, fmt.Errorf("decoding %s: unknown format", name)
	}
	return ToRGBA(img), nil
}

// ToRGBA converts any image to *image.RGBA with its origin at (0, 0).
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}

// FlipVertical returns a copy of img with its rows in reverse order, for
// APIs whose first texel row is the bottom of the image.
func FlipVertical(img *image.RGBA) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)
	rowSize := b.Dx() * 4
	for y := 0; y < b.Dy(); y++ {
		src := img.PixOffset(b.Min.X, b.Max.Y-1-y)
		dst := out.PixOffset(b.Min.X, b.Min.Y+y)
		copy(out.Pix[dst:dst+rowSize], img.Pix[src:src+rowSize])
	}
	return out
}

// Blank returns a 1x1 opaque white image.
func Blank() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.SetRGBA(0, 0, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	return img
}
