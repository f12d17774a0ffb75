package texture

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// TGA image type constants.
const (
	TGATypeUncompressed = 2  // Uncompressed true-color
	TGATypeRLE          = 10 // RLE compressed true-color
)

// ErrUnsupportedTGA is returned for TGA variants the decoder does not handle.
var ErrUnsupportedTGA = errors.New("unsupported TGA")

const tgaHeaderSize = 18

// tgaReader walks TGA pixel data in file order and writes into an image.
type tgaReader struct {
	img           *image.RGBA
	width, height int
	bytesPerPixel int
	topToBottom   bool
	next          int // pixel index in file order
}

func (t *tgaReader) done() bool {
	return t.next >= t.width*t.height
}

// put stores one pixel in BGR(A) order at the next position.
func (t *tgaReader) put(p []byte) {
	x := t.next % t.width
	y := t.next / t.width
	if !t.topToBottom {
		y = t.height - 1 - y
	}
	a := uint8(255)
	if t.bytesPerPixel == 4 {
		a = p[3]
	}
	t.img.SetRGBA(x, y, color.RGBA{R: p[2], G: p[1], B: p[0], A: a})
	t.next++
}

// DecodeTGA decodes an uncompressed (type 2) or RLE (type 10) true-color
// TGA image with 24 or 32 bits per pixel.
func DecodeTGA(data []byte) (*image.RGBA, error) {
	if len(data) < tgaHeaderSize {
		return nil, fmt.Errorf("TGA data too short: %d bytes", len(data))
	}

	idLength := int(data[0])
	colorMapType := data[1]
	imageType := data[2]
	width := int(data[12]) | int(data[13])<<8
	height := int(data[14]) | int(data[15])<<8
	bpp := int(data[16])
	descriptor := data[17]

	if colorMapType != 0 {
		return nil, fmt.Errorf("%w: color-mapped", ErrUnsupportedTGA)
	}
	if imageType != TGATypeUncompressed && imageType != TGATypeRLE {
		return nil, fmt.Errorf("%w: type %d", ErrUnsupportedTGA, imageType)
	}
	if bpp != 24 && bpp != 32 {
		return nil, fmt.Errorf("%w: %d bits per pixel", ErrUnsupportedTGA, bpp)
	}

	offset := tgaHeaderSize + idLength
	if offset > len(data) {
		return nil, fmt.Errorf("TGA data truncated")
	}
	pixels := data[offset:]

	t := &tgaReader{
		img:           image.NewRGBA(image.Rect(0, 0, width, height)),
		width:         width,
		height:        height,
		bytesPerPixel: bpp / 8,
		topToBottom:   descriptor&0x20 != 0,
	}

	if imageType == TGATypeUncompressed {
		if len(pixels) < width*height*t.bytesPerPixel {
			return nil, fmt.Errorf("TGA pixel data truncated")
		}
		for i := 0; !t.done(); i += t.bytesPerPixel {
			t.put(pixels[i:])
		}
		return t.img, nil
	}

	t.decodeRLE(pixels)
	return t.img, nil
}

// decodeRLE expands RLE packets. Truncated input leaves the remaining pixels
// transparent.
func (t *tgaReader) decodeRLE(data []byte) {
	bpp := t.bytesPerPixel
	i := 0
	for !t.done() && i < len(data) {
		packet := data[i]
		i++
		count := int(packet&0x7F) + 1

		if packet&0x80 != 0 {
			if i+bpp > len(data) {
				return
			}
			p := data[i : i+bpp]
			i += bpp
			for n := 0; n < count && !t.done(); n++ {
				t.put(p)
			}
			continue
		}

		for n := 0; n < count && !t.done(); n++ {
			if i+bpp > len(data) {
				return
			}
			t.put(data[i : i+bpp])
			i += bpp
		}
	}
}
