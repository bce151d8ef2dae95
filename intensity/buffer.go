// Package intensity holds the single-channel frame type consumed by the detector and tracker.
package intensity

import (
	"fmt"
	"image"

	"go.viam.com/rdk/rimage"
)

// Buffer is a row-major single-channel intensity image with no stride padding.
// Values are on a 0-255 scale.
type Buffer struct {
	Width  int
	Height int
	Pix    []float32
}

// New wraps pix as a Buffer. The slice is not copied.
func New(width, height int, pix []float32) (*Buffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: size %dx%d", ErrMalformed, width, height)
	}
	if len(pix) != width*height {
		return nil, fmt.Errorf("%w: got %d values for %dx%d", ErrMalformed, len(pix), width, height)
	}
	return &Buffer{Width: width, Height: height, Pix: pix}, nil
}

// FromBytes converts an unsigned byte buffer into a Buffer.
func FromBytes(width, height int, pix []byte) (*Buffer, error) {
	if width <= 0 || height <= 0 || len(pix) != width*height {
		return nil, fmt.Errorf("%w: got %d bytes for %dx%d", ErrMalformed, len(pix), width, height)
	}
	out := make([]float32, len(pix))
	for i, v := range pix {
		out[i] = float32(v)
	}
	return &Buffer{Width: width, Height: height, Pix: out}, nil
}

// FromImage converts any image to grayscale intensities.
func FromImage(img image.Image) (*Buffer, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrMalformed)
	}
	gray := rimage.MakeGray(rimage.ConvertImage(img))
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrMalformed)
	}
	out := make([]float32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out[y*w+x] = float32(gray.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
		}
	}
	return &Buffer{Width: w, Height: h, Pix: out}, nil
}

// Validate reports whether b is usable.
func (b *Buffer) Validate() error {
	if b == nil {
		return fmt.Errorf("%w: nil buffer", ErrMalformed)
	}
	if b.Width <= 0 || b.Height <= 0 || len(b.Pix) != b.Width*b.Height {
		return fmt.Errorf("%w: got %d values for %dx%d", ErrMalformed, len(b.Pix), b.Width, b.Height)
	}
	return nil
}

// At returns the intensity at (x, y) clamped to the image border.
func (b *Buffer) At(x, y int) float32 {
	if x < 0 {
		x = 0
	} else if x >= b.Width {
		x = b.Width - 1
	}
	if y < 0 {
		y = 0
	} else if y >= b.Height {
		y = b.Height - 1
	}
	return b.Pix[y*b.Width+x]
}

// Bilinear samples b at a sub-pixel location. Callers keep (x, y) inside
// [0, Width-1] x [0, Height-1]; coordinates outside are clamped.
func (b *Buffer) Bilinear(x, y float64) float64 {
	x0 := int(x)
	y0 := int(y)
	if x < 0 {
		x0 = -1
	}
	if y < 0 {
		y0 = -1
	}
	fx := x - float64(x0)
	fy := y - float64(y0)
	v00 := float64(b.At(x0, y0))
	v10 := float64(b.At(x0+1, y0))
	v01 := float64(b.At(x0, y0+1))
	v11 := float64(b.At(x0+1, y0+1))
	return (v00*(1-fx)+v10*fx)*(1-fy) + (v01*(1-fx)+v11*fx)*fy
}
