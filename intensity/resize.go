package intensity

import (
	"fmt"
	"image"
	"math"

	"github.com/nfnt/resize"
)

// Gray returns b as an 8-bit grayscale image, rounding and clamping values.
func (b *Buffer) Gray() *image.Gray {
	g := image.NewGray(image.Rect(0, 0, b.Width, b.Height))
	for i, v := range b.Pix {
		g.Pix[i] = uint8(math.Max(0, math.Min(255, math.Round(float64(v)))))
	}
	return g
}

// Resize returns b scaled to width x height with bilinear interpolation.
func (b *Buffer) Resize(width, height int) (*Buffer, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: resize to %dx%d", ErrMalformed, width, height)
	}
	if width == b.Width && height == b.Height {
		out := &Buffer{Width: width, Height: height, Pix: make([]float32, len(b.Pix))}
		copy(out.Pix, b.Pix)
		return out, nil
	}
	scaled := resize.Resize(uint(width), uint(height), b.Gray(), resize.Bilinear)
	return FromImage(scaled)
}
