// Package testutil generates synthetic frames for tests across the module.
package testutil

import (
	"math"
	"math/rand"

	"github.com/srsergiolazaro/taptapp-ar-sub000/geometry"
	"github.com/srsergiolazaro/taptapp-ar-sub000/intensity"
)

// Blobs renders n Gaussian blobs of random position, radius and polarity on
// a mid-gray background. The result is deterministic for a given seed.
func Blobs(width, height, n int, seed int64) *intensity.Buffer {
	//nolint:gosec
	rng := rand.New(rand.NewSource(seed))
	pix := make([]float64, width*height)
	for i := range pix {
		pix[i] = 128
	}
	for b := 0; b < n; b++ {
		cx := rng.Float64() * float64(width)
		cy := rng.Float64() * float64(height)
		sigma := 1.5 + rng.Float64()*6
		amp := 60 + rng.Float64()*80
		if rng.Intn(2) == 0 {
			amp = -amp
		}
		r := int(3 * sigma)
		for y := int(cy) - r; y <= int(cy)+r; y++ {
			if y < 0 || y >= height {
				continue
			}
			for x := int(cx) - r; x <= int(cx)+r; x++ {
				if x < 0 || x >= width {
					continue
				}
				dx, dy := float64(x)-cx, float64(y)-cy
				pix[y*width+x] += amp * math.Exp(-(dx*dx+dy*dy)/(2*sigma*sigma))
			}
		}
	}
	out := make([]float32, len(pix))
	for i, v := range pix {
		out[i] = float32(math.Max(0, math.Min(255, v)))
	}
	return &intensity.Buffer{Width: width, Height: height, Pix: out}
}

// Constant returns a buffer filled with v.
func Constant(width, height int, v float32) *intensity.Buffer {
	pix := make([]float32, width*height)
	for i := range pix {
		pix[i] = v
	}
	return &intensity.Buffer{Width: width, Height: height, Pix: pix}
}

// Warp renders src seen through h (source to destination) into a new
// width x height frame. Pixels mapping outside src take the value fill.
func Warp(src *intensity.Buffer, h geometry.Homography, width, height int, fill float32) *intensity.Buffer {
	inv, ok := h.Inverse(1e-12)
	out := Constant(width, height, fill)
	if !ok {
		return out
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			w := inv[6]*float64(x) + inv[7]*float64(y) + inv[8]
			sx := (inv[0]*float64(x) + inv[1]*float64(y) + inv[2]) / w
			sy := (inv[3]*float64(x) + inv[4]*float64(y) + inv[5]) / w
			if sx < 0 || sy < 0 || sx > float64(src.Width-1) || sy > float64(src.Height-1) {
				continue
			}
			out.Pix[y*width+x] = float32(src.Bilinear(sx, sy))
		}
	}
	return out
}
