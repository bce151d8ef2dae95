package intensity

import "math"

// Patch is a square template cut from a Buffer, stored mean-centred.
type Patch struct {
	Radius int
	Pix    []float64
	Norm   float64 // sqrt of the centred sum of squares; 0 for a flat patch
}

// NewPatch cuts the (2r+1)^2 template centred at (cx, cy). It returns false
// when the template leaves the image.
func NewPatch(b *Buffer, cx, cy, r int) (Patch, bool) {
	if cx-r < 0 || cy-r < 0 || cx+r >= b.Width || cy+r >= b.Height {
		return Patch{}, false
	}
	side := 2*r + 1
	p := Patch{Radius: r, Pix: make([]float64, 0, side*side)}
	sum := 0.0
	for y := cy - r; y <= cy+r; y++ {
		row := b.Pix[y*b.Width+cx-r : y*b.Width+cx+r+1]
		for _, v := range row {
			p.Pix = append(p.Pix, float64(v))
			sum += float64(v)
		}
	}
	mean := sum / float64(len(p.Pix))
	ss := 0.0
	for i := range p.Pix {
		p.Pix[i] -= mean
		ss += p.Pix[i] * p.Pix[i]
	}
	p.Norm = math.Sqrt(ss)
	return p, true
}

// StdDev returns the standard deviation of the template intensities.
func (p Patch) StdDev() float64 {
	if len(p.Pix) == 0 {
		return 0
	}
	return p.Norm / math.Sqrt(float64(len(p.Pix)))
}

// NCC returns the normalized cross-correlation of p against the window of b
// centred at (cx, cy), in [-1, 1]. It returns -1 when either side has zero
// variance or the window leaves the image.
func (p Patch) NCC(b *Buffer, cx, cy int) float64 {
	r := p.Radius
	if p.Norm == 0 || cx-r < 0 || cy-r < 0 || cx+r >= b.Width || cy+r >= b.Height {
		return -1
	}
	var sum, sumSq, cross float64
	i := 0
	for y := cy - r; y <= cy+r; y++ {
		row := b.Pix[y*b.Width+cx-r : y*b.Width+cx+r+1]
		for _, v := range row {
			w := float64(v)
			sum += w
			sumSq += w * w
			cross += p.Pix[i] * w
			i++
		}
	}
	n := float64(len(p.Pix))
	variance := sumSq - sum*sum/n
	if variance <= 1e-9 || math.IsNaN(variance) {
		return -1
	}
	return cross / (p.Norm * math.Sqrt(variance))
}
