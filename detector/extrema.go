package detector

import (
	"math"
	"sort"
)

type extremum struct {
	octave int
	x, y   float64 // octave coordinates, sub-pixel
	score  float64
	max    bool
}

// findExtrema scans DoG octave k against its finer and coarser neighbours.
func (d *Detector) findExtrema(k int) []extremum {
	cur, finer, coarser := d.octaves[k], d.octaves[k-1], d.octaves[k+1]
	w, h := cur.input.Width, cur.input.Height
	fw, fh := finer.input.Width, finer.input.Height
	cw, ch := coarser.input.Width, coarser.input.Height
	thresh := float32(d.cfg.DoGThreshold)

	var out []extremum
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			v := cur.dog[y*w+x]
			if v < thresh && v > -thresh {
				continue
			}
			isMax := v > 0
			if !extremeIn(cur.dog, w, h, x, y, v, isMax, true) {
				continue
			}
			if !extremeIn(finer.dog, fw, fh, 2*x, 2*y, v, isMax, false) {
				continue
			}
			if !extremeIn(coarser.dog, cw, ch, x/2, y/2, v, isMax, false) {
				continue
			}
			dx := parabolaOffset(cur.dog[y*w+x-1], v, cur.dog[y*w+x+1])
			dy := parabolaOffset(cur.dog[(y-1)*w+x], v, cur.dog[(y+1)*w+x])
			out = append(out, extremum{
				octave: k,
				x:      float64(x) + dx,
				y:      float64(y) + dy,
				score:  float64(v),
				max:    isMax,
			})
		}
	}
	return out
}

// extremeIn reports whether v beats every value of the 3x3 neighbourhood
// centred at (cx, cy). Coordinates are clamped. skipCentre excludes the
// centre, which is v itself on the same level.
func extremeIn(dog []float32, w, h, cx, cy int, v float32, isMax, skipCentre bool) bool {
	for dy := -1; dy <= 1; dy++ {
		y := clampInt(cy+dy, 0, h-1)
		for dx := -1; dx <= 1; dx++ {
			if skipCentre && dx == 0 && dy == 0 {
				continue
			}
			n := dog[y*w+clampInt(cx+dx, 0, w-1)]
			if isMax && n >= v {
				return false
			}
			if !isMax && n <= v {
				return false
			}
		}
	}
	return true
}

// parabolaOffset returns the vertex offset of the parabola through three
// samples, limited to half a pixel.
func parabolaOffset(l, c, r float32) float64 {
	den := float64(l) - 2*float64(c) + float64(r)
	if den == 0 {
		return 0
	}
	off := 0.5 * (float64(l) - float64(r)) / den
	return math.Max(-0.5, math.Min(0.5, off))
}

// prune keeps at most MaxPerBucket extrema per grid cell, strongest first.
func (d *Detector) prune(ext []extremum, w, h int) []extremum {
	nb := d.cfg.BucketsPerDimension
	buckets := make([][]extremum, nb*nb)
	for _, e := range ext {
		bx := clampInt(int(e.x*float64(nb)/float64(w)), 0, nb-1)
		by := clampInt(int(e.y*float64(nb)/float64(h)), 0, nb-1)
		buckets[by*nb+bx] = append(buckets[by*nb+bx], e)
	}
	out := make([]extremum, 0, len(ext))
	for _, b := range buckets {
		sort.SliceStable(b, func(i, j int) bool {
			return math.Abs(b[i].score) > math.Abs(b[j].score)
		})
		if len(b) > d.cfg.MaxPerBucket {
			b = b[:d.cfg.MaxPerBucket]
		}
		out = append(out, b...)
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
