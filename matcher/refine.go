package matcher

import (
	"math"

	"github.com/golang/geo/r2"

	"github.com/srsergiolazaro/taptapp-ar-sub000/geometry"
	"github.com/srsergiolazaro/taptapp-ar-sub000/intensity"
)

// refineEdges samples each keyframe border through h, moves every sample
// along the border normal to the strongest image gradient within
// EdgeWindow pixels, and blends the homography fitted to the snapped
// border with h.
func (m *Matcher) refineEdges(img *intensity.Buffer, h geometry.Homography, kw, kh int) (geometry.Homography, bool) {
	corners := geometry.Rectangle(float64(kw), float64(kh))
	n := m.cfg.EdgeSamples
	var src, dst []r2.Point
	for e := 0; e < 4; e++ {
		a, b := corners[e], corners[(e+1)%4]
		along := b.Sub(a)
		for s := 0; s < n; s++ {
			p := a.Add(along.Mul((float64(s) + 0.5) / float64(n)))
			q := h.Apply(p)
			tangent := h.Apply(p.Add(along.Mul(1e-3))).Sub(q)
			if tangent.Norm() == 0 || math.IsNaN(tangent.X) {
				continue
			}
			normal := tangent.Ortho().Normalize()
			snapped, ok := m.snap(img, q, normal)
			if !ok {
				continue
			}
			src = append(src, p)
			dst = append(dst, snapped)
		}
	}
	if len(src) < 2*n {
		return geometry.Homography{}, false
	}
	hr, ok := FitHomography(src, dst)
	if !ok || !plausible(hr, kw, kh, m.cfg.MinAreaRatio) {
		return geometry.Homography{}, false
	}

	a := m.cfg.EdgeBlend
	var out geometry.Homography
	for i := range out {
		out[i] = a*hr[i] + (1-a)*h[i]
	}
	out, ok = out.Normalize()
	if !ok || !plausible(out, kw, kh, m.cfg.MinAreaRatio) {
		return geometry.Homography{}, false
	}
	return out, true
}

// snap returns the point of maximum gradient magnitude on the segment
// q +- EdgeWindow*normal, sampled at one pixel steps.
func (m *Matcher) snap(img *intensity.Buffer, q, normal r2.Point) (r2.Point, bool) {
	w := m.cfg.EdgeWindow
	best, bestMag := q, 0.0
	for o := -w; o <= w; o++ {
		p := q.Add(normal.Mul(o))
		if p.X < 1 || p.Y < 1 || p.X > float64(img.Width-2) || p.Y > float64(img.Height-2) {
			continue
		}
		gx := img.Bilinear(p.X+1, p.Y) - img.Bilinear(p.X-1, p.Y)
		gy := img.Bilinear(p.X, p.Y+1) - img.Bilinear(p.X, p.Y-1)
		if mag := gx*gx + gy*gy; mag > bestMag {
			best, bestMag = p, mag
		}
	}
	return best, bestMag > 0
}
