package matcher

import (
	"math"
	"math/rand"
	"sort"

	"github.com/golang/geo/r2"

	"github.com/srsergiolazaro/taptapp-ar-sub000/geometry"
)

type hypothesis struct {
	h    geometry.Homography
	cost float64
}

// estimateHomography runs a preemptive RANSAC tournament over the
// correspondences src[i] -> dst[i] and returns the first surviving
// hypothesis that maps the keyframe rectangle plausibly.
func (m *Matcher) estimateHomography(rng *rand.Rand, src, dst []r2.Point, kw, kh int) (geometry.Homography, bool) {
	n := len(src)
	if n < 4 {
		return geometry.Homography{}, false
	}
	ns, ps := normalizePoints(src)
	nd, pd := normalizePoints(dst)

	// The keyframe rectangle in normalized source coordinates.
	rect := geometry.Rectangle(float64(kw), float64(kh))
	var testPts [4]r2.Point
	for i, p := range rect {
		testPts[i] = r2.Point{X: (p.X - ps.mx) * ps.s, Y: (p.Y - ps.my) * ps.s}
	}

	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}

	var hyps []hypothesis
	for trial := 0; trial < 2*m.cfg.Hypotheses && len(hyps) < m.cfg.Hypotheses; trial++ {
		for i := 0; i < 4; i++ {
			j := i + rng.Intn(n-i)
			perm[i], perm[j] = perm[j], perm[i]
		}
		var s4, d4 [4]r2.Point
		for i := 0; i < 4; i++ {
			s4[i], d4[i] = ns[perm[i]], nd[perm[i]]
		}
		if !geometry.FourPointsConsistent(s4, d4) {
			continue
		}
		h, ok := solveDLT(s4[:], d4[:])
		if !ok {
			continue
		}
		if !geometry.FourPointsConsistent(testPts, geometry.MapQuad(h, testPts)) {
			continue
		}
		hyps = append(hyps, hypothesis{h: h})
	}
	if len(hyps) == 0 {
		return geometry.Homography{}, false
	}

	rng.Shuffle(n, func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })
	inv := 1 / (m.cfg.CauchyScale * m.cfg.CauchyScale)
	for start := 0; start < n && len(hyps) > 2; start += m.cfg.ChunkSize {
		end := min(start+m.cfg.ChunkSize, n)
		for k := range hyps {
			for _, idx := range perm[start:end] {
				hyps[k].cost += cauchyCost(hyps[k].h, ns[idx], nd[idx], inv)
			}
		}
		sort.SliceStable(hyps, func(i, j int) bool { return hyps[i].cost < hyps[j].cost })
		hyps = hyps[:len(hyps)-(len(hyps)+1)/2]
	}

	for _, hy := range hyps {
		h, ok := denormalize(hy.h, ps, pd)
		if ok && plausible(h, kw, kh, m.cfg.MinAreaRatio) {
			return h, true
		}
	}
	return geometry.Homography{}, false
}

func cauchyCost(h geometry.Homography, s, d r2.Point, invScale2 float64) float64 {
	p := h.Apply(s)
	dx, dy := p.X-d.X, p.Y-d.Y
	e := (dx*dx + dy*dy) * invScale2
	if math.IsNaN(e) || math.IsInf(e, 0) {
		return math.MaxFloat64 / 1e6
	}
	return math.Log1p(e)
}
