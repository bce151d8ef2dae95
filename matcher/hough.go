package matcher

import (
	"math"
	"sort"
)

// houghVote is the similarity transform one correspondence implies,
// expressed as the predicted keyframe centre in the query image.
type houghVote struct {
	x, y, angle, scale float64
}

func (m *Matcher) mapCorrespondence(c Correspondence, kw, kh int) houghVote {
	angle := c.Query.Angle - c.Key.Angle
	if angle <= -math.Pi {
		angle += 2 * math.Pi
	} else if angle > math.Pi {
		angle -= 2 * math.Pi
	}
	scale := c.Query.Scale / c.Key.Scale
	cs, sn := math.Cos(angle)*scale, math.Sin(angle)*scale
	tx := c.Query.X - (cs*c.Key.X - sn*c.Key.Y)
	ty := c.Query.Y - (sn*c.Key.X + cs*c.Key.Y)
	cx, cy := float64(kw)/2, float64(kh)/2
	return houghVote{
		x:     cs*cx - sn*cy + tx,
		y:     sn*cx + cs*cy + ty,
		angle: angle,
		scale: scale,
	}
}

type houghGrid struct {
	minX, maxX, minY, maxY float64
	nx, ny, na, ns         int
	minS, maxS             float64
}

func (g houghGrid) bins(v houghVote) (bx, by, ba, bs float64) {
	bx = float64(g.nx) * (v.x - g.minX) / (g.maxX - g.minX)
	by = float64(g.ny) * (v.y - g.minY) / (g.maxY - g.minY)
	ba = float64(g.na) * (v.angle + math.Pi) / (2 * math.Pi)
	bs = float64(g.ns) * (math.Log10(v.scale) - g.minS) / (g.maxS - g.minS)
	return bx, by, ba, bs
}

// houghFilter votes every correspondence into a 4-D similarity grid and
// keeps those near the winning bin. It returns nil when the winner has
// fewer than MinHoughVotes.
func (m *Matcher) houghFilter(matches []Correspondence, kw, kh, qw, qh int) []Correspondence {
	if len(matches) == 0 {
		return nil
	}
	cfg := m.cfg
	maxDim := float64(max(kw, kh))
	dims := make([]float64, len(matches))
	votes := make([]houghVote, len(matches))
	for i, c := range matches {
		dims[i] = c.Query.Scale / c.Key.Scale * maxDim
		votes[i] = m.mapCorrespondence(c, kw, kh)
	}
	sort.Float64s(dims)
	binSize := cfg.HoughBinFactor * dims[len(dims)/2]

	g := houghGrid{
		maxX: cfg.HoughRange * float64(qw), maxY: cfg.HoughRange * float64(qh),
		na: cfg.AngleBins, ns: cfg.ScaleBins,
		minS: cfg.MinLogScale, maxS: cfg.MaxLogScale,
	}
	g.minX, g.minY = -g.maxX, -g.maxY
	g.nx, g.ny = cfg.HoughMinBins, cfg.HoughMinBins
	if binSize > 0 {
		g.nx = max(cfg.HoughMinBins, int(math.Ceil((g.maxX-g.minX)/binSize)))
		g.ny = max(cfg.HoughMinBins, int(math.Ceil((g.maxY-g.minY)/binSize)))
	}

	index := func(x, y, a, s int) int {
		return ((s*g.na+a)*g.ny+y)*g.nx + x
	}
	counts := make(map[int]int)
	for _, v := range votes {
		if v.scale <= 0 || math.IsNaN(v.x) || math.IsNaN(v.y) {
			continue
		}
		fx, fy, fa, fs := g.bins(v)
		bx := int(math.Floor(fx - 0.5))
		by := int(math.Floor(fy - 0.5))
		bs := int(math.Floor(fs - 0.5))
		ba := (int(math.Floor(fa-0.5)) + g.na) % g.na
		if bx < 0 || bx+1 >= g.nx || by < 0 || by+1 >= g.ny || bs < 0 || bs+1 >= g.ns {
			continue
		}
		for dx := 0; dx <= 1; dx++ {
			for dy := 0; dy <= 1; dy++ {
				for da := 0; da <= 1; da++ {
					for ds := 0; ds <= 1; ds++ {
						counts[index(bx+dx, by+dy, (ba+da)%g.na, bs+ds)]++
					}
				}
			}
		}
	}

	best, bestVotes := -1, 0
	for idx, n := range counts {
		if n > bestVotes || (n == bestVotes && idx < best) {
			best, bestVotes = idx, n
		}
	}
	if bestVotes < cfg.MinHoughVotes {
		return nil
	}
	wx := best % g.nx
	rest := best / g.nx
	wy := rest % g.ny
	rest /= g.ny
	wa := rest % g.na
	ws := rest / g.na

	var out []Correspondence
	for i, v := range votes {
		if v.scale <= 0 {
			continue
		}
		fx, fy, fa, fs := g.bins(v)
		if math.Abs(fx-(float64(wx)+0.5)) >= cfg.HoughBinDelta {
			continue
		}
		if math.Abs(fy-(float64(wy)+0.5)) >= cfg.HoughBinDelta {
			continue
		}
		if math.Abs(fs-(float64(ws)+0.5)) >= cfg.HoughBinDelta {
			continue
		}
		da := math.Abs(fa - (float64(wa) + 0.5))
		da = math.Min(da, float64(g.na)-da)
		if da >= cfg.HoughBinDelta {
			continue
		}
		out = append(out, matches[i])
	}
	return out
}
