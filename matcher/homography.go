package matcher

import (
	"math"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/srsergiolazaro/taptapp-ar-sub000/geometry"
)

// normalization is the similarity that moves a point set to zero mean and
// mean distance sqrt(2).
type normalization struct {
	mx, my, s float64
}

func normalizePoints(pts []r2.Point) ([]r2.Point, normalization) {
	if len(pts) == 0 {
		return nil, normalization{s: 1}
	}
	xs := make([]float64, len(pts))
	ys := make([]float64, len(pts))
	for i, p := range pts {
		xs[i], ys[i] = p.X, p.Y
	}
	n := normalization{mx: stat.Mean(xs, nil), my: stat.Mean(ys, nil)}
	dist := make([]float64, len(pts))
	for i, p := range pts {
		dist[i] = math.Hypot(p.X-n.mx, p.Y-n.my)
	}
	n.s = math.Sqrt2
	if d := stat.Mean(dist, nil); d > 0 {
		n.s = math.Sqrt2 / d
	}
	out := make([]r2.Point, len(pts))
	for i, p := range pts {
		out[i] = r2.Point{X: (p.X - n.mx) * n.s, Y: (p.Y - n.my) * n.s}
	}
	return out, n
}

func (n normalization) forward() geometry.Homography {
	return geometry.Homography{n.s, 0, -n.s * n.mx, 0, n.s, -n.s * n.my, 0, 0, 1}
}

func (n normalization) inverse() geometry.Homography {
	return geometry.Homography{1 / n.s, 0, n.mx, 0, 1 / n.s, n.my, 0, 0, 1}
}

// denormalize lifts a homography estimated between normalized point sets
// back to pixel coordinates, with H[8] = 1.
func denormalize(h geometry.Homography, src, dst normalization) (geometry.Homography, bool) {
	return dst.inverse().Mul(h).Mul(src.forward()).Normalize()
}

// solveDLT fits h with h[8] = 1 mapping src onto dst in the least-squares
// sense. At least four correspondences are needed; callers normalize first.
func solveDLT(src, dst []r2.Point) (geometry.Homography, bool) {
	n := len(src)
	if n < 4 || len(dst) != n {
		return geometry.Homography{}, false
	}
	a := mat.NewDense(2*n, 8, nil)
	b := mat.NewVecDense(2*n, nil)
	for i := 0; i < n; i++ {
		x, y := src[i].X, src[i].Y
		u, v := dst[i].X, dst[i].Y
		a.SetRow(2*i, []float64{x, y, 1, 0, 0, 0, -x * u, -y * u})
		a.SetRow(2*i+1, []float64{0, 0, 0, x, y, 1, -x * v, -y * v})
		b.SetVec(2*i, u)
		b.SetVec(2*i+1, v)
	}
	var qr mat.QR
	qr.Factorize(a)
	var sol mat.VecDense
	if err := qr.SolveVecTo(&sol, false, b); err != nil {
		return geometry.Homography{}, false
	}
	var h geometry.Homography
	for i := 0; i < 8; i++ {
		h[i] = sol.AtVec(i)
		if math.IsNaN(h[i]) || math.IsInf(h[i], 0) {
			return geometry.Homography{}, false
		}
	}
	h[8] = 1
	return h, true
}

// FitHomography estimates the pixel-space homography mapping src onto dst
// with a normalized DLT.
func FitHomography(src, dst []r2.Point) (geometry.Homography, bool) {
	ns, ps := normalizePoints(src)
	nd, pd := normalizePoints(dst)
	h, ok := solveDLT(ns, nd)
	if !ok {
		return geometry.Homography{}, false
	}
	return denormalize(h, ps, pd)
}

// plausible reports whether h maps the keyframe rectangle to a convex
// quadrilateral that is not collapsed.
func plausible(h geometry.Homography, kw, kh int, minAreaRatio float64) bool {
	if _, ok := h.Inverse(1e-5); !ok {
		return false
	}
	q := geometry.MapQuad(h, geometry.Rectangle(float64(kw), float64(kh)))
	for _, p := range q {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return false
		}
	}
	if !geometry.QuadrilateralConvex(q) {
		return false
	}
	return geometry.SmallestTriangleArea(q) >= minAreaRatio*float64(kw*kh)
}
