package estimator

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Estimate computes an initial pose from at least four correspondences
// between target-plane points (Z = 0) and pixels.
func Estimate(screen []r2.Point, world []r3.Vector, proj Projection) (Pose, error) {
	n := len(world)
	if n < 4 || len(screen) != n {
		return Pose{}, fmt.Errorf("%w: need 4 matching points, got %d world and %d screen", ErrSingularSystem, n, len(screen))
	}

	// Condition the plane coordinates.
	var mx, my float64
	for _, w := range world {
		mx += w.X
		my += w.Y
	}
	mx /= float64(n)
	my /= float64(n)
	d := 0.0
	for _, w := range world {
		d += math.Hypot(w.X-mx, w.Y-my)
	}
	d /= float64(n)
	if d == 0 {
		return Pose{}, fmt.Errorf("%w: coincident world points", ErrSingularSystem)
	}
	s := math.Sqrt2 / d

	a := mat.NewDense(2*n, 9, nil)
	for i := 0; i < n; i++ {
		x, y := (world[i].X-mx)*s, (world[i].Y-my)*s
		r := proj.Ray(screen[i])
		a.SetRow(2*i, []float64{x, y, 1, 0, 0, 0, -r.X * x, -r.X * y, -r.X})
		a.SetRow(2*i+1, []float64{0, 0, 0, x, y, 1, -r.Y * x, -r.Y * y, -r.Y})
	}
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDFullV) {
		return Pose{}, fmt.Errorf("%w: svd did not converge", ErrSingularSystem)
	}
	sv := svd.Values(nil)
	// A unique null vector needs the 8 leading singular values clear of zero.
	if len(sv) < 8 || sv[7] < 1e-10*sv[0] {
		return Pose{}, fmt.Errorf("%w: degenerate point configuration", ErrSingularSystem)
	}
	var v mat.Dense
	svd.VTo(&v)
	var hn [9]float64
	for i := 0; i < 9; i++ {
		hn[i] = v.At(i, 8)
	}

	// Undo the conditioning: H = Hn * T.
	t := [9]float64{s, 0, -s * mx, 0, s, -s * my, 0, 0, 1}
	var h [9]float64
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			h[3*r+c] = hn[3*r]*t[c] + hn[3*r+1]*t[3+c] + hn[3*r+2]*t[6+c]
		}
	}

	h1 := r3.Vector{X: h[0], Y: h[3], Z: h[6]}
	h2 := r3.Vector{X: h[1], Y: h[4], Z: h[7]}
	h3 := r3.Vector{X: h[2], Y: h[5], Z: h[8]}
	scale := (h1.Norm() + h2.Norm()) / 2
	if scale == 0 || math.IsNaN(scale) {
		return Pose{}, fmt.Errorf("%w: zero homography", ErrSingularSystem)
	}
	if h3.Z < 0 {
		scale = -scale
	}
	r1 := h1.Mul(1 / scale)
	r2v := h2.Mul(1 / scale)
	r3v := r1.Cross(r2v)
	tr := h3.Mul(1 / scale)

	rot, ok := orthogonalize([9]float64{r1.X, r2v.X, r3v.X, r1.Y, r2v.Y, r3v.Y, r1.Z, r2v.Z, r3v.Z})
	if !ok {
		return Pose{}, fmt.Errorf("%w: rotation orthogonalization failed", ErrSingularSystem)
	}
	pose := Pose{}.withRotation(rot)
	pose[0][3], pose[1][3], pose[2][3] = tr.X, tr.Y, tr.Z
	return pose, nil
}
