package estimator

import (
	"fmt"
	"math"
	"sort"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Refiner runs robust Gauss-Newton pose refinement.
type Refiner struct {
	cfg Config
}

// NewRefiner creates a Refiner. A nil cfg uses DefaultConfig.
func NewRefiner(cfg *Config) (*Refiner, error) {
	if cfg == nil {
		c := DefaultConfig()
		cfg = &c
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("estimator config: %w", err)
	}
	return &Refiner{cfg: *cfg}, nil
}

// RefineEstimate refines initial with the default configuration.
func RefineEstimate(initial Pose, world []r3.Vector, screen []r2.Point, stability []float64, proj Projection) (Pose, error) {
	r := &Refiner{cfg: DefaultConfig()}
	return r.Refine(initial, world, screen, stability, proj)
}

// Refine minimizes the robust reprojection error of world onto screen,
// starting from initial. stability, when not nil, weights each point by
// its tracking history. Passes run with decreasing assumed inlier fractions
// until one ends below AcceptError. Otherwise the best pose seen is
// returned with ErrNotConverged, or with ErrSingularSystem when the normal
// equations could not be solved.
func (r *Refiner) Refine(initial Pose, world []r3.Vector, screen []r2.Point, stability []float64, proj Projection) (Pose, error) {
	n := len(world)
	if n < 4 || len(screen) != n {
		return initial, fmt.Errorf("%w: need 4 matching points, got %d world and %d screen", ErrSingularSystem, n, len(screen))
	}
	if stability != nil && len(stability) != n {
		return initial, fmt.Errorf("%w: %d stability values for %d points", ErrSingularSystem, len(stability), n)
	}

	// Work around the centroid to keep the translation well conditioned.
	var center r3.Vector
	for _, w := range world {
		center = center.Add(w)
	}
	center = center.Mul(1 / float64(n))
	local := make([]r3.Vector, n)
	for i, w := range world {
		local[i] = w.Sub(center)
	}
	pose := initial
	ct := initial.Rotate(center).Add(initial.Translation())
	pose[0][3], pose[1][3], pose[2][3] = ct.X, ct.Y, ct.Z

	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1
		if stability != nil {
			weights[i] = r.stabilityWeight(stability[i])
		}
	}

	p := problem{cfg: r.cfg, world: local, screen: screen, weights: weights, proj: proj}
	best, bestCost := pose, math.Inf(1)
	singular := false
	accepted := false
	for _, inlier := range r.cfg.InlierSchedule {
		next, cost, ok := p.pass(pose, inlier)
		if !ok {
			singular = true
		}
		pose = next
		if cost < bestCost {
			best, bestCost = next, cost
		}
		if cost < r.cfg.AcceptError {
			best = next
			accepted = true
			break
		}
	}

	rot, ok := orthogonalize(best.Rotation())
	if ok {
		best = best.withRotation(rot)
	}
	t := best.Translation().Sub(best.Rotate(center))
	best[0][3], best[1][3], best[2][3] = t.X, t.Y, t.Z

	switch {
	case accepted:
		return best, nil
	case singular:
		return best, fmt.Errorf("%w: normal equations not positive definite", ErrSingularSystem)
	default:
		return best, fmt.Errorf("%w: error %.3f", ErrNotConverged, bestCost)
	}
}

func (r *Refiner) stabilityWeight(s float64) float64 {
	s = math.Max(0, math.Min(1, s))
	return math.Max(r.cfg.MinStabilityWeight, math.Log1p(9*s)/math.Ln10)
}

type problem struct {
	cfg     Config
	world   []r3.Vector
	screen  []r2.Point
	weights []float64
	proj    Projection
}

// pass runs up to MaxIterations Gauss-Newton steps assuming the given
// inlier fraction. It returns the last pose, its robust cost, and false if
// a step could not be solved.
func (p *problem) pass(pose Pose, inlier float64) (Pose, float64, bool) {
	n := len(p.world)
	e := make([]float64, n)
	residual := make([]r2.Point, n)
	sorted := make([]float64, n)
	cost0 := 0.0
	for l := 0; ; l++ {
		for i, w := range p.world {
			u, ok := p.proj.Project(pose, w)
			if !ok {
				residual[i] = r2.Point{}
				e[i] = math.Inf(1)
				continue
			}
			residual[i] = p.screen[i].Sub(u)
			e[i] = residual[i].Dot(residual[i])
		}
		copy(sorted, e)
		sort.Float64s(sorted)
		rank := max(3, int(math.Floor(float64(n)*inlier))-1)
		rank = min(rank, n-1)
		k2 := math.Max(sorted[rank]*p.cfg.RobustFactor, p.cfg.MinRobustCutoff)
		if math.IsInf(k2, 0) || math.IsNaN(k2) {
			k2 = p.cfg.MinRobustCutoff
		}

		cost := 0.0
		for _, ei := range e {
			if ei > k2 {
				cost += k2 / 6
				continue
			}
			q := 1 - ei/k2
			cost += k2 / 6 * (1 - q*q*q)
		}
		cost /= float64(n)

		if cost < p.cfg.BreakError {
			return pose, cost, true
		}
		if l > 0 && cost < p.cfg.StallError && cost/cost0 > p.cfg.StallRatio {
			return pose, cost, true
		}
		if l == p.cfg.MaxIterations {
			return pose, cost, true
		}
		cost0 = cost

		delta, ok := p.step(pose, e, residual, k2)
		if !ok {
			return pose, cost, false
		}
		pose = applyDelta(pose, delta)
	}
}

// step solves the weighted normal equations for the 6-vector
// [omega, dt] of a right-composed update.
func (p *problem) step(pose Pose, e []float64, residual []r2.Point, k2 float64) ([6]float64, bool) {
	jtj := mat.NewSymDense(6, nil)
	jte := mat.NewVecDense(6, nil)
	used := 0
	for i, w := range p.world {
		if e[i] > k2 {
			continue
		}
		q := 1 - e[i]/k2
		wt := q * q * p.weights[i]

		c := pose.Apply(w)
		if c.Z <= 1e-9 {
			continue
		}
		// du/dXc for the pinhole model.
		iz := 1 / c.Z
		du := [3]float64{p.proj.Fx * iz, 0, -p.proj.Fx * c.X * iz * iz}
		dv := [3]float64{0, p.proj.Fy * iz, -p.proj.Fy * c.Y * iz * iz}

		// dXc/dS = [-R [X]x | R].
		var dxc [3][6]float64
		for row := 0; row < 3; row++ {
			r0, r1, r2v := pose[row][0], pose[row][1], pose[row][2]
			// R * (omega x X) = -R [X]x omega.
			dxc[row][0] = r1*(-w.Z) + r2v*w.Y
			dxc[row][1] = r0*w.Z + r2v*(-w.X)
			dxc[row][2] = r0*(-w.Y) + r1*w.X
			dxc[row][3] = r0
			dxc[row][4] = r1
			dxc[row][5] = r2v
		}
		var ju, jv [6]float64
		for k := 0; k < 6; k++ {
			for row := 0; row < 3; row++ {
				ju[k] += du[row] * dxc[row][k]
				jv[k] += dv[row] * dxc[row][k]
			}
		}
		for a := 0; a < 6; a++ {
			jte.SetVec(a, jte.AtVec(a)+wt*(ju[a]*residual[i].X+jv[a]*residual[i].Y))
			for b := a; b < 6; b++ {
				jtj.SetSym(a, b, jtj.At(a, b)+wt*(ju[a]*ju[b]+jv[a]*jv[b]))
			}
		}
		used++
	}
	if used < 3 {
		return [6]float64{}, false
	}
	var chol mat.Cholesky
	if !chol.Factorize(jtj) {
		return [6]float64{}, false
	}
	var x mat.VecDense
	if err := chol.SolveVecTo(&x, jte); err != nil {
		return [6]float64{}, false
	}
	var out [6]float64
	for k := range out {
		out[k] = x.AtVec(k)
		if math.IsNaN(out[k]) || math.IsInf(out[k], 0) {
			return [6]float64{}, false
		}
	}
	return out, true
}

// applyDelta composes pose with exp(delta) on the right.
func applyDelta(pose Pose, delta [6]float64) Pose {
	dr := rodrigues(r3.Vector{X: delta[0], Y: delta[1], Z: delta[2]})
	var out Pose
	for j := 0; j < 3; j++ {
		for k := 0; k < 3; k++ {
			for m := 0; m < 3; m++ {
				out[j][k] += pose[j][m] * dr[m][k]
			}
		}
		out[j][3] = pose[j][0]*delta[3] + pose[j][1]*delta[4] + pose[j][2]*delta[5] + pose[j][3]
	}
	return out
}

// rodrigues converts an axis-angle vector into a rotation matrix.
func rodrigues(w r3.Vector) [3][3]float64 {
	theta := w.Norm()
	if theta < 1e-12 {
		return [3][3]float64{{1, -w.Z, w.Y}, {w.Z, 1, -w.X}, {-w.Y, w.X, 1}}
	}
	k := w.Mul(1 / theta)
	c, s := math.Cos(theta), math.Sin(theta)
	v := 1 - c
	return [3][3]float64{
		{c + k.X*k.X*v, k.X*k.Y*v - k.Z*s, k.X*k.Z*v + k.Y*s},
		{k.Y*k.X*v + k.Z*s, c + k.Y*k.Y*v, k.Y*k.Z*v - k.X*s},
		{k.Z*k.X*v - k.Y*s, k.Z*k.Y*v + k.X*s, c + k.Z*k.Z*v},
	}
}
