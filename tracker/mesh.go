package tracker

import (
	"github.com/golang/geo/r2"

	"github.com/srsergiolazaro/taptapp-ar-sub000/geometry"
	"github.com/srsergiolazaro/taptapp-ar-sub000/target"
)

// Mesh is the relaxed tracking mesh. Vertices are on the reference plane,
// one per tracking point of the level.
type Mesh struct {
	Vertices  []r2.Point
	Screen    []r2.Point
	Triangles [][3]int
}

// relax starts every vertex at its reference position and alternates edge
// springs toward the rest length with a pull of each found vertex toward
// its observed position. Unobserved vertices follow their neighbours.
func (t *Tracker) relax(lvl *target.TrackingLevel, res *Result, h geometry.Homography) *Mesh {
	inv, ok := h.Inverse(1e-12)
	if lvl.Mesh == nil || !ok {
		return nil
	}
	n := len(lvl.Points)
	rest := make([]r2.Point, n)
	for i := range lvl.Points {
		w := lvl.World(i)
		rest[i] = r2.Point{X: w.X, Y: w.Y}
	}
	verts := make([]r2.Point, n)
	copy(verts, rest)

	observed := make([]r2.Point, n)
	seen := make([]bool, n)
	for k, idx := range res.Indices {
		observed[idx] = inv.Apply(res.Screen[k]).Mul(1 / lvl.Scale)
		seen[idx] = true
	}

	for it := 0; it < t.cfg.MeshIterations; it++ {
		for _, e := range lvl.Mesh.Edges {
			a, b := e[0], e[1]
			d := verts[b].Sub(verts[a])
			cur := d.Norm()
			if cur == 0 {
				continue
			}
			l0 := rest[b].Sub(rest[a]).Norm()
			corr := d.Mul(t.cfg.Stiffness * 0.5 * (cur - l0) / cur)
			verts[a] = verts[a].Add(corr)
			verts[b] = verts[b].Sub(corr)
		}
		for i := range verts {
			if seen[i] {
				verts[i] = verts[i].Add(observed[i].Sub(verts[i]).Mul(t.cfg.Fidelity))
			}
		}
	}

	m := &Mesh{Vertices: verts, Triangles: lvl.Mesh.Triangles, Screen: make([]r2.Point, n)}
	for i, v := range verts {
		m.Screen[i] = h.Apply(v.Mul(lvl.Scale))
	}
	return m
}
