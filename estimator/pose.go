// Package estimator recovers and refines the camera-from-target pose of a
// planar target from 2-D/3-D point correspondences.
package estimator

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/rdk/rimage/transform"
	"gonum.org/v1/gonum/mat"
)

// Pose is a row-major 3x4 camera-from-model transform [R | t].
type Pose [3][4]float64

// IdentityPose returns the pose with R = I and t = 0.
func IdentityPose() Pose {
	return Pose{{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}}
}

// Apply transforms a model point into camera coordinates.
func (p Pose) Apply(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: p[0][0]*v.X + p[0][1]*v.Y + p[0][2]*v.Z + p[0][3],
		Y: p[1][0]*v.X + p[1][1]*v.Y + p[1][2]*v.Z + p[1][3],
		Z: p[2][0]*v.X + p[2][1]*v.Y + p[2][2]*v.Z + p[2][3],
	}
}

// Rotate applies only the rotation block.
func (p Pose) Rotate(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: p[0][0]*v.X + p[0][1]*v.Y + p[0][2]*v.Z,
		Y: p[1][0]*v.X + p[1][1]*v.Y + p[1][2]*v.Z,
		Z: p[2][0]*v.X + p[2][1]*v.Y + p[2][2]*v.Z,
	}
}

// Translation returns t.
func (p Pose) Translation() r3.Vector {
	return r3.Vector{X: p[0][3], Y: p[1][3], Z: p[2][3]}
}

// Rotation returns R in row-major order.
func (p Pose) Rotation() [9]float64 {
	return [9]float64{p[0][0], p[0][1], p[0][2], p[1][0], p[1][1], p[1][2], p[2][0], p[2][1], p[2][2]}
}

// OrthonormalityError returns the largest deviation of R^T R from I.
func (p Pose) OrthonormalityError() float64 {
	worst := 0.0
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			d := 0.0
			for k := 0; k < 3; k++ {
				d += p[k][i] * p[k][j]
			}
			if i == j {
				d--
			}
			worst = math.Max(worst, math.Abs(d))
		}
	}
	return worst
}

func (p Pose) withRotation(r [9]float64) Pose {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			p[i][j] = r[3*i+j]
		}
	}
	return p
}

// orthogonalize returns the rotation nearest to r with determinant +1.
func orthogonalize(r [9]float64) ([9]float64, bool) {
	var svd mat.SVD
	if !svd.Factorize(mat.NewDense(3, 3, r[:]), mat.SVDFull) {
		return r, false
	}
	var u, v, q mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	q.Mul(&u, v.T())
	if mat.Det(&q) < 0 {
		for i := 0; i < 3; i++ {
			u.Set(i, 2, -u.At(i, 2))
		}
		q.Mul(&u, v.T())
	}
	var out [9]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[3*i+j] = q.At(i, j)
		}
	}
	return out, true
}

// Projection is a pinhole camera model without skew or distortion.
type Projection struct {
	Fx, Fy float64
	Cx, Cy float64
}

// NewProjection returns a projection with square pixels.
func NewProjection(f, cx, cy float64) Projection {
	return Projection{Fx: f, Fy: f, Cx: cx, Cy: cy}
}

// ProjectionFromIntrinsics adapts pinhole camera intrinsics.
func ProjectionFromIntrinsics(intr *transform.PinholeCameraIntrinsics) (Projection, error) {
	if intr == nil {
		return Projection{}, fmt.Errorf("nil camera intrinsics")
	}
	if intr.Fx <= 0 || intr.Fy <= 0 {
		return Projection{}, fmt.Errorf("invalid focal lengths fx=%v fy=%v", intr.Fx, intr.Fy)
	}
	return Projection{Fx: intr.Fx, Fy: intr.Fy, Cx: intr.Ppx, Cy: intr.Ppy}, nil
}

// Project maps a model point through pose into pixels. It returns false
// for points at or behind the camera.
func (k Projection) Project(pose Pose, v r3.Vector) (r2.Point, bool) {
	c := pose.Apply(v)
	if c.Z <= 1e-9 {
		return r2.Point{}, false
	}
	return r2.Point{X: k.Fx*c.X/c.Z + k.Cx, Y: k.Fy*c.Y/c.Z + k.Cy}, true
}

// Ray returns the normalized image coordinates of a pixel.
func (k Projection) Ray(p r2.Point) r2.Point {
	return r2.Point{X: (p.X - k.Cx) / k.Fx, Y: (p.Y - k.Cy) / k.Fy}
}
