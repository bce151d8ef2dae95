// Package geometry holds the small planar primitives shared by the matcher and tracker.
package geometry

import (
	"math"

	"github.com/golang/geo/r2"
)

// Homography is a row-major 3x3 matrix mapping reference-plane coordinates to
// image coordinates.
type Homography [9]float64

// Identity returns the identity homography.
func Identity() Homography {
	return Homography{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// Apply maps pt through h with the homogeneous divide.
func (h Homography) Apply(pt r2.Point) r2.Point {
	w := h[6]*pt.X + h[7]*pt.Y + h[8]
	return r2.Point{
		X: (h[0]*pt.X + h[1]*pt.Y + h[2]) / w,
		Y: (h[3]*pt.X + h[4]*pt.Y + h[5]) / w,
	}
}

// Det returns the determinant of h.
func (h Homography) Det() float64 {
	return Det33(h)
}

// Det33 returns the determinant of a row-major 3x3 matrix.
func Det33(a [9]float64) float64 {
	c1 := a[4]*a[8] - a[5]*a[7]
	c2 := a[3]*a[8] - a[5]*a[6]
	c3 := a[3]*a[7] - a[4]*a[6]
	return a[0]*c1 - a[1]*c2 + a[2]*c3
}

// Inverse33 inverts a row-major 3x3 matrix. It returns false when
// |det| <= threshold.
func Inverse33(a [9]float64, threshold float64) ([9]float64, bool) {
	det := Det33(a)
	if math.Abs(det) <= threshold || math.IsNaN(det) {
		return [9]float64{}, false
	}
	inv := 1 / det
	return [9]float64{
		(a[4]*a[8] - a[5]*a[7]) * inv,
		(a[2]*a[7] - a[1]*a[8]) * inv,
		(a[1]*a[5] - a[2]*a[4]) * inv,
		(a[5]*a[6] - a[3]*a[8]) * inv,
		(a[0]*a[8] - a[2]*a[6]) * inv,
		(a[2]*a[3] - a[0]*a[5]) * inv,
		(a[3]*a[7] - a[4]*a[6]) * inv,
		(a[1]*a[6] - a[0]*a[7]) * inv,
		(a[0]*a[4] - a[1]*a[3]) * inv,
	}, true
}

// Inverse inverts h, failing when it is near singular.
func (h Homography) Inverse(threshold float64) (Homography, bool) {
	inv, ok := Inverse33(h, threshold)
	return Homography(inv), ok
}

// Normalize scales h so that h[8] == 1. A zero h[8] is left unchanged and
// reported as false.
func (h Homography) Normalize() (Homography, bool) {
	if h[8] == 0 || math.IsNaN(h[8]) {
		return h, false
	}
	s := 1 / h[8]
	for i := range h {
		h[i] *= s
	}
	h[8] = 1
	return h, true
}

// Mul returns h * o.
func (h Homography) Mul(o Homography) Homography {
	var out Homography
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[r*3+c] = h[r*3]*o[c] + h[r*3+1]*o[3+c] + h[r*3+2]*o[6+c]
		}
	}
	return out
}

// MaxAbsDiff returns the largest element-wise difference between h and o.
func (h Homography) MaxAbsDiff(o Homography) float64 {
	var m float64
	for i := range h {
		m = math.Max(m, math.Abs(h[i]-o[i]))
	}
	return m
}
