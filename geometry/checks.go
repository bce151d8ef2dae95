package geometry

import (
	"math"

	"github.com/golang/geo/r2"
)

// LinePointSide returns the signed doubled area of triangle (a, b, c); its sign
// tells which side of line ab the point c lies on.
func LinePointSide(a, b, c r2.Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

// ThreePointsConsistent reports whether the triples turn the same way.
func ThreePointsConsistent(x1, x2, x3, y1, y2, y3 r2.Point) bool {
	return (LinePointSide(x1, x2, x3) > 0) == (LinePointSide(y1, y2, y3) > 0)
}

// FourPointsConsistent reports whether every consecutive triple of the two
// quadrilaterals has the same turn direction. A homography from a
// non-degenerate sample preserves this, so it is a cheap pre-check.
func FourPointsConsistent(x, y [4]r2.Point) bool {
	for i := 0; i < 4; i++ {
		a, b, c := i, (i+1)%4, (i+2)%4
		if !ThreePointsConsistent(x[a], x[b], x[c], y[a], y[b], y[c]) {
			return false
		}
	}
	return true
}

// QuadrilateralConvex reports whether the quadrilateral p0..p3 is convex.
func QuadrilateralConvex(p [4]r2.Point) bool {
	first := LinePointSide(p[0], p[1], p[2]) <= 0
	for i := 1; i < 4; i++ {
		if (LinePointSide(p[i], p[(i+1)%4], p[(i+2)%4]) <= 0) != first {
			return false
		}
	}
	return true
}

// SmallestTriangleArea returns the smallest of the four triangles formed by
// choosing three of the quadrilateral's corners.
func SmallestTriangleArea(p [4]r2.Point) float64 {
	area := func(u, v r2.Point) float64 {
		return math.Abs(u.Cross(v)) * 0.5
	}
	v12 := p[1].Sub(p[0])
	v13 := p[2].Sub(p[0])
	v14 := p[3].Sub(p[0])
	v32 := p[1].Sub(p[2])
	v34 := p[3].Sub(p[2])
	a := area(v12, v13)
	a = math.Min(a, area(v13, v14))
	a = math.Min(a, area(v12, v14))
	a = math.Min(a, area(v32, v34))
	return a
}

// Rectangle returns the corners of a width x height rectangle anchored at the origin,
// in clockwise image order.
func Rectangle(width, height float64) [4]r2.Point {
	return [4]r2.Point{{X: 0, Y: 0}, {X: width, Y: 0}, {X: width, Y: height}, {X: 0, Y: height}}
}

// MapQuad maps the four corners through h.
func MapQuad(h Homography, q [4]r2.Point) [4]r2.Point {
	var out [4]r2.Point
	for i, p := range q {
		out[i] = h.Apply(p)
	}
	return out
}
