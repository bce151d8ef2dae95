package geometry

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
)

func TestInverse33_RoundTrip(t *testing.T) {
	h := Homography{1.2, 0.1, 5, -0.05, 0.9, -3, 0.0005, 0.0002, 1}
	inv, ok := h.Inverse(1e-9)
	if !ok {
		t.Fatal("expected invertible homography")
	}
	prod := h.Mul(inv)
	if d := prod.MaxAbsDiff(Identity()); d > 1e-9 {
		t.Errorf("h * inv(h) differs from identity by %g", d)
	}

	pt := r2.Point{X: 12, Y: 40}
	back := inv.Apply(h.Apply(pt))
	if back.Sub(pt).Norm() > 1e-9 {
		t.Errorf("round trip %v -> %v", pt, back)
	}
}

func TestInverse33_Singular(t *testing.T) {
	if _, ok := Inverse33([9]float64{1, 2, 3, 2, 4, 6, 0, 0, 1}, 1e-9); ok {
		t.Error("expected singular matrix to be rejected")
	}
}

func TestNormalize(t *testing.T) {
	h, ok := Homography{2, 0, 0, 0, 2, 0, 0, 0, 2}.Normalize()
	if !ok || h.MaxAbsDiff(Identity()) > 1e-12 {
		t.Errorf("normalize = %v, %v", h, ok)
	}
	if _, ok := (Homography{}).Normalize(); ok {
		t.Error("expected zero h[8] to fail normalization")
	}
}

func TestFourPointsConsistent(t *testing.T) {
	sq := Rectangle(10, 10)
	shifted := MapQuad(Homography{1, 0, 3, 0, 1, 4, 0, 0, 1}, sq)
	if !FourPointsConsistent(sq, shifted) {
		t.Error("translation should preserve orientation")
	}
	mirrored := MapQuad(Homography{-1, 0, 0, 0, 1, 0, 0, 0, 1}, sq)
	if FourPointsConsistent(sq, mirrored) {
		t.Error("mirror should flip orientation")
	}
}

func TestQuadrilateralConvex(t *testing.T) {
	if !QuadrilateralConvex(Rectangle(4, 3)) {
		t.Error("rectangle should be convex")
	}
	bowtie := [4]r2.Point{{X: 0, Y: 0}, {X: 4, Y: 4}, {X: 4, Y: 0}, {X: 0, Y: 4}}
	if QuadrilateralConvex(bowtie) {
		t.Error("self-intersecting quad should not be convex")
	}
	dart := [4]r2.Point{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 4}}
	if QuadrilateralConvex(dart) {
		t.Error("concave quad should not be convex")
	}
}

func TestSmallestTriangleArea(t *testing.T) {
	if a := SmallestTriangleArea(Rectangle(4, 3)); math.Abs(a-6) > 1e-12 {
		t.Errorf("area = %v, want 6", a)
	}
	collapsed := [4]r2.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}, {X: 0, Y: 5}}
	if a := SmallestTriangleArea(collapsed); a != 0 {
		t.Errorf("collinear triple area = %v, want 0", a)
	}
}
