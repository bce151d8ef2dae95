package matcher

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"github.com/srsergiolazaro/taptapp-ar-sub000/detector"
	"github.com/srsergiolazaro/taptapp-ar-sub000/estimator"
	"github.com/srsergiolazaro/taptapp-ar-sub000/geometry"
	"github.com/srsergiolazaro/taptapp-ar-sub000/intensity"
	"github.com/srsergiolazaro/taptapp-ar-sub000/internal/testutil"
	"github.com/srsergiolazaro/taptapp-ar-sub000/target"
)

func newTestMatcher(t *testing.T, seed int64) *Matcher {
	t.Helper()
	//nolint:gosec
	m, err := New(DefaultConfig(), rand.New(rand.NewSource(seed)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

// fullKeyframe compiles ref and returns its full-resolution keyframe.
func fullKeyframe(t *testing.T, ref *intensity.Buffer) *target.Keyframe {
	t.Helper()
	tg, err := target.Build(context.Background(), "test", ref, target.DefaultConfig(), 7)
	if err != nil {
		t.Fatalf("target.Build: %v", err)
	}
	return tg.Keyframes[len(tg.Keyframes)-1]
}

func detect(t *testing.T, img *intensity.Buffer) []detector.FeaturePoint {
	t.Helper()
	det, err := detector.NewDetector(nil)
	if err != nil {
		t.Fatal(err)
	}
	pts, err := det.Detect(img)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	return pts
}

func cornerError(a, b geometry.Homography, w, h int) float64 {
	worst := 0.0
	for _, c := range geometry.Rectangle(float64(w), float64(h)) {
		worst = math.Max(worst, a.Apply(c).Sub(b.Apply(c)).Norm())
	}
	return worst
}

func TestMatch_SelfMatchIsIdentity(t *testing.T) {
	ref := testutil.Blobs(320, 240, 260, 21)
	kf := fullKeyframe(t, ref)
	m := newTestMatcher(t, 1)
	res, err := m.Match(kf, detect(t, ref), ref.Width, ref.Height)
	if err != nil {
		t.Fatalf("self match failed: %v", err)
	}
	if e := cornerError(res.H, geometry.Identity(), kf.Width, kf.Height); e > 1 {
		t.Errorf("self match corners off by %.3f px, H = %v", e, res.H)
	}
	if len(res.Inliers) < DefaultConfig().MinInliers {
		t.Errorf("only %d inliers", len(res.Inliers))
	}
	t.Logf("self match: %d inliers", len(res.Inliers))
}

func TestMatch_Translated(t *testing.T) {
	ref := testutil.Blobs(320, 240, 260, 21)
	kf := fullKeyframe(t, ref)
	truth := geometry.Homography{1, 0, 8, 0, 1, 6, 0, 0, 1}
	frame := testutil.Warp(ref, truth, 320, 240, 128)

	m := newTestMatcher(t, 2)
	res, err := m.Match(kf, detect(t, frame), frame.Width, frame.Height)
	if err != nil {
		t.Fatalf("match failed: %v", err)
	}
	if e := cornerError(res.H, truth, kf.Width, kf.Height); e > 4 {
		t.Errorf("corners off by %.3f px", e)
	}
	for _, c := range res.Inliers {
		p := res.H.Apply(r2.Point{X: c.Key.X, Y: c.Key.Y})
		if p.Sub(r2.Point{X: c.Query.X, Y: c.Query.Y}).Norm() > DefaultConfig().InlierThreshold+1e-9 {
			t.Errorf("inlier outside threshold: %+v", c)
		}
	}
}

// similarity rotates by angle and scales by scale about the centre of a
// w x h image, then translates by (tx, ty).
func similarity(angle, scale, tx, ty float64, w, h int) geometry.Homography {
	a, b := scale*math.Cos(angle), scale*math.Sin(angle)
	cx, cy := float64(w)/2, float64(h)/2
	return geometry.Homography{
		a, -b, cx + tx - (a*cx - b*cy),
		b, a, cy + ty - (b*cx + a*cy),
		0, 0, 1,
	}
}

func TestMatch_SimilarityTransforms(t *testing.T) {
	ref := testutil.Blobs(320, 240, 260, 21)
	kf := fullKeyframe(t, ref)
	tests := []struct {
		name         string
		angle, scale float64
	}{
		{"rotate 0.2", 0.2, 1},
		{"rotate 0.5", 0.5, 1},
		{"rotate 1.0", 1.0, 1},
		{"shrink 0.8", 0, 0.8},
		{"rotate 0.3 shrink 0.85", 0.3, 0.85},
	}
	for i, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			truth := similarity(tc.angle, tc.scale, 4, -3, 320, 240)
			frame := testutil.Warp(ref, truth, 320, 240, 128)
			m := newTestMatcher(t, int64(20+i))
			res, err := m.Match(kf, detect(t, frame), frame.Width, frame.Height)
			if err != nil {
				t.Fatalf("match failed: %v", err)
			}
			if e := cornerError(res.H, truth, kf.Width, kf.Height); e > 8 {
				t.Errorf("corners off by %.2f px", e)
			}
			t.Logf("%d inliers", len(res.Inliers))
		})
	}
}

func TestMatch_TooFewPoints(t *testing.T) {
	ref := testutil.Blobs(320, 240, 260, 21)
	kf := fullKeyframe(t, ref)
	pts := detect(t, ref)
	m := newTestMatcher(t, 3)
	if _, err := m.Match(kf, pts[:3], ref.Width, ref.Height); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := m.Match(&target.Keyframe{Width: 10, Height: 10, Scale: 1}, pts, ref.Width, ref.Height); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for an empty keyframe, got %v", err)
	}
	if _, err := m.Match(nil, pts, ref.Width, ref.Height); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for nil keyframe, got %v", err)
	}
}

func TestMatch_Deterministic(t *testing.T) {
	ref := testutil.Blobs(320, 240, 260, 21)
	kf := fullKeyframe(t, ref)
	frame := testutil.Warp(ref, geometry.Homography{1, 0, 8, 0, 1, 6, 0, 0, 1}, 320, 240, 128)
	proj := estimator.NewProjection(400, 160, 120)

	run := func() (Result, estimator.Pose) {
		res, err := newTestMatcher(t, 9).Match(kf, detect(t, frame), 320, 240)
		if err != nil {
			t.Fatalf("match failed: %v", err)
		}
		world := make([]r3.Vector, len(res.Inliers))
		screen := make([]r2.Point, len(res.Inliers))
		for i, c := range res.Inliers {
			world[i] = kf.World(r2.Point{X: c.Key.X, Y: c.Key.Y})
			screen[i] = r2.Point{X: c.Query.X, Y: c.Query.Y}
		}
		pose, err := estimator.Estimate(screen, world, proj)
		if err != nil {
			t.Fatalf("Estimate: %v", err)
		}
		return *res, pose
	}
	a, poseA := run()
	b, poseB := run()
	if a.H != b.H || len(a.Inliers) != len(b.Inliers) {
		t.Error("same seed produced different homographies")
	}
	if poseA != poseB {
		t.Errorf("same seed produced different poses:\n%v\n%v", poseA, poseB)
	}
}

func TestMatch_ExpectedScaleFilters(t *testing.T) {
	ref := testutil.Blobs(320, 240, 260, 21)
	kf := fullKeyframe(t, ref)
	m := newTestMatcher(t, 4)
	// Requiring the query to be 64x larger than the keyframe leaves no candidate.
	if _, err := m.Match(kf, detect(t, ref), 320, 240, WithExpectedScale(64)); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFitHomography_RecoversKnownMapping(t *testing.T) {
	truth := geometry.Homography{0.9, 0.1, 12, -0.05, 1.1, -7, 1e-4, -2e-4, 1}
	//nolint:gosec
	rng := rand.New(rand.NewSource(5))
	var src, dst []r2.Point
	for i := 0; i < 30; i++ {
		p := r2.Point{X: rng.Float64() * 300, Y: rng.Float64() * 200}
		src = append(src, p)
		dst = append(dst, truth.Apply(p))
	}
	h, ok := FitHomography(src, dst)
	if !ok {
		t.Fatal("fit failed")
	}
	if e := cornerError(h, truth, 300, 200); e > 1e-6 {
		t.Errorf("corners off by %g", e)
	}
	again, ok := h.Normalize()
	if !ok || again != h {
		t.Error("normalizing a normalized homography changed it")
	}
	if _, ok := FitHomography(src[:3], dst[:3]); ok {
		t.Error("three points should not determine a homography")
	}
}

func TestEstimateHomography_RejectsOutliers(t *testing.T) {
	truth := geometry.Homography{1.2, 0, 20, 0, 1.2, 10, 0, 0, 1}
	//nolint:gosec
	rng := rand.New(rand.NewSource(6))
	var src, dst []r2.Point
	for i := 0; i < 60; i++ {
		p := r2.Point{X: rng.Float64() * 200, Y: rng.Float64() * 150}
		q := truth.Apply(p)
		if i%5 == 0 {
			q = r2.Point{X: rng.Float64() * 260, Y: rng.Float64() * 200}
		}
		src = append(src, p)
		dst = append(dst, q)
	}
	m := newTestMatcher(t, 6)
	h, ok := m.estimateHomography(rng, src, dst, 200, 150)
	if !ok {
		t.Fatal("no homography")
	}
	if e := cornerError(h, truth, 200, 150); e > 0.5 {
		t.Errorf("corners off by %.3f px", e)
	}
}

func TestPlausible(t *testing.T) {
	if !plausible(geometry.Identity(), 100, 80, 1e-4) {
		t.Error("identity should be plausible")
	}
	flip := geometry.Homography{1, 0, 0, 0, 0.0001, 0, 0, 0, 1}
	if plausible(flip, 100, 80, 1e-4) {
		t.Error("collapsed mapping should be rejected")
	}
	// Moves one corner across the opposite diagonal.
	twist, _ := FitHomography(
		[]r2.Point{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 80}, {X: 0, Y: 80}},
		[]r2.Point{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 20, Y: 20}, {X: 0, Y: 80}},
	)
	if plausible(twist, 100, 80, 1e-4) {
		t.Error("non-convex mapping should be rejected")
	}
}

func TestHoughFilter_KeepsConsistentCluster(t *testing.T) {
	m := newTestMatcher(t, 7)
	//nolint:gosec
	rng := rand.New(rand.NewSource(7))
	var matches []Correspondence
	for i := 0; i < 40; i++ {
		k := target.Keypoint{X: rng.Float64() * 200, Y: rng.Float64() * 150, Scale: 2}
		q := detector.FeaturePoint{X: k.X + 30, Y: k.Y - 10, Scale: 2}
		matches = append(matches, Correspondence{Query: q, Key: k})
	}
	for i := 0; i < 10; i++ {
		k := target.Keypoint{X: rng.Float64() * 200, Y: rng.Float64() * 150, Scale: 1, Angle: 2}
		q := detector.FeaturePoint{X: rng.Float64() * 200, Y: rng.Float64() * 150, Scale: 8}
		matches = append(matches, Correspondence{Query: q, Key: k})
	}
	kept := m.houghFilter(matches, 200, 150, 200, 150)
	if len(kept) != 40 {
		t.Errorf("kept %d correspondences, want the 40 consistent ones", len(kept))
	}
	for _, c := range kept {
		if c.Query.Scale != 2 {
			t.Errorf("outlier survived: %+v", c)
		}
	}
	if got := m.houghFilter(matches[:2], 200, 150, 200, 150); got != nil {
		t.Errorf("two votes should not pass, got %d", len(got))
	}
}

func TestHoughFilter_RotatedScaledCluster(t *testing.T) {
	m := newTestMatcher(t, 11)
	//nolint:gosec
	rng := rand.New(rand.NewSource(11))
	// The implied rotation wraps: 2.9 - (-2.9) is -0.48 after wrapping.
	const keyAngle, queryAngle, scale = -2.9, 2.9, 1.5
	rot := queryAngle - keyAngle - 2*math.Pi
	cs, sn := scale*math.Cos(rot), scale*math.Sin(rot)
	var matches []Correspondence
	for i := 0; i < 30; i++ {
		k := target.Keypoint{X: rng.Float64() * 200, Y: rng.Float64() * 150, Scale: 2, Angle: keyAngle}
		q := detector.FeaturePoint{
			X:     cs*k.X - sn*k.Y - 50,
			Y:     sn*k.X + cs*k.Y + 20,
			Scale: k.Scale * scale,
			Angle: queryAngle,
		}
		matches = append(matches, Correspondence{Query: q, Key: k})
	}
	for i := 0; i < 10; i++ {
		k := target.Keypoint{X: rng.Float64() * 200, Y: rng.Float64() * 150, Scale: 2, Angle: 0.4}
		q := detector.FeaturePoint{X: rng.Float64() * 200, Y: rng.Float64() * 150, Scale: 2.2, Angle: 1.9}
		matches = append(matches, Correspondence{Query: q, Key: k})
	}

	v := m.mapCorrespondence(matches[0], 200, 150)
	if math.Abs(v.angle-rot) > 1e-9 || math.Abs(v.scale-scale) > 1e-9 {
		t.Errorf("vote angle %v scale %v, want %v and %v", v.angle, v.scale, rot, scale)
	}
	kept := m.houghFilter(matches, 200, 150, 200, 150)
	if len(kept) != 30 {
		t.Errorf("kept %d correspondences, want the 30 consistent ones", len(kept))
	}
	for _, c := range kept {
		if c.Key.Angle != keyAngle {
			t.Errorf("outlier survived: %+v", c)
		}
	}
}

func TestRefineEdges_MovesTowardBorder(t *testing.T) {
	w, h := 200, 160
	pix := make([]float32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			pix[y*w+x] = 20
			if x >= 40 && x < 160 && y >= 30 && y < 130 {
				pix[y*w+x] = 220
			}
		}
	}
	img, _ := intensity.New(w, h, pix)
	truth := geometry.Homography{1, 0, 40, 0, 1, 30, 0, 0, 1}
	initial := geometry.Homography{1, 0, 42.5, 0, 1, 31.5, 0, 0, 1}

	m := newTestMatcher(t, 8)
	refined, ok := m.refineEdges(img, initial, 120, 100)
	if !ok {
		t.Fatal("refinement rejected")
	}
	before := cornerError(initial, truth, 120, 100)
	after := cornerError(refined, truth, 120, 100)
	if after >= before {
		t.Errorf("refinement did not help: %.3f -> %.3f", before, after)
	}
}
