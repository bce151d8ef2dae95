package estimator

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/rdk/rimage/transform"
)

var testProj = NewProjection(500, 160, 120)

// truthPose looks at a 300x200 target from about 600 units away.
func truthPose() Pose {
	r := rodrigues(r3.Vector{X: 0.3, Y: -0.2, Z: 0.1})
	var p Pose
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			p[i][j] = r[i][j]
		}
	}
	p[0][3], p[1][3], p[2][3] = -150, -100, 600
	return p
}

func gridWorld() []r3.Vector {
	var out []r3.Vector
	for y := 0.0; y <= 200; y += 25 {
		for x := 0.0; x <= 300; x += 30 {
			out = append(out, r3.Vector{X: x, Y: y})
		}
	}
	return out
}

func project(t *testing.T, pose Pose, world []r3.Vector) []r2.Point {
	t.Helper()
	out := make([]r2.Point, len(world))
	for i, w := range world {
		p, ok := testProj.Project(pose, w)
		if !ok {
			t.Fatalf("point %v behind camera", w)
		}
		out[i] = p
	}
	return out
}

func poseDiff(a, b Pose) (rot, trans float64) {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			rot = math.Max(rot, math.Abs(a[i][j]-b[i][j]))
		}
	}
	return rot, a.Translation().Sub(b.Translation()).Norm()
}

func det3(p Pose) float64 {
	return p[0][0]*(p[1][1]*p[2][2]-p[1][2]*p[2][1]) -
		p[0][1]*(p[1][0]*p[2][2]-p[1][2]*p[2][0]) +
		p[0][2]*(p[1][0]*p[2][1]-p[1][1]*p[2][0])
}

func TestEstimate_RecoversPose(t *testing.T) {
	truth := truthPose()
	world := gridWorld()
	pose, err := Estimate(project(t, truth, world), world, testProj)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if e := pose.OrthonormalityError(); e > 1e-9 {
		t.Errorf("rotation not orthonormal: %g", e)
	}
	if d := det3(pose); math.Abs(d-1) > 1e-9 {
		t.Errorf("det(R) = %v, want 1", d)
	}
	if pose[2][3] <= 0 {
		t.Errorf("target behind camera: t = %v", pose.Translation())
	}
	rot, trans := poseDiff(pose, truth)
	if rot > 1e-6 || trans > 1e-3 {
		t.Errorf("pose off by rot %g, trans %g", rot, trans)
	}
}

func TestEstimate_FourPoints(t *testing.T) {
	truth := truthPose()
	world := []r3.Vector{{X: 0, Y: 0}, {X: 300, Y: 0}, {X: 300, Y: 200}, {X: 0, Y: 200}}
	pose, err := Estimate(project(t, truth, world), world, testProj)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if rot, trans := poseDiff(pose, truth); rot > 1e-6 || trans > 1e-3 {
		t.Errorf("pose off by rot %g, trans %g", rot, trans)
	}
}

func TestEstimate_DegenerateInput(t *testing.T) {
	world := []r3.Vector{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 20, Y: 0}}
	screen := []r2.Point{{X: 1, Y: 1}, {X: 2, Y: 1}, {X: 3, Y: 1}}
	if _, err := Estimate(screen, world, testProj); !errors.Is(err, ErrSingularSystem) {
		t.Errorf("three points: expected ErrSingularSystem, got %v", err)
	}
	var line []r3.Vector
	for i := 0; i < 8; i++ {
		line = append(line, r3.Vector{X: float64(i) * 10, Y: float64(i) * 5})
	}
	if _, err := Estimate(project(t, truthPose(), line), line, testProj); !errors.Is(err, ErrSingularSystem) {
		t.Errorf("collinear points: expected ErrSingularSystem, got %v", err)
	}
}

func TestRefine_ExactDataIsFixedPoint(t *testing.T) {
	truth := truthPose()
	world := gridWorld()
	pose, err := RefineEstimate(truth, world, project(t, truth, world), nil, testProj)
	if err != nil {
		t.Fatalf("RefineEstimate: %v", err)
	}
	if rot, trans := poseDiff(pose, truth); rot > 1e-9 || trans > 1e-6 {
		t.Errorf("exact pose moved by rot %g, trans %g", rot, trans)
	}
}

func TestRefine_ConvergesWithNoiseAndOutliers(t *testing.T) {
	truth := truthPose()
	world := gridWorld()
	screen := project(t, truth, world)
	//nolint:gosec
	rng := rand.New(rand.NewSource(3))
	stability := make([]float64, len(world))
	for i := range screen {
		stability[i] = 1
		screen[i].X += rng.NormFloat64() * 0.3
		screen[i].Y += rng.NormFloat64() * 0.3
		if i%10 == 3 {
			screen[i].X += 30 + rng.Float64()*30
			screen[i].Y -= 30 + rng.Float64()*30
			stability[i] = 0.2
		}
	}

	initial := applyDelta(truth, [6]float64{0.03, -0.04, 0.02, 5, -5, 20})
	pose, err := RefineEstimate(initial, world, screen, stability, testProj)
	if err != nil {
		t.Fatalf("RefineEstimate: %v", err)
	}
	if e := pose.OrthonormalityError(); e > 1e-9 {
		t.Errorf("rotation not orthonormal: %g", e)
	}
	rot, trans := poseDiff(pose, truth)
	if rot > 5e-3 || trans > 3 {
		t.Errorf("refined pose off by rot %g, trans %g", rot, trans)
	}
	before, _ := poseDiff(initial, truth)
	t.Logf("rotation error %.4f -> %.4f, translation error %.2f", before, rot, trans)
}

func TestRefine_TooFewPoints(t *testing.T) {
	world := gridWorld()[:3]
	screen := project(t, truthPose(), world)
	if _, err := RefineEstimate(truthPose(), world, screen, nil, testProj); !errors.Is(err, ErrSingularSystem) {
		t.Errorf("expected ErrSingularSystem, got %v", err)
	}
}

func TestStabilityWeight(t *testing.T) {
	r, err := NewRefiner(nil)
	if err != nil {
		t.Fatal(err)
	}
	if w := r.stabilityWeight(1); math.Abs(w-1) > 1e-12 {
		t.Errorf("weight(1) = %v, want 1", w)
	}
	if w := r.stabilityWeight(0); w != 0.1 {
		t.Errorf("weight(0) = %v, want the 0.1 floor", w)
	}
	if a, b := r.stabilityWeight(0.3), r.stabilityWeight(0.6); a >= b {
		t.Errorf("weight not increasing: %v >= %v", a, b)
	}
}

func TestNewRefiner(t *testing.T) {
	bad := DefaultConfig()
	bad.InlierSchedule = nil
	if _, err := NewRefiner(&bad); err == nil {
		t.Error("expected error for an empty inlier schedule")
	}

	r, err := NewRefiner(nil)
	if err != nil {
		t.Fatalf("NewRefiner: %v", err)
	}
	truth := truthPose()
	world := gridWorld()
	screen := project(t, truth, world)
	initial := truth
	initial[0][3] += 2
	want, errWant := r.Refine(initial, world, screen, nil, testProj)
	got, errGot := RefineEstimate(initial, world, screen, nil, testProj)
	if got != want || !errors.Is(errGot, errWant) {
		t.Errorf("RefineEstimate differs from the default refiner: %v, %v", errGot, errWant)
	}
}

func TestRodrigues_Orthonormal(t *testing.T) {
	r := rodrigues(r3.Vector{X: 0.5, Y: -1.2, Z: 0.7})
	p := Pose{}.withRotation([9]float64{r[0][0], r[0][1], r[0][2], r[1][0], r[1][1], r[1][2], r[2][0], r[2][1], r[2][2]})
	if e := p.OrthonormalityError(); e > 1e-12 {
		t.Errorf("rodrigues not orthonormal: %g", e)
	}
}

func TestProjectionFromIntrinsics(t *testing.T) {
	proj, err := ProjectionFromIntrinsics(&transform.PinholeCameraIntrinsics{
		Width: 640, Height: 480, Fx: 600, Fy: 610, Ppx: 320, Ppy: 240,
	})
	if err != nil {
		t.Fatal(err)
	}
	if proj.Fx != 600 || proj.Fy != 610 || proj.Cx != 320 || proj.Cy != 240 {
		t.Errorf("unexpected projection %+v", proj)
	}
	if _, err := ProjectionFromIntrinsics(nil); err == nil {
		t.Error("nil intrinsics should fail")
	}
	if _, err := ProjectionFromIntrinsics(&transform.PinholeCameraIntrinsics{}); err == nil {
		t.Error("zero focal length should fail")
	}
}
