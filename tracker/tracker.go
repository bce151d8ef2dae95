// Package tracker follows a locked target from frame to frame by template
// matching in marker space.
package tracker

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"github.com/srsergiolazaro/taptapp-ar-sub000/estimator"
	"github.com/srsergiolazaro/taptapp-ar-sub000/geometry"
	"github.com/srsergiolazaro/taptapp-ar-sub000/intensity"
	"github.com/srsergiolazaro/taptapp-ar-sub000/target"
)

// Result holds the correspondences found in one frame.
type Result struct {
	Octave      int
	World       []r3.Vector // reference-plane position of each accepted point
	Screen      []r2.Point  // where it was found in the frame
	Reliability []float64   // stability after this frame
	Similarity  []float64
	Indices     []int // point index within the tracking level
	Mesh        *Mesh
}

// Tracker owns the warp buffers and template caches of every target. It is
// not safe for concurrent use.
type Tracker struct {
	cfg       Config
	proj      estimator.Projection
	targets   []*target.Target
	warped    map[levelKey]*intensity.Buffer
	templates map[levelKey][]templateEntry
}

type levelKey struct {
	target, level int
}

type templateEntry struct {
	patch intensity.Patch
	ok    bool
}

// New creates a Tracker for targets, seen through proj.
func New(cfg Config, proj estimator.Projection, targets []*target.Target) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("tracker config: %w", err)
	}
	return &Tracker{
		cfg:       cfg,
		proj:      proj,
		targets:   targets,
		warped:    make(map[levelKey]*intensity.Buffer),
		templates: make(map[levelKey][]templateEntry),
	}, nil
}

// Config returns the tracker configuration.
func (t *Tracker) Config() Config {
	return t.cfg
}

// Track searches img for the tracking points of target targetID around the
// positions predicted by st.Pose, and updates st's octave, stability and
// last screen positions. It returns ErrTrackingLost when too few points
// were found or they are too tightly clustered.
func (t *Tracker) Track(img *intensity.Buffer, st *State, targetID int) (*Result, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	if targetID < 0 || targetID >= len(t.targets) {
		return nil, fmt.Errorf("unknown target %d", targetID)
	}
	tg := t.targets[targetID]
	if st == nil || !st.Tracking || len(tg.Tracking) == 0 {
		return nil, fmt.Errorf("%w: target %d is not tracking", ErrTrackingLost, targetID)
	}
	if len(st.Stability) != len(tg.Tracking) {
		*st = *NewState(tg, st.Pose)
	}

	projW, ok := t.projectedWidth(tg, st.Pose)
	if !ok {
		return nil, fmt.Errorf("%w: target behind camera", ErrTrackingLost)
	}
	st.Octave = t.selectOctave(tg, projW, st.Octave)
	lvl := tg.Tracking[st.Octave]
	key := levelKey{targetID, st.Octave}

	h, ok := t.levelToScreen(lvl, st.Pose)
	if !ok {
		return nil, fmt.Errorf("%w: degenerate pose", ErrTrackingLost)
	}
	warped := t.warp(img, lvl, key, h)
	templates := t.templatesFor(lvl, key)

	res := &Result{Octave: st.Octave}
	stability := st.Stability[st.Octave]
	last := st.LastScreen[st.Octave]
	margin := float64(t.cfg.TemplateRadius)
	for i, p := range lvl.Points {
		found := false
		if templates[i].ok {
			prior := h.Apply(p)
			if prior.X >= margin && prior.Y >= margin &&
				prior.X < float64(img.Width)-margin && prior.Y < float64(img.Height)-margin {
				loc, sim := t.search(warped, templates[i].patch, int(p.X), int(p.Y))
				if sim > t.cfg.SimilarityThreshold {
					screen := h.Apply(loc)
					stability[i] = math.Min(1, stability[i]+t.cfg.StabilityGain)
					last[i] = screen
					res.World = append(res.World, lvl.World(i))
					res.Screen = append(res.Screen, screen)
					res.Reliability = append(res.Reliability, stability[i])
					res.Similarity = append(res.Similarity, sim)
					res.Indices = append(res.Indices, i)
					found = true
				}
			}
		}
		if !found {
			stability[i] *= t.cfg.StabilityDecay
		}
	}

	if err := t.checkCoverage(res, projW); err != nil {
		return res, err
	}
	res.Mesh = t.relax(lvl, res, h)
	st.Mesh = res.Mesh
	return res, nil
}

func (t *Tracker) checkCoverage(res *Result, projW float64) error {
	n := len(res.Screen)
	if n < t.cfg.MinPoints {
		return fmt.Errorf("%w: %d points found", ErrTrackingLost, n)
	}
	if n < t.cfg.SparsePoints {
		lo, hi := res.Screen[0], res.Screen[0]
		for _, p := range res.Screen[1:] {
			lo = r2.Point{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y)}
			hi = r2.Point{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y)}
		}
		if diag := hi.Sub(lo).Norm(); diag < t.cfg.MinSpreadRatio*projW {
			return fmt.Errorf("%w: %d points spread over %.1f px", ErrTrackingLost, n, diag)
		}
	}
	return nil
}

// projectedWidth returns the mean screen length of the top and bottom
// target edges under pose.
func (t *Tracker) projectedWidth(tg *target.Target, pose estimator.Pose) (float64, bool) {
	w, h := float64(tg.Width), float64(tg.Height)
	var c [4]r2.Point
	for i, v := range []r3.Vector{{}, {X: w}, {X: w, Y: h}, {Y: h}} {
		p, ok := t.proj.Project(pose, v)
		if !ok {
			return 0, false
		}
		c[i] = p
	}
	return (c[1].Sub(c[0]).Norm() + c[2].Sub(c[3]).Norm()) / 2, true
}

// selectOctave picks the tracking level whose width best matches the
// projected width, switching away from current only for a clear gain.
func (t *Tracker) selectOctave(tg *target.Target, projW float64, current int) int {
	score := func(i int) float64 {
		return math.Abs(math.Log2(float64(tg.Tracking[i].Width) / projW))
	}
	best := 0
	for i := range tg.Tracking {
		if score(i) < score(best) {
			best = i
		}
	}
	if current < 0 || current >= len(tg.Tracking) || current == best {
		return best
	}
	if score(current)-score(best) > t.cfg.OctaveSwitchMargin {
		return best
	}
	return current
}

// levelToScreen is the homography K [r1 r2 t] diag(1/s, 1/s, 1) from level
// pixels to frame pixels.
func (t *Tracker) levelToScreen(lvl *target.TrackingLevel, pose estimator.Pose) (geometry.Homography, bool) {
	k := t.proj
	is := 1 / lvl.Scale
	var h geometry.Homography
	for r := 0; r < 3; r++ {
		h[3*r] = pose[r][0] * is
		h[3*r+1] = pose[r][1] * is
		h[3*r+2] = pose[r][3]
	}
	for c := 0; c < 3; c++ {
		h[c] = k.Fx*h[c] + k.Cx*h[6+c]
		h[3+c] = k.Fy*h[3+c] + k.Cy*h[6+c]
	}
	return h.Normalize()
}

// warp resamples img into the geometry of lvl. The buffer is reused per
// level and every pixel is rewritten.
func (t *Tracker) warp(img *intensity.Buffer, lvl *target.TrackingLevel, key levelKey, h geometry.Homography) *intensity.Buffer {
	out := t.warped[key]
	if out == nil || out.Width != lvl.Width || out.Height != lvl.Height {
		out = &intensity.Buffer{Width: lvl.Width, Height: lvl.Height, Pix: make([]float32, lvl.Width*lvl.Height)}
		t.warped[key] = out
	}
	maxX, maxY := float64(img.Width-1), float64(img.Height-1)
	for y := 0; y < lvl.Height; y++ {
		fy := float64(y)
		for x := 0; x < lvl.Width; x++ {
			fx := float64(x)
			w := h[6]*fx + h[7]*fy + h[8]
			sx := (h[0]*fx + h[1]*fy + h[2]) / w
			sy := (h[3]*fx + h[4]*fy + h[5]) / w
			v := float32(0)
			if w > 0 && sx >= 0 && sy >= 0 && sx <= maxX && sy <= maxY {
				v = float32(img.Bilinear(sx, sy))
			}
			out.Pix[y*lvl.Width+x] = v
		}
	}
	return out
}

func (t *Tracker) templatesFor(lvl *target.TrackingLevel, key levelKey) []templateEntry {
	if cached, ok := t.templates[key]; ok && len(cached) == len(lvl.Points) {
		return cached
	}
	out := make([]templateEntry, len(lvl.Points))
	for i, p := range lvl.Points {
		out[i].patch, out[i].ok = intensity.NewPatch(lvl.Image, int(p.X), int(p.Y), t.cfg.TemplateRadius)
	}
	t.templates[key] = out
	return out
}

// search finds the best NCC position of patch around (cx, cy) in img with
// a coarse grid, a fine pass around the coarse winner and a parabolic
// sub-pixel fit. It returns the location and its similarity, -1 if nothing
// could be compared.
func (t *Tracker) search(img *intensity.Buffer, patch intensity.Patch, cx, cy int) (r2.Point, float64) {
	r, stride := t.cfg.SearchRadius, t.cfg.SearchStride
	bx, by, best := cx, cy, -1.0
	for dy := -r; dy <= r; dy += stride {
		for dx := -r; dx <= r; dx += stride {
			if s := patch.NCC(img, cx+dx, cy+dy); s > best {
				bx, by, best = cx+dx, cy+dy, s
			}
		}
	}
	fx, fy := bx, by
	for dy := -(stride - 1); dy <= stride-1; dy++ {
		for dx := -(stride - 1); dx <= stride-1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			if s := patch.NCC(img, fx+dx, fy+dy); s > best {
				bx, by, best = fx+dx, fy+dy, s
			}
		}
	}
	loc := r2.Point{X: float64(bx), Y: float64(by)}
	if best <= -1 {
		return loc, best
	}
	loc.X += subpixel(patch.NCC(img, bx-1, by), best, patch.NCC(img, bx+1, by))
	loc.Y += subpixel(patch.NCC(img, bx, by-1), best, patch.NCC(img, bx, by+1))
	return loc, best
}

func subpixel(l, c, r float64) float64 {
	if l <= -1 || r <= -1 {
		return 0
	}
	den := l - 2*c + r
	if den >= 0 {
		return 0
	}
	return math.Max(-0.5, math.Min(0.5, 0.5*(l-r)/den))
}
