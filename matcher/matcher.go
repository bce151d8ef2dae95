// Package matcher locates a keyframe in a set of query feature points and
// recovers the homography from keyframe to query image.
package matcher

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/golang/geo/r2"

	"github.com/srsergiolazaro/taptapp-ar-sub000/descriptor"
	"github.com/srsergiolazaro/taptapp-ar-sub000/detector"
	"github.com/srsergiolazaro/taptapp-ar-sub000/geometry"
	"github.com/srsergiolazaro/taptapp-ar-sub000/index"
	"github.com/srsergiolazaro/taptapp-ar-sub000/intensity"
	"github.com/srsergiolazaro/taptapp-ar-sub000/target"
)

// Correspondence pairs a query point with a keyframe point.
type Correspondence struct {
	Query    detector.FeaturePoint
	Key      target.Keypoint
	Distance int
}

// Result is a successful match.
type Result struct {
	H       geometry.Homography // keyframe pixels to query pixels
	Inliers []Correspondence
	Refined bool // edge refinement was applied
}

// Matcher matches query points against keyframes. It owns only its random
// source and is not safe for concurrent use.
type Matcher struct {
	cfg Config
	rng *rand.Rand
}

// New creates a Matcher. A nil rng is replaced by a fixed-seed source.
func New(cfg Config, rng *rand.Rand) (*Matcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("matcher config: %w", err)
	}
	if rng == nil {
		//nolint:gosec
		rng = rand.New(rand.NewSource(1))
	}
	return &Matcher{cfg: cfg, rng: rng}, nil
}

// Config returns the matcher configuration.
func (m *Matcher) Config() Config {
	return m.cfg
}

type matchOptions struct {
	expectedScale float64
	edgeImage     *intensity.Buffer
	rng           *rand.Rand
}

// MatchOption customizes one Match call.
type MatchOption func(*matchOptions)

// WithExpectedScale discards candidates whose query/key scale ratio is more
// than ScaleTolerance octaves away from s.
func WithExpectedScale(s float64) MatchOption {
	return func(o *matchOptions) {
		o.expectedScale = s
	}
}

// WithEdgeRefinement snaps the target boundary to image edges in img after
// the homography is found.
func WithEdgeRefinement(img *intensity.Buffer) MatchOption {
	return func(o *matchOptions) {
		o.edgeImage = img
	}
}

// WithRand uses rng instead of the matcher's own source for this call.
func WithRand(rng *rand.Rand) MatchOption {
	return func(o *matchOptions) {
		o.rng = rng
	}
}

// Match finds kf among query, where query was detected on a width x height
// image. It returns ErrNotFound when no consistent homography is supported
// by at least MinInliers correspondences.
func (m *Matcher) Match(kf *target.Keyframe, query []detector.FeaturePoint, width, height int, opts ...MatchOption) (*Result, error) {
	o := matchOptions{rng: m.rng}
	for _, opt := range opts {
		opt(&o)
	}
	if kf == nil || width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: no keyframe or empty query image", ErrNotFound)
	}
	query = m.strongest(query)

	matches := m.ratioMatches(kf, query, o.expectedScale)
	if len(matches) < m.cfg.MinInliers {
		return nil, fmt.Errorf("%w: %d ratio matches", ErrNotFound, len(matches))
	}
	h, inliers, err := m.fit(o.rng, kf, matches, width, height)
	if err != nil {
		return nil, fmt.Errorf("first pass: %w", err)
	}

	hInv, ok := h.Inverse(1e-5)
	if !ok {
		return nil, fmt.Errorf("%w: singular homography", ErrNotFound)
	}
	guided := m.guidedMatches(kf, query, hInv)
	if len(guided) >= m.cfg.MinInliers {
		if h2, in2, err := m.fit(o.rng, kf, guided, width, height); err == nil {
			h, inliers = h2, in2
		}
	}

	res := &Result{H: h, Inliers: inliers}
	if o.edgeImage != nil && o.edgeImage.Validate() == nil {
		if hr, ok := m.refineEdges(o.edgeImage, h, kf.Width, kf.Height); ok {
			res.H = hr
			res.Refined = true
		}
	}
	return res, nil
}

// strongest keeps the MaxQueryPoints points of largest |score|.
func (m *Matcher) strongest(query []detector.FeaturePoint) []detector.FeaturePoint {
	if len(query) <= m.cfg.MaxQueryPoints {
		return query
	}
	sorted := make([]detector.FeaturePoint, len(query))
	copy(sorted, query)
	sort.SliceStable(sorted, func(i, j int) bool {
		return math.Abs(sorted[i].Score) > math.Abs(sorted[j].Score)
	})
	return sorted[:m.cfg.MaxQueryPoints]
}

func (m *Matcher) ratio(d descriptor.Descriptor) float64 {
	if len(d) <= 1 {
		return m.cfg.RatioSignature
	}
	return m.cfg.RatioFull
}

func (m *Matcher) scaleOK(q detector.FeaturePoint, k target.Keypoint, expected float64) bool {
	if expected <= 0 {
		return true
	}
	return math.Abs(math.Log2(q.Scale/k.Scale/expected)) <= m.cfg.ScaleTolerance
}

// ratioMatches pairs every query point with its nearest same-sign keypoint
// among the index candidates, when it passes the ratio test.
func (m *Matcher) ratioMatches(kf *target.Keyframe, query []detector.FeaturePoint, expected float64) []Correspondence {
	var out []Correspondence
	for _, q := range query {
		set := kf.Points(q.IsMaxima)
		if set.Len() == 0 {
			continue
		}
		cands := index.Query(set.Tree.Root, set.Descriptors, q.Descriptor, m.cfg.Backtrack)
		best, d1, d2 := -1, math.MaxInt, math.MaxInt
		for _, c := range cands {
			if !m.scaleOK(q, set.At(c), expected) {
				continue
			}
			d := descriptor.Distance(set.Descriptors[c], q.Descriptor)
			if d < d1 {
				best, d1, d2 = c, d, d1
			} else if d < d2 {
				d2 = d
			}
		}
		if best < 0 {
			continue
		}
		if d2 == math.MaxInt || float64(d1) < m.ratio(q.Descriptor)*float64(d2) {
			out = append(out, Correspondence{Query: q, Key: set.At(best), Distance: d1})
		}
	}
	return out
}

// guidedMatches re-matches every query point against the keypoints lying
// within GuidedRadius of its position mapped back through hInv.
func (m *Matcher) guidedMatches(kf *target.Keyframe, query []detector.FeaturePoint, hInv geometry.Homography) []Correspondence {
	r2max := m.cfg.GuidedRadius * m.cfg.GuidedRadius
	var out []Correspondence
	for _, q := range query {
		p := hInv.Apply(r2.Point{X: q.X, Y: q.Y})
		if math.IsNaN(p.X) || math.IsNaN(p.Y) {
			continue
		}
		set := kf.Points(q.IsMaxima)
		best, d1, d2 := -1, math.MaxInt, math.MaxInt
		for k := 0; k < set.Len(); k++ {
			dx, dy := set.X[k]-p.X, set.Y[k]-p.Y
			if dx*dx+dy*dy > r2max {
				continue
			}
			d := descriptor.Distance(set.Descriptors[k], q.Descriptor)
			if d < d1 {
				best, d1, d2 = k, d, d1
			} else if d < d2 {
				d2 = d
			}
		}
		if best < 0 {
			continue
		}
		if d2 == math.MaxInt || float64(d1) < m.ratio(q.Descriptor)*float64(d2) {
			out = append(out, Correspondence{Query: q, Key: set.At(best), Distance: d1})
		}
	}
	return out
}

// fit runs Hough filtering, the homography tournament and the inlier test.
func (m *Matcher) fit(rng *rand.Rand, kf *target.Keyframe, matches []Correspondence, qw, qh int) (geometry.Homography, []Correspondence, error) {
	filtered := m.houghFilter(matches, kf.Width, kf.Height, qw, qh)
	if len(filtered) < m.cfg.MinInliers {
		return geometry.Homography{}, nil, fmt.Errorf("%w: %d matches after hough", ErrNotFound, len(filtered))
	}
	src := make([]r2.Point, len(filtered))
	dst := make([]r2.Point, len(filtered))
	for i, c := range filtered {
		src[i] = r2.Point{X: c.Key.X, Y: c.Key.Y}
		dst[i] = r2.Point{X: c.Query.X, Y: c.Query.Y}
	}
	h, ok := m.estimateHomography(rng, src, dst, kf.Width, kf.Height)
	if !ok {
		return geometry.Homography{}, nil, fmt.Errorf("%w: no plausible homography", ErrNotFound)
	}
	inliers := m.inliers(h, filtered)
	if len(inliers) < m.cfg.MinInliers {
		return geometry.Homography{}, nil, fmt.Errorf("%w: %d inliers", ErrNotFound, len(inliers))
	}
	return h, inliers, nil
}

func (m *Matcher) inliers(h geometry.Homography, matches []Correspondence) []Correspondence {
	t2 := m.cfg.InlierThreshold * m.cfg.InlierThreshold
	var out []Correspondence
	for _, c := range matches {
		p := h.Apply(r2.Point{X: c.Key.X, Y: c.Key.Y})
		dx, dy := p.X-c.Query.X, p.Y-c.Query.Y
		if dx*dx+dy*dy <= t2 {
			out = append(out, c)
		}
	}
	return out
}
