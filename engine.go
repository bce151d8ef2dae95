// Package taptapp wires detection, matching, tracking and pose estimation
// into a per-frame engine for planar image targets.
package taptapp

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/rdk/logging"

	"github.com/srsergiolazaro/taptapp-ar-sub000/detector"
	"github.com/srsergiolazaro/taptapp-ar-sub000/estimator"
	"github.com/srsergiolazaro/taptapp-ar-sub000/intensity"
	"github.com/srsergiolazaro/taptapp-ar-sub000/matcher"
	"github.com/srsergiolazaro/taptapp-ar-sub000/target"
	"github.com/srsergiolazaro/taptapp-ar-sub000/tracker"
)

// TargetUpdate is the per-frame outcome for one target.
type TargetUpdate struct {
	TargetID int
	Name     string
	Tracking bool
	Pose     estimator.Pose // camera from target, valid when Tracking
	Mesh     *tracker.Mesh  // relaxed tracking mesh, nil right after a lock
}

// Engine runs the detect, match, track and refine pipeline over a stream of
// frames. It is not safe for concurrent use.
type Engine struct {
	cfg     Config
	logger  logging.Logger
	proj    estimator.Projection
	targets []*target.Target
	states  []*tracker.State

	detector *detector.Detector
	matcher  *matcher.Matcher
	tracker  *tracker.Tracker
	refiner  *estimator.Refiner
}

// NewEngine creates an engine for targets seen through proj. seed drives
// the matcher's random sampling so runs over the same frames repeat.
func NewEngine(cfg Config, proj estimator.Projection, targets []*target.Target, logger logging.Logger, seed int64) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if len(targets) == 0 {
		return nil, errors.New("no targets")
	}
	for i, tg := range targets {
		if tg == nil || len(tg.Keyframes) == 0 {
			return nil, fmt.Errorf("target %d has no keyframes", i)
		}
	}
	if logger == nil {
		logger = logging.NewLogger("taptapp")
	}

	det, err := detector.NewDetector(&cfg.Detector)
	if err != nil {
		return nil, err
	}
	//nolint:gosec
	m, err := matcher.New(cfg.Matcher, rand.New(rand.NewSource(seed)))
	if err != nil {
		return nil, err
	}
	tr, err := tracker.New(cfg.Tracker, proj, targets)
	if err != nil {
		return nil, err
	}
	ref, err := estimator.NewRefiner(&cfg.Estimator)
	if err != nil {
		return nil, err
	}

	states := make([]*tracker.State, len(targets))
	for i := range states {
		states[i] = &tracker.State{Octave: -1}
	}
	return &Engine{
		cfg:      cfg,
		logger:   logger,
		proj:     proj,
		targets:  targets,
		states:   states,
		detector: det,
		matcher:  m,
		tracker:  tr,
		refiner:  ref,
	}, nil
}

// ProcessFrame advances every target by one frame. Locked targets are
// tracked. When no target remains locked the frame is searched for one.
// Only a malformed frame is reported as an error; losing or not finding a
// target is reported through the returned updates.
func (e *Engine) ProcessFrame(img *intensity.Buffer) ([]TargetUpdate, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	locked := false
	for id, st := range e.states {
		if st.Tracking && e.track(img, id) {
			locked = true
		}
	}
	if !locked {
		if err := e.search(img); err != nil {
			return nil, err
		}
	}

	updates := make([]TargetUpdate, len(e.targets))
	for id, st := range e.states {
		updates[id] = TargetUpdate{
			TargetID: id,
			Name:     e.targets[id].Name,
			Tracking: st.Tracking,
			Pose:     st.Pose,
			Mesh:     st.Mesh,
		}
	}
	return updates, nil
}

// State returns a copy of the tracking state of target id.
func (e *Engine) State(id int) (tracker.State, bool) {
	if id < 0 || id >= len(e.states) {
		return tracker.State{}, false
	}
	return *e.states[id], true
}

// Reset drops the lock on target id.
func (e *Engine) Reset(id int) {
	if id >= 0 && id < len(e.states) {
		e.states[id].Reset()
	}
}

// track runs one hot-path frame for target id and reports whether it is
// still locked.
func (e *Engine) track(img *intensity.Buffer, id int) bool {
	st := e.states[id]
	name := e.targets[id].Name
	res, err := e.tracker.Track(img, st, id)
	if err != nil {
		e.logger.Infof("target %q lost after %d frames: %v", name, st.TrackCount, err)
		st.Reset()
		return false
	}
	if res.Mesh == nil {
		e.logger.Warnf("target %q: no tracking mesh at octave %d", name, res.Octave)
	}
	pose, err := e.refiner.Refine(st.Pose, res.World, res.Screen, res.Reliability, e.proj)
	if err != nil {
		e.logger.Infof("target %q lost after %d frames: %v", name, st.TrackCount, err)
		st.Reset()
		return false
	}
	st.Pose = pose
	st.TrackCount++
	e.logger.Debugf("target %q tracked %d points at octave %d", name, len(res.Screen), res.Octave)
	return true
}

// search detects features once and locks the first target whose keyframe
// matches.
func (e *Engine) search(img *intensity.Buffer) error {
	points, err := e.detector.Detect(img, e.cfg.Engine.Octaves...)
	if err != nil {
		return err
	}
	var opts []matcher.MatchOption
	if e.cfg.Engine.ExpectedScale > 0 {
		opts = append(opts, matcher.WithExpectedScale(e.cfg.Engine.ExpectedScale))
	}
	if e.cfg.Engine.EdgeRefinement {
		opts = append(opts, matcher.WithEdgeRefinement(img))
	}

	for id, tg := range e.targets {
		for k, kf := range tg.Keyframes {
			res, err := e.matcher.Match(kf, points, img.Width, img.Height, opts...)
			if err != nil {
				e.logger.Debugf("target %q keyframe %d: %v", tg.Name, k, err)
				continue
			}
			pose, err := e.initialPose(kf, res.Inliers)
			if err != nil {
				e.logger.Debugf("target %q keyframe %d: pose: %v", tg.Name, k, err)
				continue
			}
			e.states[id] = tracker.NewState(tg, pose)
			e.logger.Infof("target %q locked on keyframe %d with %d inliers of %d points",
				tg.Name, k, len(res.Inliers), len(points))
			return nil
		}
	}
	e.logger.Debugf("no target among %d points", len(points))
	return nil
}

func (e *Engine) initialPose(kf *target.Keyframe, inliers []matcher.Correspondence) (estimator.Pose, error) {
	world := make([]r3.Vector, len(inliers))
	screen := make([]r2.Point, len(inliers))
	for i, c := range inliers {
		world[i] = kf.World(r2.Point{X: c.Key.X, Y: c.Key.Y})
		screen[i] = r2.Point{X: c.Query.X, Y: c.Query.Y}
	}
	pose, err := estimator.Estimate(screen, world, e.proj)
	if err != nil {
		return pose, err
	}
	return e.refiner.Refine(pose, world, screen, nil, e.proj)
}
