package tracker

import (
	"github.com/golang/geo/r2"

	"github.com/srsergiolazaro/taptapp-ar-sub000/estimator"
	"github.com/srsergiolazaro/taptapp-ar-sub000/target"
)

// State is the per-target tracking memory carried between frames.
type State struct {
	Tracking   bool
	Pose       estimator.Pose
	Octave     int          // tracking level in use, -1 before the first frame
	Stability  [][]float64  // per level, per point, in [0, 1]
	LastScreen [][]r2.Point // per level, per point, last accepted screen position
	Mesh       *Mesh
	TrackCount int
}

// NewState starts tracking tg from pose.
func NewState(tg *target.Target, pose estimator.Pose) *State {
	st := &State{Tracking: true, Pose: pose, Octave: -1}
	st.Stability = make([][]float64, len(tg.Tracking))
	st.LastScreen = make([][]r2.Point, len(tg.Tracking))
	for i, lvl := range tg.Tracking {
		st.Stability[i] = make([]float64, len(lvl.Points))
		st.LastScreen[i] = make([]r2.Point, len(lvl.Points))
	}
	return st
}

// Reset clears the state to not tracking.
func (s *State) Reset() {
	*s = State{Octave: -1}
}
