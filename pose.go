package taptapp

import (
	"fmt"

	"go.viam.com/rdk/spatialmath"

	"github.com/srsergiolazaro/taptapp-ar-sub000/estimator"
)

// SpatialPose converts a camera-from-target pose into an rdk pose. The
// translation keeps the target's units, reference pixels.
func SpatialPose(p estimator.Pose) (spatialmath.Pose, error) {
	rot := p.Rotation()
	rm, err := spatialmath.NewRotationMatrix(rot[:])
	if err != nil {
		return nil, fmt.Errorf("rotation: %w", err)
	}
	return spatialmath.NewPose(p.Translation(), rm), nil
}
