package tracker

import "errors"

// ErrTrackingLost is returned when too few template points were found for
// the pose to be trusted.
var ErrTrackingLost = errors.New("tracking lost")
