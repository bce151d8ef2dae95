package matcher

import "errors"

// ErrNotFound is returned when a keyframe cannot be located in the query.
// It is an ordinary per-frame outcome.
var ErrNotFound = errors.New("target not found")
