package intensity

import "errors"

// ErrMalformed is returned when a buffer's dimensions or length are inconsistent.
var ErrMalformed = errors.New("malformed intensity buffer")
