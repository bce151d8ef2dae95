package estimator

import "errors"

var (
	// ErrSingularSystem is returned when the point configuration does not
	// determine a pose, e.g. fewer than four points or all of them collinear.
	ErrSingularSystem = errors.New("singular pose system")

	// ErrNotConverged is returned by RefineEstimate when no refinement pass
	// reached the acceptance error. The best pose found is still returned.
	ErrNotConverged = errors.New("pose refinement did not converge")
)
