package estimator

import "fmt"

// Config holds the refinement parameters. Errors are mean squared pixel
// distances.
type Config struct {
	InlierSchedule     []float64 `json:"inlier_schedule"`      // Inlier fraction assumed by each pass
	MaxIterations      int       `json:"max_iterations"`       // Gauss-Newton steps per pass
	BreakError         float64   `json:"break_error"`          // Stop a pass below this error
	StallError         float64   `json:"stall_error"`          // Below this, stop when progress stalls
	StallRatio         float64   `json:"stall_ratio"`          // err/err0 above this counts as stalled
	AcceptError        float64   `json:"accept_error"`         // A pass ending below this is accepted
	RobustFactor       float64   `json:"robust_factor"`        // K2 multiplier on the ranked error
	MinRobustCutoff    float64   `json:"min_robust_cutoff"`    // Lower bound of K2
	MinStabilityWeight float64   `json:"min_stability_weight"` // Floor of the per-point stability weight
}

// DefaultConfig returns the estimator defaults.
func DefaultConfig() Config {
	return Config{
		InlierSchedule:     []float64{1.0, 0.8, 0.6, 0.4, 0.0},
		MaxIterations:      10,
		BreakError:         0.1,
		StallError:         4.0,
		StallRatio:         0.99,
		AcceptError:        1.0,
		RobustFactor:       4.0,
		MinRobustCutoff:    16.0,
		MinStabilityWeight: 0.1,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if len(c.InlierSchedule) == 0 {
		return fmt.Errorf("inlier_schedule is empty")
	}
	for _, p := range c.InlierSchedule {
		if p < 0 || p > 1 {
			return fmt.Errorf("inlier fraction %v outside [0, 1]", p)
		}
	}
	if c.MaxIterations < 1 || c.AcceptError <= 0 || c.MinRobustCutoff <= 0 {
		return fmt.Errorf("max_iterations, accept_error and min_robust_cutoff must be positive")
	}
	return nil
}
