package tracker

import "fmt"

// Config holds the frame tracker parameters. Radii are in tracking level pixels.
type Config struct {
	TemplateRadius      int     `json:"template_radius"`      // Template is (2r+1)^2
	SearchRadius        int     `json:"search_radius"`        // Largest displacement searched
	SearchStride        int     `json:"search_stride"`        // Coarse search step, refined at +-(stride-1)
	SimilarityThreshold float64 `json:"similarity_threshold"` // NCC needed to accept a point
	MinPoints           int     `json:"min_points"`           // Fewer accepted points means lost
	SparsePoints        int     `json:"sparse_points"`        // Below this the spread check applies
	MinSpreadRatio      float64 `json:"min_spread_ratio"`     // Bounding-box diagonal relative to projected width
	StabilityGain       float64 `json:"stability_gain"`
	StabilityDecay      float64 `json:"stability_decay"`
	OctaveSwitchMargin  float64 `json:"octave_switch_margin"` // In |log2| of the width ratio
	MeshIterations      int     `json:"mesh_iterations"`
	Stiffness           float64 `json:"stiffness"`
	Fidelity            float64 `json:"fidelity"`
}

// DefaultConfig returns the tracker defaults.
func DefaultConfig() Config {
	return Config{
		TemplateRadius:      6,
		SearchRadius:        10,
		SearchStride:        2,
		SimilarityThreshold: 0.8,
		MinPoints:           4,
		SparsePoints:        8,
		MinSpreadRatio:      0.1,
		StabilityGain:       0.2,
		StabilityDecay:      0.5,
		OctaveSwitchMargin:  0.25,
		MeshIterations:      5,
		Stiffness:           0.5,
		Fidelity:            0.5,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch {
	case c.TemplateRadius < 1 || c.SearchRadius < 1 || c.SearchStride < 1:
		return fmt.Errorf("template radius, search radius and stride must be positive")
	case c.MinPoints < 1 || c.SparsePoints < c.MinPoints:
		return fmt.Errorf("min_points %d and sparse_points %d invalid", c.MinPoints, c.SparsePoints)
	case c.StabilityDecay < 0 || c.StabilityDecay > 1 || c.StabilityGain < 0:
		return fmt.Errorf("stability gain %v and decay %v invalid", c.StabilityGain, c.StabilityDecay)
	case c.Stiffness < 0 || c.Stiffness > 1 || c.Fidelity < 0 || c.Fidelity > 1:
		return fmt.Errorf("stiffness and fidelity must be in [0, 1]")
	}
	return nil
}
