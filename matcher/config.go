package matcher

import "fmt"

// Config holds the matcher parameters.
type Config struct {
	MaxQueryPoints int     `json:"max_query_points"` // Strongest query points considered
	Backtrack      int     `json:"backtrack"`        // Index branches popped per query point
	RatioFull      float64 `json:"ratio_full"`       // Best/second distance ratio for full and compact descriptors
	RatioSignature float64 `json:"ratio_signature"`  // Same for 32-bit signatures
	ScaleTolerance float64 `json:"scale_tolerance"`  // Allowed |log2| deviation from an expected scale
	MinInliers     int     `json:"min_inliers"`

	HoughRange     float64 `json:"hough_range"`      // Center bins span [-r*W, r*W)
	HoughBinFactor float64 `json:"hough_bin_factor"` // XY bin width relative to the median projected key width
	HoughMinBins   int     `json:"hough_min_bins"`
	AngleBins      int     `json:"angle_bins"`
	ScaleBins      int     `json:"scale_bins"`
	MinLogScale    float64 `json:"min_log_scale"` // log10 scale range covered by the scale bins
	MaxLogScale    float64 `json:"max_log_scale"`
	HoughBinDelta  float64 `json:"hough_bin_delta"`
	MinHoughVotes  int     `json:"min_hough_votes"`

	Hypotheses      int     `json:"hypotheses"`       // Homographies drawn for the tournament
	ChunkSize       int     `json:"chunk_size"`       // Correspondences scored per tournament round
	CauchyScale     float64 `json:"cauchy_scale"`     // In normalized coordinates
	MinAreaRatio    float64 `json:"min_area_ratio"`   // Smallest mapped triangle relative to the keyframe area
	InlierThreshold float64 `json:"inlier_threshold"` // Pixels
	GuidedRadius    float64 `json:"guided_radius"`    // Keyframe pixels

	EdgeSamples int     `json:"edge_samples"`
	EdgeWindow  float64 `json:"edge_window"`
	EdgeBlend   float64 `json:"edge_blend"`
}

// DefaultConfig returns the matcher defaults.
func DefaultConfig() Config {
	return Config{
		MaxQueryPoints: 1000,
		Backtrack:      8,
		RatioFull:      0.7,
		RatioSignature: 0.8,
		ScaleTolerance: 1.0,
		MinInliers:     6,

		HoughRange:     1.2,
		HoughBinFactor: 0.25,
		HoughMinBins:   5,
		AngleBins:      12,
		ScaleBins:      10,
		MinLogScale:    -1,
		MaxLogScale:    1,
		HoughBinDelta:  1,
		MinHoughVotes:  3,

		Hypotheses:      20,
		ChunkSize:       10,
		CauchyScale:     0.01,
		MinAreaRatio:    1e-4,
		InlierThreshold: 3,
		GuidedRadius:    10,

		EdgeSamples: 16,
		EdgeWindow:  4,
		EdgeBlend:   0.5,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch {
	case c.MaxQueryPoints < 1 || c.MinInliers < 4:
		return fmt.Errorf("max_query_points must be >= 1 and min_inliers >= 4")
	case c.RatioFull <= 0 || c.RatioSignature <= 0:
		return fmt.Errorf("ratio thresholds must be positive")
	case c.AngleBins < 2 || c.ScaleBins < 2 || c.HoughMinBins < 2 || c.MaxLogScale <= c.MinLogScale:
		return fmt.Errorf("hough bins: angle %d, scale %d, min %d, log range [%v, %v)",
			c.AngleBins, c.ScaleBins, c.HoughMinBins, c.MinLogScale, c.MaxLogScale)
	case c.Hypotheses < 1 || c.ChunkSize < 1:
		return fmt.Errorf("hypotheses and chunk_size must be positive")
	case c.InlierThreshold <= 0 || c.GuidedRadius <= 0 || c.CauchyScale <= 0:
		return fmt.Errorf("inlier threshold, guided radius and cauchy scale must be positive")
	case c.EdgeBlend < 0 || c.EdgeBlend > 1:
		return fmt.Errorf("edge_blend must be in [0, 1], got %v", c.EdgeBlend)
	}
	return nil
}
