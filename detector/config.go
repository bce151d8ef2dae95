package detector

import (
	"fmt"

	"github.com/srsergiolazaro/taptapp-ar-sub000/descriptor"
)

// Config holds the scale-space detector parameters. The defaults were tuned
// against real camera footage; change them with care.
type Config struct {
	MinOctaveSize        int             `json:"min_octave_size"`       // Smallest octave side in pixels
	MaxOctaves           int             `json:"max_octaves"`           // Number of pyramid octaves built at most
	DoGThreshold         float64         `json:"dog_threshold"`         // Minimum |DoG| for an extremum (0-255 intensity scale)
	BucketsPerDimension  int             `json:"buckets_per_dimension"` // Spatial grid size per octave
	MaxPerBucket         int             `json:"max_per_bucket"`        // Extrema kept per grid cell
	OrientationBins      int             `json:"orientation_bins"`      // Gradient histogram bins
	OrientationRadius    float64         `json:"orientation_radius"`    // Histogram support radius in octave pixels
	OrientationSigma     float64         `json:"orientation_sigma"`     // Gaussian weight sigma in octave pixels
	OrientationSmoothing int             `json:"orientation_smoothing"` // Circular smoothing passes over the histogram
	FreakExpansion       float64         `json:"freak_expansion"`       // Pattern radius in octave pixels
	DescriptorMode       descriptor.Mode `json:"descriptor_mode"`       // "full", "compact" or "signature"
}

// DefaultConfig returns the detector defaults.
func DefaultConfig() Config {
	return Config{
		MinOctaveSize:        8,
		MaxOctaves:           5,
		DoGThreshold:         3.0,
		BucketsPerDimension:  8,
		MaxPerBucket:         5,
		OrientationBins:      36,
		OrientationRadius:    4.5,
		OrientationSigma:     3.0,
		OrientationSmoothing: 5,
		FreakExpansion:       7.0,
		DescriptorMode:       descriptor.Compact,
	}
}

// Validate checks that every size and count is usable.
func (c Config) Validate() error {
	switch {
	case c.MinOctaveSize < 4:
		return fmt.Errorf("min_octave_size must be >= 4, got %d", c.MinOctaveSize)
	case c.MaxOctaves < 3:
		return fmt.Errorf("max_octaves must be >= 3, got %d", c.MaxOctaves)
	case c.BucketsPerDimension < 1 || c.MaxPerBucket < 1:
		return fmt.Errorf("bucket grid %dx%d/%d is empty", c.BucketsPerDimension, c.BucketsPerDimension, c.MaxPerBucket)
	case c.OrientationBins < 4:
		return fmt.Errorf("orientation_bins must be >= 4, got %d", c.OrientationBins)
	case c.OrientationRadius <= 0 || c.OrientationSigma <= 0 || c.FreakExpansion <= 0:
		return fmt.Errorf("orientation radius, sigma and freak expansion must be positive")
	}
	return nil
}
