package taptapp

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-viper/mapstructure/v2"

	"github.com/srsergiolazaro/taptapp-ar-sub000/detector"
	"github.com/srsergiolazaro/taptapp-ar-sub000/estimator"
	"github.com/srsergiolazaro/taptapp-ar-sub000/matcher"
	"github.com/srsergiolazaro/taptapp-ar-sub000/target"
	"github.com/srsergiolazaro/taptapp-ar-sub000/tracker"
)

// Config holds all tunable parameters for the tracking pipeline. Detector
// configures frame detection; Target carries the detector and index
// parameters used when compiling reference images.
type Config struct {
	Detector  detector.Config  `json:"detector"`
	Target    target.Config    `json:"target"`
	Matcher   matcher.Config   `json:"matcher"`
	Tracker   tracker.Config   `json:"tracker"`
	Estimator estimator.Config `json:"estimator"`
	Engine    EngineConfig     `json:"engine"`
}

// EngineConfig controls how the engine moves between detection and tracking.
type EngineConfig struct {
	Octaves        []int   `json:"octaves"`         // Detector octaves searched on the cold path, empty for all
	ExpectedScale  float64 `json:"expected_scale"`  // Keypoint scale expected on the cold path, 0 to disable
	EdgeRefinement bool    `json:"edge_refinement"` // Snap the matched homography to the target border
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Detector:  detector.DefaultConfig(),
		Target:    target.DefaultConfig(),
		Matcher:   matcher.DefaultConfig(),
		Tracker:   tracker.DefaultConfig(),
		Estimator: estimator.DefaultConfig(),
	}
}

// Validate checks every sub-configuration.
func (c Config) Validate() error {
	if err := c.Detector.Validate(); err != nil {
		return fmt.Errorf("detector: %w", err)
	}
	if err := c.Target.Validate(); err != nil {
		return fmt.Errorf("target: %w", err)
	}
	if c.Detector.DescriptorMode != c.Target.Detector.DescriptorMode {
		return fmt.Errorf("detector descriptor_mode %v differs from target %v",
			c.Detector.DescriptorMode, c.Target.Detector.DescriptorMode)
	}
	if err := c.Matcher.Validate(); err != nil {
		return fmt.Errorf("matcher: %w", err)
	}
	if err := c.Tracker.Validate(); err != nil {
		return fmt.Errorf("tracker: %w", err)
	}
	if c.Tracker.TemplateRadius != c.Target.TemplateRadius || c.Tracker.SearchRadius != c.Target.SearchRadius {
		return fmt.Errorf("tracker template/search radius %d/%d differs from target %d/%d",
			c.Tracker.TemplateRadius, c.Tracker.SearchRadius, c.Target.TemplateRadius, c.Target.SearchRadius)
	}
	if err := c.Estimator.Validate(); err != nil {
		return fmt.Errorf("estimator: %w", err)
	}
	if c.Engine.ExpectedScale < 0 {
		return fmt.Errorf("engine: expected_scale must not be negative")
	}
	for _, o := range c.Engine.Octaves {
		if o < 0 {
			return fmt.Errorf("engine: negative octave %d", o)
		}
	}
	return nil
}

// LoadConfig reads a JSON configuration file. Fields absent from the file
// keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// ConfigFromAttributes decodes a generic attribute map, as found in a
// component's JSON attributes, on top of the defaults.
func ConfigFromAttributes(attrs map[string]interface{}) (Config, error) {
	cfg := DefaultConfig()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.TextUnmarshallerHookFunc(),
	})
	if err != nil {
		return cfg, fmt.Errorf("config decoder: %w", err)
	}
	if err := dec.Decode(attrs); err != nil {
		return cfg, fmt.Errorf("decode attributes: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
