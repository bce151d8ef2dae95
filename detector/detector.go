// Package detector finds scale-space extrema in an intensity image and
// describes them with an oriented FREAK-style binary descriptor.
package detector

import (
	"fmt"
	"math"

	"github.com/srsergiolazaro/taptapp-ar-sub000/descriptor"
	"github.com/srsergiolazaro/taptapp-ar-sub000/intensity"
)

// FeaturePoint is one detected extremum in base image coordinates.
type FeaturePoint struct {
	X, Y       float64
	Scale      float64 // 2^octave
	Angle      float64 // radians in (-pi, pi]
	Descriptor descriptor.Descriptor
	Score      float64 // DoG response
	IsMaxima   bool
}

// Detector owns the pyramid scratch buffers. It is not safe for concurrent
// use; create one per goroutine.
type Detector struct {
	cfg     Config
	pairs   []int
	octaves []*octave
}

// NewDetector creates a Detector. A nil cfg uses DefaultConfig.
func NewDetector(cfg *Config) (*Detector, error) {
	if cfg == nil {
		c := DefaultConfig()
		cfg = &c
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("detector config: %w", err)
	}
	return &Detector{cfg: *cfg, pairs: descriptor.CompactPairs(FreakComparisons)}, nil
}

// Config returns the detector configuration.
func (d *Detector) Config() Config {
	return d.cfg
}

// Octaves returns the octaves whose extrema Detect can report for an image
// of the given size.
func (d *Detector) Octaves(width, height int) []int {
	n := octaveCount(width, height, d.cfg.MinOctaveSize, d.cfg.MaxOctaves)
	var out []int
	for k := 1; k < n-1; k++ {
		out = append(out, k)
	}
	return out
}

// Detect returns the feature points of img. When octaves is non-empty only
// those octaves are searched, each once, and only they and their immediate
// neighbours are blurred.
func (d *Detector) Detect(img *intensity.Buffer, octaves ...int) ([]FeaturePoint, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	n := d.prepare(img)
	if len(octaves) == 0 {
		octaves = d.Octaves(img.Width, img.Height)
	}

	hist := make([]float64, d.cfg.OrientationBins)
	scratch := make([]float64, d.cfg.OrientationBins)
	samples := make([]float64, FreakPoints)

	var points []FeaturePoint
	seen := make(map[int]bool, len(octaves))
	for _, k := range octaves {
		if k < 1 || k >= n-1 || seen[k] {
			continue
		}
		seen[k] = true
		d.build(k - 1)
		d.build(k)
		d.build(k + 1)
		o := d.octaves[k]
		ext := d.prune(d.findExtrema(k), o.input.Width, o.input.Height)
		for _, e := range ext {
			fp, ok := d.describe(e, n, hist, scratch, samples)
			if ok {
				points = append(points, fp)
			}
		}
	}
	return points, nil
}

// describe orients and describes one extremum.
func (d *Detector) describe(e extremum, n int, hist, scratch, samples []float64) (FeaturePoint, bool) {
	scale := math.Pow(2, float64(e.octave))
	fp := FeaturePoint{
		X:        (e.x+0.5)*scale - 0.5,
		Y:        (e.y+0.5)*scale - 0.5,
		Scale:    scale,
		Score:    e.score,
		IsMaxima: e.max,
	}
	if e.octave < 0 || e.octave >= n {
		fp.Descriptor = d.zeroDescriptor()
		return fp, true
	}
	img := d.octaves[e.octave].img1
	angle, ok := d.orientation(img, e.x, e.y, hist, scratch)
	if !ok {
		return fp, false
	}
	full, ok := d.freak(img, e.x, e.y, angle, samples)
	if !ok {
		return fp, false
	}
	fp.Angle = angle
	fp.Descriptor = d.finalize(full)
	return fp, true
}
