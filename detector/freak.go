package detector

import (
	"math"

	"github.com/golang/geo/r2"

	"github.com/srsergiolazaro/taptapp-ar-sub000/descriptor"
	"github.com/srsergiolazaro/taptapp-ar-sub000/intensity"
)

// freakPattern is the log-polar sampling pattern: six rings of six points with
// decreasing radius, centre last. Coordinates are in units of the expansion factor.
var freakPattern = buildPattern([][6][2]float64{
	{{-1.000000, 0.000000}, {-0.500000, -0.866025}, {0.500000, -0.866025}, {1.000000, -0.000000}, {0.500000, 0.866025}, {-0.500000, 0.866025}},
	{{0.000000, 0.930969}, {-0.806243, 0.465485}, {-0.806243, -0.465485}, {-0.000000, -0.930969}, {0.806243, -0.465485}, {0.806243, 0.465485}},
	{{0.847306, -0.000000}, {0.423653, 0.733789}, {-0.423653, 0.733789}, {-0.847306, 0.000000}, {-0.423653, -0.733789}, {0.423653, -0.733789}},
	{{-0.000000, -0.741094}, {0.641806, -0.370547}, {0.641806, 0.370547}, {0.000000, 0.741094}, {-0.641806, 0.370547}, {-0.641806, -0.370547}},
	{{-0.595502, 0.000000}, {-0.297751, -0.515720}, {0.297751, -0.515720}, {0.595502, -0.000000}, {0.297751, 0.515720}, {-0.297751, 0.515720}},
	{{0.000000, 0.362783}, {-0.314179, 0.181391}, {-0.314179, -0.181391}, {-0.000000, -0.362783}, {0.314179, -0.181391}, {0.314179, 0.181391}},
})

// FreakPoints is the number of samples in the pattern.
var FreakPoints = len(freakPattern)

// FreakComparisons is the number of ordinal comparisons of a full descriptor.
var FreakComparisons = FreakPoints * (FreakPoints - 1) / 2

func buildPattern(rings [][6][2]float64) []r2.Point {
	pts := make([]r2.Point, 0, len(rings)*6+1)
	for _, ring := range rings {
		for _, p := range ring {
			pts = append(pts, r2.Point{X: p[0], Y: p[1]})
		}
	}
	return append(pts, r2.Point{})
}

// freak samples the pattern around (cx, cy) on img and returns the full
// ordinal descriptor, or false if any sample falls outside the image.
func (d *Detector) freak(img *intensity.Buffer, cx, cy, angle float64, samples []float64) (descriptor.Descriptor, bool) {
	e := d.cfg.FreakExpansion
	if cx-e < 0 || cy-e < 0 || cx+e > float64(img.Width-1) || cy+e > float64(img.Height-1) {
		return nil, false
	}
	c, s := math.Cos(angle), math.Sin(angle)
	for i, p := range freakPattern {
		px, py := p.X*e, p.Y*e
		samples[i] = img.Bilinear(cx+c*px-s*py, cy+s*px+c*py)
	}
	desc := make(descriptor.Descriptor, descriptor.Words(FreakComparisons))
	bit := 0
	for i := 0; i < len(samples); i++ {
		for j := i + 1; j < len(samples); j++ {
			if samples[i] < samples[j] {
				desc.Set(bit)
			}
			bit++
		}
	}
	return desc, true
}

// finalize converts a full descriptor to the configured mode.
func (d *Detector) finalize(full descriptor.Descriptor) descriptor.Descriptor {
	switch d.cfg.DescriptorMode {
	case descriptor.Compact:
		return descriptor.Compacted(full, d.pairs)
	case descriptor.Signature:
		return descriptor.Fold(descriptor.Compacted(full, d.pairs))
	default:
		return full
	}
}

// zeroDescriptor is the fallback for points outside the built pyramid.
func (d *Detector) zeroDescriptor() descriptor.Descriptor {
	return make(descriptor.Descriptor, descriptor.Words(d.cfg.DescriptorMode.Bits(FreakComparisons)))
}
