package detector

import (
	"math"

	"github.com/srsergiolazaro/taptapp-ar-sub000/intensity"
)

var histogramKernel = [3]float64{0.274068619061197, 0.451862761877606, 0.274068619061197}

// orientation returns the dominant gradient direction around (cx, cy) and
// false when the support window leaves the image.
func (d *Detector) orientation(img *intensity.Buffer, cx, cy float64, hist, scratch []float64) (float64, bool) {
	r := d.cfg.OrientationRadius
	ri := int(math.Ceil(r))
	x0, y0 := int(math.Round(cx)), int(math.Round(cy))
	if x0-ri-1 < 0 || y0-ri-1 < 0 || x0+ri+1 >= img.Width || y0+ri+1 >= img.Height {
		return 0, false
	}
	for i := range hist {
		hist[i] = 0
	}
	bins := float64(len(hist))
	twoSigma2 := 2 * d.cfg.OrientationSigma * d.cfg.OrientationSigma
	r2 := r * r
	w := img.Width
	for dy := -ri; dy <= ri; dy++ {
		for dx := -ri; dx <= ri; dx++ {
			fdx := float64(x0+dx) - cx
			fdy := float64(y0+dy) - cy
			dist2 := fdx*fdx + fdy*fdy
			if dist2 > r2 {
				continue
			}
			p := (y0+dy)*w + x0 + dx
			gx := float64(img.Pix[p+1] - img.Pix[p-1])
			gy := float64(img.Pix[p+w] - img.Pix[p-w])
			mag := math.Sqrt(gx*gx + gy*gy)
			if mag == 0 {
				continue
			}
			angle := math.Atan2(gy, gx)
			if angle < 0 {
				angle += 2 * math.Pi
			}
			weight := mag * math.Exp(-dist2/twoSigma2)
			fb := bins*angle/(2*math.Pi) - 0.5
			b0 := int(math.Floor(fb))
			frac := fb - float64(b0)
			n := len(hist)
			hist[(b0%n+n)%n] += weight * (1 - frac)
			hist[((b0+1)%n+n)%n] += weight * frac
		}
	}

	for it := 0; it < d.cfg.OrientationSmoothing; it++ {
		smoothCircular(hist, scratch)
	}

	best := 0
	for i, v := range hist {
		if v > hist[best] {
			best = i
		}
	}
	if hist[best] == 0 {
		return 0, true
	}
	n := len(hist)
	l, c, rr := hist[(best-1+n)%n], hist[best], hist[(best+1)%n]
	off := 0.0
	if den := l - 2*c + rr; den < 0 {
		off = 0.5 * (l - rr) / den
	}
	angle := (float64(best) + 0.5 + off) * 2 * math.Pi / bins
	return wrapAngle(angle), true
}

func smoothCircular(hist, scratch []float64) {
	n := len(hist)
	copy(scratch, hist)
	for i := 0; i < n; i++ {
		hist[i] = histogramKernel[0]*scratch[(i-1+n)%n] + histogramKernel[1]*scratch[i] + histogramKernel[2]*scratch[(i+1)%n]
	}
}

// wrapAngle maps a into (-pi, pi].
func wrapAngle(a float64) float64 {
	for a <= -math.Pi {
		a += 2 * math.Pi
	}
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}
