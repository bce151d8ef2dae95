package detector

import "github.com/srsergiolazaro/taptapp-ar-sub000/intensity"

// octave holds the scratch images of one pyramid level. Buffers are reused
// across calls and fully rewritten before they are read.
type octave struct {
	input *intensity.Buffer
	img1  *intensity.Buffer
	img2  *intensity.Buffer
	dog   []float32
	tmp   []float32
	built bool
}

func (o *octave) ensure(w, h int) {
	if o.input != nil && o.input.Width == w && o.input.Height == h {
		o.built = false
		return
	}
	n := w * h
	o.input = &intensity.Buffer{Width: w, Height: h, Pix: make([]float32, n)}
	o.img1 = &intensity.Buffer{Width: w, Height: h, Pix: make([]float32, n)}
	o.img2 = &intensity.Buffer{Width: w, Height: h, Pix: make([]float32, n)}
	o.dog = make([]float32, n)
	o.tmp = make([]float32, n)
	o.built = false
}

// octaveCount returns how many halvings of w x h stay at or above minSize.
func octaveCount(w, h, minSize, maxOctaves int) int {
	n := 0
	for w >= minSize && h >= minSize && n < maxOctaves {
		n++
		w /= 2
		h /= 2
	}
	return n
}

// prepare copies img into octave 0 and fills every coarser input by 2x2 box
// averaging. Blurs are deferred to build.
func (d *Detector) prepare(img *intensity.Buffer) int {
	n := octaveCount(img.Width, img.Height, d.cfg.MinOctaveSize, d.cfg.MaxOctaves)
	for len(d.octaves) < n {
		d.octaves = append(d.octaves, &octave{})
	}
	d.octaves = d.octaves[:n]
	w, h := img.Width, img.Height
	for i := 0; i < n; i++ {
		o := d.octaves[i]
		o.ensure(w, h)
		if i == 0 {
			copy(o.input.Pix, img.Pix)
		} else {
			downsample(d.octaves[i-1].input, o.input)
		}
		w /= 2
		h /= 2
	}
	return n
}

// build blurs octave i twice and stores the difference.
func (d *Detector) build(i int) {
	o := d.octaves[i]
	if o.built {
		return
	}
	binomial(o.input, o.img1, o.tmp)
	binomial(o.img1, o.img2, o.tmp)
	for k := range o.dog {
		o.dog[k] = o.img1.Pix[k] - o.img2.Pix[k]
	}
	o.built = true
}

// binomial applies the separable [1 4 6 4 1]/16 kernel with clamped borders.
func binomial(src, dst *intensity.Buffer, tmp []float32) {
	w, h := src.Width, src.Height
	clamp := func(v, hi int) int {
		if v < 0 {
			return 0
		}
		if v > hi {
			return hi
		}
		return v
	}
	for y := 0; y < h; y++ {
		row := src.Pix[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			tmp[y*w+x] = (row[clamp(x-2, w-1)] + 4*row[clamp(x-1, w-1)] + 6*row[x] +
				4*row[clamp(x+1, w-1)] + row[clamp(x+2, w-1)]) / 16
		}
	}
	for y := 0; y < h; y++ {
		y0, y1, y3, y4 := clamp(y-2, h-1)*w, clamp(y-1, h-1)*w, clamp(y+1, h-1)*w, clamp(y+2, h-1)*w
		for x := 0; x < w; x++ {
			dst.Pix[y*w+x] = (tmp[y0+x] + 4*tmp[y1+x] + 6*tmp[y*w+x] + 4*tmp[y3+x] + tmp[y4+x]) / 16
		}
	}
}

// downsample writes the 2x2 box average of src into dst.
func downsample(src, dst *intensity.Buffer) {
	sw := src.Width
	for y := 0; y < dst.Height; y++ {
		r0 := 2 * y * sw
		r1 := r0 + sw
		for x := 0; x < dst.Width; x++ {
			c := 2 * x
			dst.Pix[y*dst.Width+x] = (src.Pix[r0+c] + src.Pix[r0+c+1] + src.Pix[r1+c] + src.Pix[r1+c+1]) / 4
		}
	}
}
