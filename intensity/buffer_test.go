package intensity

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"
)

func TestNew_RejectsMalformed(t *testing.T) {
	if _, err := New(0, 4, nil); !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed for zero width, got %v", err)
	}
	if _, err := New(4, 4, make([]float32, 15)); !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed for short buffer, got %v", err)
	}
	if _, err := FromBytes(2, 2, make([]byte, 5)); !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed for long byte buffer, got %v", err)
	}
	var nilBuf *Buffer
	if err := nilBuf.Validate(); !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed for nil buffer, got %v", err)
	}
}

func TestBilinear(t *testing.T) {
	b, err := New(2, 2, []float32{0, 10, 20, 30})
	if err != nil {
		t.Fatal(err)
	}
	if v := b.Bilinear(0.5, 0.5); math.Abs(v-15) > 1e-9 {
		t.Errorf("center sample = %v, want 15", v)
	}
	if v := b.Bilinear(1, 0); math.Abs(v-10) > 1e-9 {
		t.Errorf("corner sample = %v, want 10", v)
	}
	if v := b.At(-3, 7); v != 20 {
		t.Errorf("clamped sample = %v, want 20", v)
	}
}

func TestFromImage(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 3, 2))
	img.SetGray(2, 1, color.Gray{Y: 200})
	b, err := FromImage(img)
	if err != nil {
		t.Fatal(err)
	}
	if b.Width != 3 || b.Height != 2 {
		t.Fatalf("size = %dx%d, want 3x2", b.Width, b.Height)
	}
	if math.Abs(float64(b.At(2, 1))-200) > 1 {
		t.Errorf("pixel = %v, want ~200", b.At(2, 1))
	}
}

func TestResize_HalvesUniformImage(t *testing.T) {
	pix := make([]float32, 40*20)
	for i := range pix {
		pix[i] = 200
	}
	b, err := New(40, 20, pix)
	if err != nil {
		t.Fatal(err)
	}
	small, err := b.Resize(20, 10)
	if err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if small.Width != 20 || small.Height != 10 {
		t.Fatalf("got %dx%d, want 20x10", small.Width, small.Height)
	}
	for i, v := range small.Pix {
		if v < 199 || v > 201 {
			t.Fatalf("pixel %d = %v, want ~200", i, v)
		}
	}
	if _, err := b.Resize(0, 10); !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed for zero width, got %v", err)
	}
}

func TestPatch_NCC(t *testing.T) {
	w, h := 30, 30
	pix := make([]float32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			pix[y*w+x] = float32((x*7 + y*13) % 31)
		}
	}
	b, _ := New(w, h, pix)
	p, ok := NewPatch(b, 15, 15, 6)
	if !ok {
		t.Fatal("patch should fit")
	}
	if got := p.NCC(b, 15, 15); math.Abs(got-1) > 1e-9 {
		t.Errorf("self correlation = %v, want 1", got)
	}
	if got := p.NCC(b, 2, 15); got != -1 {
		t.Errorf("window off the image should give -1, got %v", got)
	}

	flat, _ := New(w, h, make([]float32, w*h))
	fp, _ := NewPatch(flat, 15, 15, 6)
	if fp.StdDev() != 0 {
		t.Errorf("flat patch stddev = %v", fp.StdDev())
	}
	if got := fp.NCC(b, 15, 15); got != -1 {
		t.Errorf("flat template should give -1, got %v", got)
	}
	if got := p.NCC(flat, 15, 15); got != -1 {
		t.Errorf("flat window should give -1, got %v", got)
	}
	if _, ok := NewPatch(b, 3, 3, 6); ok {
		t.Error("patch crossing the border should be rejected")
	}
}
