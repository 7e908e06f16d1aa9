package psf

import (
	"errors"
	"math"
	"testing"

	"github.com/df07/go-starfield/pkg/core"
)

func floatEquals(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

func TestAiryDisk_Evaluate(t *testing.T) {
	bins := core.SpectralBins{core.NewBin(500, 600)}
	pitch := 4e-6
	airy, err := NewAiryDisk(0.2, 0.05, pitch, pitch, bins)
	if err != nil {
		t.Fatalf("NewAiryDisk failed: %v", err)
	}
	if !floatEquals(airy.FNumber(), 4, 1e-12) {
		t.Errorf("Expected f-number 4, got %g", airy.FNumber())
	}

	dst := core.NewSpectrum(1)
	airy.Evaluate(dst, 0, 0)
	if dst[0] != 1 {
		t.Errorf("On-axis response should be 1, got %g", dst[0])
	}

	// first zero of J1
	lambda := bins.CenterWavelengths()[0]
	r := 3.8317059702075125 * lambda * airy.FNumber() / math.Pi
	airy.Evaluate(dst, r/pitch, 0)
	if !floatEquals(dst[0], 0, 1e-12) {
		t.Errorf("Expected first dark ring at r=%g, got %g", r, dst[0])
	}

	// the response is radially symmetric
	a := core.NewSpectrum(1)
	b := core.NewSpectrum(1)
	airy.Evaluate(a, 0.3, 0.4)
	airy.Evaluate(b, 0.5, 0)
	if !floatEquals(a[0], b[0], 1e-12) {
		t.Errorf("Expected equal response at equal radius, got %g and %g", a[0], b[0])
	}
	if a[0] <= 0 || a[0] >= 1 {
		t.Errorf("Expected response in (0,1) inside the central lobe, got %g", a[0])
	}
}

func TestAiryDisk_LongerWavelengthIsWider(t *testing.T) {
	airy, err := NewAiryDisk(0.2, 0.05, 4e-6, 4e-6, core.RGBBins())
	if err != nil {
		t.Fatalf("NewAiryDisk failed: %v", err)
	}
	dst := core.NewSpectrum(3)
	airy.Evaluate(dst, 0.5, 0)
	// RGB bins are ordered red, green, blue
	if !(dst[0] > dst[1] && dst[1] > dst[2]) {
		t.Errorf("Expected red > green > blue at the same offset, got %v", dst)
	}
}

func TestNewAiryDisk_Invalid(t *testing.T) {
	bins := core.RGBBins()
	tests := []struct {
		name                            string
		focal, aperture, pitchX, pitchY float64
		bins                            core.SpectralBins
	}{
		{"zero focal length", 0, 0.01, 1e-6, 1e-6, bins},
		{"zero aperture", 0.1, 0, 1e-6, 1e-6, bins},
		{"zero pitch", 0.1, 0.01, 0, 1e-6, bins},
		{"no bins", 0.1, 0.01, 1e-6, 1e-6, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAiryDisk(tt.focal, tt.aperture, tt.pitchX, tt.pitchY, tt.bins)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestGaussian_Evaluate(t *testing.T) {
	g := &Gaussian{Sigma: core.Spectrum{1, 2, 0}}
	dst := core.NewSpectrum(3)

	g.Evaluate(dst, 0, 0)
	for i, v := range dst {
		if v != 1 {
			t.Errorf("channel %d: expected 1 at origin, got %g", i, v)
		}
	}

	g.Evaluate(dst, 1, 0)
	if !floatEquals(dst[0], math.Exp(-0.5), 1e-12) {
		t.Errorf("channel 0: expected %g, got %g", math.Exp(-0.5), dst[0])
	}
	if !floatEquals(dst[1], math.Exp(-0.125), 1e-12) {
		t.Errorf("channel 1: expected %g, got %g", math.Exp(-0.125), dst[1])
	}
	if dst[2] != 0 {
		t.Errorf("zero sigma should be a delta, got %g off-axis", dst[2])
	}
}

func TestFuncEvaluator(t *testing.T) {
	calls := 0
	eval := FuncEvaluator(2, func(dst core.Spectrum, x, y float64) {
		calls++
		dst[0] = x
		dst[1] = y
	})
	if eval.Channels() != 2 {
		t.Errorf("Expected 2 channels, got %d", eval.Channels())
	}
	dst := core.NewSpectrum(2)
	eval.Evaluate(dst, 3, 4)
	if calls != 1 || dst[0] != 3 || dst[1] != 4 {
		t.Errorf("Unexpected evaluation: calls=%d dst=%v", calls, dst)
	}
}

func TestKernel_Window(t *testing.T) {
	k := newKernel(4, 1)
	tests := []struct {
		effective      int
		offset, length int
	}{
		{4, 0, 9},
		{2, 2, 5},
		{0, 4, 1},
		{7, 0, 9},
		{-3, 4, 1},
	}
	for _, tt := range tests {
		off, size := k.Window(tt.effective)
		if off != tt.offset || size != tt.length {
			t.Errorf("Window(%d): got (%d,%d), want (%d,%d)", tt.effective, off, size, tt.offset, tt.length)
		}
	}
}

func TestNewKernelFromPlanes_Invalid(t *testing.T) {
	if _, err := NewKernelFromPlanes(1, [][]float64{make([]float64, 8)}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("wrong plane size: expected ErrInvalidConfig, got %v", err)
	}
	if _, err := NewKernelFromPlanes(1, nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("no planes: expected ErrInvalidConfig, got %v", err)
	}
	if _, err := NewKernelFromPlanes(-1, [][]float64{{1}}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("negative radius: expected ErrInvalidConfig, got %v", err)
	}
}
