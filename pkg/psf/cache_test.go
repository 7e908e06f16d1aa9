package psf

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"

	"github.com/df07/go-starfield/pkg/core"
)

// testBuildConfig keeps the intermediate table small so tests stay fast.
func testBuildConfig() BuildConfig {
	cfg := DefaultBuildConfig()
	cfg.MinLUTResolution = 256
	return cfg
}

func buildTestCache(t *testing.T, radius, banks int, eval Evaluator) *Cache {
	t.Helper()
	c, err := NewCache(radius, banks, testBuildConfig())
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	if err := c.Build(context.Background(), eval); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return c
}

func TestNewCache_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		radius int
		banks  int
		modify func(*BuildConfig)
	}{
		{"negative radius", -1, 4, nil},
		{"zero banks", 3, 0, nil},
		{"low LUT quality", 3, 4, func(c *BuildConfig) { c.LUTQuality = 16 }},
		{"low sub-samples", 3, 4, func(c *BuildConfig) { c.SubSamples = 4 }},
		{"tiny LUT", 3, 4, func(c *BuildConfig) { c.MinLUTResolution = 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultBuildConfig()
			if tt.modify != nil {
				tt.modify(&cfg)
			}
			_, err := NewCache(tt.radius, tt.banks, cfg)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestCache_LUTResolution(t *testing.T) {
	tests := []struct {
		radius   int
		expected int
	}{
		{0, 2048},
		{15, 2048},
		{16, 2112},
		{64, 8256},
	}

	for _, tt := range tests {
		c, err := NewCache(tt.radius, 4, DefaultBuildConfig())
		if err != nil {
			t.Fatalf("NewCache failed: %v", err)
		}
		if got := c.LUTResolution(); got != tt.expected {
			t.Errorf("radius %d: expected LUT resolution %d, got %d", tt.radius, tt.expected, got)
		}
	}
}

func TestCache_NotBuilt(t *testing.T) {
	c, err := NewCache(2, 4, testBuildConfig())
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}

	if _, err := c.Kernel(0.3, 0.3); !errors.Is(err, ErrCacheNotBuilt) {
		t.Errorf("Kernel: expected ErrCacheNotBuilt, got %v", err)
	}
	if _, err := c.OnAxis(); !errors.Is(err, ErrCacheNotBuilt) {
		t.Errorf("OnAxis: expected ErrCacheNotBuilt, got %v", err)
	}
	if err := c.Save(&bytes.Buffer{}); !errors.Is(err, ErrCacheNotBuilt) {
		t.Errorf("Save: expected ErrCacheNotBuilt, got %v", err)
	}
}

func TestCache_BuildTwice(t *testing.T) {
	c := buildTestCache(t, 1, 2, NewGaussian(1, 0.8))
	if err := c.Build(context.Background(), NewGaussian(1, 0.8)); !errors.Is(err, ErrCacheBuilt) {
		t.Errorf("Expected ErrCacheBuilt on second build, got %v", err)
	}
}

func TestCache_BuildCancelled(t *testing.T) {
	c, err := NewCache(2, 2, testBuildConfig())
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.Build(ctx, NewGaussian(1, 1)); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if c.IsBuilt() {
		t.Error("Cancelled build should leave the cache unbuilt")
	}
}

func TestCache_EnergyConservation(t *testing.T) {
	evals := []struct {
		name string
		eval Evaluator
	}{
		{"gaussian", &Gaussian{Sigma: core.Spectrum{0.7, 1.0, 1.4}}},
		{"airy", mustAiry(t)},
	}

	for _, tt := range evals {
		t.Run(tt.name, func(t *testing.T) {
			c := buildTestCache(t, 3, 4, tt.eval)
			for by := 0; by < c.Banks(); by++ {
				for bx := 0; bx < c.Banks(); bx++ {
					k, err := c.Bank(bx, by)
					if err != nil {
						t.Fatalf("Bank(%d,%d) failed: %v", bx, by, err)
					}
					for ch, s := range k.Sum() {
						if math.Abs(s-1) > 1e-4 {
							t.Errorf("bank (%d,%d) channel %d: energy %g, expected 1", bx, by, ch, s)
						}
					}
				}
			}
		})
	}
}

func TestCache_ZeroEnergyChannel(t *testing.T) {
	eval := FuncEvaluator(2, func(dst core.Spectrum, x, y float64) {
		dst[0] = math.Exp(-(x*x + y*y) / 2)
		dst[1] = 0
	})
	c := buildTestCache(t, 2, 2, eval)

	k, err := c.OnAxis()
	if err != nil {
		t.Fatalf("OnAxis failed: %v", err)
	}
	sum := k.Sum()
	if math.Abs(sum[0]-1) > 1e-4 {
		t.Errorf("Expected channel 0 to be normalised, got %g", sum[0])
	}
	for i, v := range k.Plane(1) {
		if v != 0 {
			t.Fatalf("Zero-energy channel cell %d = %g, expected exactly 0", i, v)
		}
	}
}

func TestCache_BankSelection(t *testing.T) {
	c := buildTestCache(t, 1, 16, NewGaussian(1, 0.6))

	bank := func(bx, by int) *Kernel {
		k, err := c.Bank(bx, by)
		if err != nil {
			t.Fatalf("Bank(%d,%d) failed: %v", bx, by, err)
		}
		return k
	}

	tests := []struct {
		name   string
		u, v   float64
		bx, by int
	}{
		{"origin", 0, 0, 0, 0},
		{"just below one", 0.999999, 0.999999, 15, 15},
		{"one minus epsilon", math.Nextafter(1, 0), math.Nextafter(1, 0), 15, 15},
		{"exactly one clamps", 1, 1, 15, 15},
		{"negative clamps", -0.2, 0, 0, 0},
		{"bank boundary", 0.5, 0.25, 8, 4},
		{"just below boundary", 0.4999, 0.2499, 7, 3},
		{"NaN clamps", math.NaN(), 0.1, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, err := c.Kernel(tt.u, tt.v)
			if err != nil {
				t.Fatalf("Kernel failed: %v", err)
			}
			if k != bank(tt.bx, tt.by) {
				t.Errorf("Kernel(%g,%g) did not return bank (%d,%d)", tt.u, tt.v, tt.bx, tt.by)
			}
		})
	}

	if _, err := c.Bank(16, 0); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected out-of-range bank to fail, got %v", err)
	}
}

func TestCache_OnAxisSymmetry(t *testing.T) {
	c := buildTestCache(t, 3, 4, NewGaussian(1, 1.0))
	k, err := c.OnAxis()
	if err != nil {
		t.Fatalf("OnAxis failed: %v", err)
	}

	R := k.Radius()
	centre := k.At(R, R)[0]
	for y := 0; y < k.Size(); y++ {
		for x := 0; x < k.Size(); x++ {
			if (x != R || y != R) && k.At(x, y)[0] >= centre {
				t.Errorf("cell (%d,%d) is not below the centre value", x, y)
			}
		}
	}

	pairs := [][4]int{
		{R - 1, R, R + 1, R},
		{R, R - 2, R, R + 2},
		{R - 1, R - 1, R + 1, R + 1},
		{R - 2, R, R, R - 2},
	}
	for _, p := range pairs {
		a, b := k.At(p[0], p[1])[0], k.At(p[2], p[3])[0]
		if math.Abs(a-b) > 1e-3 {
			t.Errorf("cells (%d,%d)=%g and (%d,%d)=%g should match", p[0], p[1], a, p[2], p[3], b)
		}
	}
}

func TestCache_PhaseShiftsCentroid(t *testing.T) {
	c := buildTestCache(t, 4, 4, NewGaussian(1, 1.0))

	tests := []struct {
		bx, by int
		dx, dy float64
	}{
		{0, 0, 0, 0},
		{2, 0, 0.5, 0},
		{0, 1, 0, 0.25},
		{3, 3, 0.75, 0.75},
	}

	for _, tt := range tests {
		k, err := c.Bank(tt.bx, tt.by)
		if err != nil {
			t.Fatalf("Bank failed: %v", err)
		}
		var cx, cy float64
		plane := k.Plane(0)
		for y := 0; y < k.Size(); y++ {
			for x := 0; x < k.Size(); x++ {
				w := plane[y*k.Size()+x]
				cx += w * float64(x-k.Radius())
				cy += w * float64(y-k.Radius())
			}
		}
		if math.Abs(cx-tt.dx) > 0.01 || math.Abs(cy-tt.dy) > 0.01 {
			t.Errorf("bank (%d,%d): centroid (%.4f,%.4f), expected (%.2f,%.2f)", tt.bx, tt.by, cx, cy, tt.dx, tt.dy)
		}
	}
}

func TestCache_Deterministic(t *testing.T) {
	a := buildTestCache(t, 2, 2, NewGaussian(2, 0.9))
	b := buildTestCache(t, 2, 2, NewGaussian(2, 0.9))

	for i := range a.kernels {
		for ch := range a.kernels[i].planes {
			pa, pb := a.kernels[i].planes[ch], b.kernels[i].planes[ch]
			for j := range pa {
				if pa[j] != pb[j] {
					t.Fatalf("kernel %d channel %d cell %d differs between builds", i, ch, j)
				}
			}
		}
	}
}

func TestCache_SaveLoad(t *testing.T) {
	c := buildTestCache(t, 2, 3, &Gaussian{Sigma: core.Spectrum{0.8, 1.2}})
	c.SetFingerprint("f/4 5um rgb")

	var buf bytes.Buffer
	if err := c.Save(&buf); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadCache(&buf)
	if err != nil {
		t.Fatalf("LoadCache failed: %v", err)
	}
	if !loaded.IsBuilt() {
		t.Fatal("Loaded cache should be built")
	}
	if loaded.Radius() != c.Radius() || loaded.Banks() != c.Banks() || loaded.Channels() != c.Channels() {
		t.Fatalf("Dimensions differ: got r=%d b=%d c=%d", loaded.Radius(), loaded.Banks(), loaded.Channels())
	}
	if loaded.Fingerprint() != "f/4 5um rgb" {
		t.Errorf("Fingerprint = %q, want %q", loaded.Fingerprint(), "f/4 5um rgb")
	}
	if loaded.LUTResolution() != c.LUTResolution() {
		t.Errorf("LUTResolution = %d, want %d", loaded.LUTResolution(), c.LUTResolution())
	}
	if got, want := loaded.BuildConfig(), c.BuildConfig(); got.LUTQuality != want.LUTQuality ||
		got.SubSamples != want.SubSamples || got.MinLUTResolution != want.MinLUTResolution {
		t.Errorf("BuildConfig = %+v, want %+v", got, want)
	}

	for i := range c.kernels {
		for ch := range c.kernels[i].planes {
			want, got := c.kernels[i].planes[ch], loaded.kernels[i].planes[ch]
			for j := range want {
				if want[j] != got[j] {
					t.Fatalf("kernel %d channel %d cell %d: got %g, want %g", i, ch, j, got[j], want[j])
				}
			}
		}
	}
}

func TestLoadCache_Invalid(t *testing.T) {
	if _, err := LoadCache(bytes.NewReader([]byte("definitely not a cache"))); err == nil {
		t.Error("Expected error for garbage input")
	}

	c := buildTestCache(t, 1, 2, NewGaussian(1, 1))
	var buf bytes.Buffer
	if err := c.Save(&buf); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	truncated := buf.Bytes()[:buf.Len()/2]
	if _, err := LoadCache(bytes.NewReader(truncated)); err == nil {
		t.Error("Expected error for truncated input")
	}
}

func mustAiry(t *testing.T) *AiryDisk {
	t.Helper()
	// f/4 with 5µm pixels puts the first dark ring near one pixel out
	a, err := NewAiryDisk(0.1, 0.025, 5e-6, 5e-6, core.RGBBins())
	if err != nil {
		t.Fatalf("NewAiryDisk failed: %v", err)
	}
	return a
}
