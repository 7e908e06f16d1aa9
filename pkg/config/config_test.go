package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/df07/go-starfield/pkg/core"
)

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config is invalid: %v", err)
	}
	bins, err := cfg.Bins()
	if err != nil || len(bins) != 3 {
		t.Errorf("Expected RGB bins, got %v (%v)", bins, err)
	}
}

func TestParse(t *testing.T) {
	data := []byte(`
camera:
  width: 256
  height: 128
spectrum:
  bins: uniform
  count: 8
  min_nm: 400
  max_nm: 800
psf:
  radius: 4
  banks: 4
  cache_file: psf.zst
sensor:
  noise_free: true
scene:
  random_field: null
  emitters:
    - position: [0, 0, 100]
      power: 10
      temperature: 3000
  slew:
    frames: 5
    rate: [0, 0.5, 0]
output:
  dir: out
  half: true
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Camera.Width != 256 || cfg.Camera.Height != 128 {
		t.Errorf("camera = %+v", cfg.Camera)
	}
	// untouched keys keep their defaults
	if cfg.Camera.FocalLength != Default().Camera.FocalLength {
		t.Errorf("focal length = %g, expected the default", cfg.Camera.FocalLength)
	}
	if cfg.PSF.Radius != 4 || cfg.PSF.CacheFile != "psf.zst" || !cfg.PSF.Enabled {
		t.Errorf("psf = %+v", cfg.PSF)
	}
	if !cfg.Sensor.NoiseFree || !cfg.SensorConfig().NoiseFree {
		t.Error("Expected a noise-free sensor")
	}
	if cfg.Scene.RandomField != nil {
		t.Error("Expected the random field to be disabled")
	}
	if cfg.Output.Dir != "out" || !cfg.Output.Half || !cfg.Output.EXR {
		t.Errorf("output = %+v", cfg.Output)
	}

	bins, err := cfg.Bins()
	if err != nil || len(bins) != 8 {
		t.Fatalf("Expected 8 bins, got %d (%v)", len(bins), err)
	}

	s, err := cfg.BuildScene(bins, nil)
	if err != nil {
		t.Fatalf("BuildScene failed: %v", err)
	}
	if len(s.Stars) != 0 || len(s.Emitters) != 1 {
		t.Fatalf("Expected one emitter and no stars, got %d/%d", len(s.Emitters), len(s.Stars))
	}
	if got := s.Emitters[0].Power.Sum(); math.Abs(got-10) > 1e-9 {
		t.Errorf("emitter power = %g, want 10", got)
	}

	slew, err := cfg.BuildSlew(s)
	if err != nil {
		t.Fatalf("BuildSlew failed: %v", err)
	}
	if slew.Frames() != 5 || math.Abs(slew.Rate.Y-0.5*math.Pi/180) > 1e-15 {
		t.Errorf("slew = %d frames at %v", slew.Frames(), slew.Rate)
	}
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse of empty input failed: %v", err)
	}
	if cfg.Camera != Default().Camera {
		t.Error("Expected defaults for empty input")
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		invalid bool // validation failure rather than a YAML error
	}{
		{"unknown key", "camera:\n  widht: 10\n", false},
		{"malformed", "camera: [", false},
		{"zero width", "camera:\n  width: 0\n", true},
		{"bad bins", "spectrum:\n  bins: cmyk\n", true},
		{"low lut quality", "psf:\n  lut_quality: 8\n", true},
		{"negative threshold", "radius:\n  threshold: -1\n", true},
		{"zero tile", "renderer:\n  tile_size: 0\n", true},
		{"bad sensor", "sensor:\n  quantum_efficiency: 2\n", true},
		{"bad field", "scene:\n  random_field:\n    count: -5\n", true},
		{"cold emitter", "scene:\n  emitters:\n    - power: 1\n", true},
		{"no frames", "scene:\n  slew:\n    frames: 0\n", true},
		{"degenerate observer", "scene:\n  observer:\n    look_at: [0, 0, 0]\n", true},
		{"occluder without depth", "scene:\n  occluder:\n    mask: m.png\n", true},
		{"no output dir", "output:\n  dir: \"\"\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if err == nil {
				t.Fatal("Expected error")
			}
			if tt.invalid != errors.Is(err, ErrInvalid) {
				t.Errorf("errors.Is(err, ErrInvalid) = %v for %v", !tt.invalid, err)
			}
		})
	}
}

func TestPSFDisabled_SkipsValidation(t *testing.T) {
	if _, err := Parse([]byte("psf:\n  enabled: false\n  lut_quality: 1\n")); err != nil {
		t.Errorf("Disabled PSF should not be validated: %v", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "render.yaml")

	cfg := Default()
	cfg.Camera.Width = 64
	data, err := cfg.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Camera.Width != 64 {
		t.Errorf("width = %d, want 64", loaded.Camera.Width)
	}
	if loaded.Scene.RandomField == nil || *loaded.Scene.RandomField != *cfg.Scene.RandomField {
		t.Error("random field did not survive the round trip")
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestBuildScene_Catalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stars.csv")
	if err := os.WriteFile(path, []byte("# ra dec bt vt\n10 20 5.2 5.0\n30 40 - 12\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := Default()
	cfg.Scene.Catalog = path
	cfg.Scene.RandomField = nil
	s, err := cfg.BuildScene(core.RGBBins(), core.NopLogger{})
	if err != nil {
		t.Fatalf("BuildScene failed: %v", err)
	}
	if len(s.Stars) != 1 {
		t.Errorf("Expected the magnitude cut to keep 1 star, got %d", len(s.Stars))
	}

	cfg.Scene.Catalog = filepath.Join(dir, "missing.csv")
	if _, err := cfg.BuildScene(core.RGBBins(), nil); err == nil {
		t.Error("Expected error for a missing catalog")
	}
}

func TestBuildSlew_MissingMask(t *testing.T) {
	cfg := Default()
	cfg.Scene.Occluder = &OccluderConfig{Mask: filepath.Join(t.TempDir(), "none.png"), Threshold: 0.5, Depth: 2}
	s, err := cfg.BuildScene(core.RGBBins(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cfg.BuildSlew(s); err == nil {
		t.Error("Expected error for a missing mask")
	}
}
