package camera

import (
	"math"
	"testing"

	"github.com/df07/go-starfield/pkg/core"
	"github.com/df07/go-starfield/pkg/renderer"
)

func powerBuffer(t *testing.T, w, h int, fill func(x, y int) core.Spectrum) *renderer.FrameBuffer {
	t.Helper()
	fb, err := renderer.NewFrameBuffer(w, h, 1)
	if err != nil {
		t.Fatalf("NewFrameBuffer failed: %v", err)
	}
	fb.EnablePower()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			fb.Power(0)[y*w+x] = fill(x, y)[0]
		}
	}
	return fb
}

func TestSensorConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*SensorConfig)
	}{
		{"zero exposure", func(c *SensorConfig) { c.Exposure = 0 }},
		{"QE above one", func(c *SensorConfig) { c.QuantumEfficiency = 1.2 }},
		{"negative read noise", func(c *SensorConfig) { c.ReadNoise = -1 }},
		{"zero gain", func(c *SensorConfig) { c.Gain = 0 }},
		{"17 bits", func(c *SensorConfig) { c.BitDepth = 17 }},
	}
	if err := DefaultSensorConfig().Validate(); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultSensorConfig()
			tt.modify(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestSensor_NoiseFreeReadout(t *testing.T) {
	bins := core.SpectralBins{core.NewBin(500, 600)}
	cfg := SensorConfig{
		Exposure:          2,
		QuantumEfficiency: 0.5,
		DarkCurrent:       10,
		FullWell:          1e6,
		Gain:              4,
		Bias:              50,
		BitDepth:          16,
		NoiseFree:         true,
	}
	sensor, err := NewSensor(cfg, bins)
	if err != nil {
		t.Fatalf("NewSensor failed: %v", err)
	}

	// power giving exactly 1000 photons per second
	e := core.PhotonEnergy(550e-9)
	fb := powerBuffer(t, 2, 1, func(x, y int) core.Spectrum {
		return core.Spectrum{float64(x) * 1000 * e}
	})

	img, err := sensor.Readout(fb)
	if err != nil {
		t.Fatalf("Readout failed: %v", err)
	}

	// dark only: 10 e/s · 2 s = 20 e → 20/4 + 50 = 55 DN
	if math.Abs(img.Electrons[0]-20) > 1e-9 || img.Counts[0] != 55 {
		t.Errorf("dark pixel: got %g e, %d DN", img.Electrons[0], img.Counts[0])
	}
	// 1000 photons/s · 2 s · 0.5 + 20 = 1020 e → 255 + 50 = 305 DN
	if math.Abs(img.Electrons[1]-1020) > 1e-6 || img.Counts[1] != 305 {
		t.Errorf("lit pixel: got %g e, %d DN", img.Electrons[1], img.Counts[1])
	}
}

func TestSensor_Saturation(t *testing.T) {
	bins := core.SpectralBins{core.NewBin(500, 600)}
	cfg := DefaultSensorConfig()
	cfg.NoiseFree = true
	cfg.FullWell = 1000
	cfg.Gain = 0.01 // 1000 e would be 100000 DN
	sensor, err := NewSensor(cfg, bins)
	if err != nil {
		t.Fatalf("NewSensor failed: %v", err)
	}

	fb := powerBuffer(t, 1, 1, func(x, y int) core.Spectrum { return core.Spectrum{1} })
	img, err := sensor.Readout(fb)
	if err != nil {
		t.Fatalf("Readout failed: %v", err)
	}
	if img.Electrons[0] != 1000 {
		t.Errorf("Expected full-well clamp at 1000 e, got %g", img.Electrons[0])
	}
	if img.Counts[0] != img.MaxCount() || img.MaxCount() != 4095 {
		t.Errorf("Expected ADC clamp at 4095, got %d (max %d)", img.Counts[0], img.MaxCount())
	}
}

func TestSensor_ShotNoiseStatistics(t *testing.T) {
	bins := core.SpectralBins{core.NewBin(500, 600)}
	cfg := SensorConfig{
		Exposure:          1,
		QuantumEfficiency: 1,
		DarkCurrent:       400,
		FullWell:          1e6,
		Gain:              1,
		BitDepth:          16,
		Seed:              7,
	}
	sensor, err := NewSensor(cfg, bins)
	if err != nil {
		t.Fatalf("NewSensor failed: %v", err)
	}

	fb := powerBuffer(t, 100, 100, func(x, y int) core.Spectrum { return core.Spectrum{0} })
	img, err := sensor.Readout(fb)
	if err != nil {
		t.Fatalf("Readout failed: %v", err)
	}

	var sum, sumSq float64
	for _, e := range img.Electrons {
		sum += e
		sumSq += e * e
	}
	n := float64(len(img.Electrons))
	mean := sum / n
	variance := sumSq/n - mean*mean

	// Poisson: variance equals the mean
	if math.Abs(mean-400) > 2 {
		t.Errorf("Expected mean near 400, got %g", mean)
	}
	if math.Abs(variance-400) > 40 {
		t.Errorf("Expected variance near 400, got %g", variance)
	}

	again, err := sensor.Readout(fb)
	if err != nil {
		t.Fatalf("Readout failed: %v", err)
	}
	for i := range img.Counts {
		if img.Counts[i] != again.Counts[i] {
			t.Fatalf("Readout with the same seed differs at pixel %d", i)
		}
	}
}

func TestSensor_ChannelMismatch(t *testing.T) {
	sensor, err := NewSensor(DefaultSensorConfig(), core.RGBBins())
	if err != nil {
		t.Fatalf("NewSensor failed: %v", err)
	}
	fb := powerBuffer(t, 1, 1, func(x, y int) core.Spectrum { return core.Spectrum{1} })
	if _, err := sensor.Readout(fb); err == nil {
		t.Error("Expected channel mismatch error")
	}

	noPower, err := renderer.NewFrameBuffer(1, 1, 3)
	if err != nil {
		t.Fatalf("NewFrameBuffer failed: %v", err)
	}
	if _, err := sensor.Readout(noPower); err == nil {
		t.Error("Expected error for a buffer without power")
	}
}
