package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/df07/go-starfield/pkg/camera"
	"github.com/df07/go-starfield/pkg/core"
	"github.com/df07/go-starfield/pkg/loaders"
	"github.com/df07/go-starfield/pkg/psf"
	"github.com/df07/go-starfield/pkg/renderer"
	"github.com/df07/go-starfield/pkg/scene"
)

func vec3(a [3]float64) core.Vec3 { return core.NewVec3(a[0], a[1], a[2]) }

// CameraConfig converts the camera section
func (c *Config) CameraConfig() camera.Config {
	return camera.Config{
		Width:       c.Camera.Width,
		Height:      c.Camera.Height,
		FocalLength: c.Camera.FocalLength,
		PixelPitchX: c.Camera.PixelPitchX,
		PixelPitchY: c.Camera.PixelPitchY,
		FNumber:     c.Camera.FNumber,
	}
}

// Bins returns the configured spectral bins
func (c *Config) Bins() (core.SpectralBins, error) {
	switch strings.ToLower(c.Spectrum.Bins) {
	case "", "rgb":
		return core.RGBBins(), nil
	case "uniform":
		return core.UniformBins(c.Spectrum.Count, c.Spectrum.MinNM, c.Spectrum.MaxNM)
	default:
		return nil, fmt.Errorf("unknown spectral bins %q", c.Spectrum.Bins)
	}
}

// BuildConfig converts the PSF section
func (c *Config) BuildConfig(logger core.Logger) psf.BuildConfig {
	bc := psf.DefaultBuildConfig()
	bc.LUTQuality = c.PSF.LUTQuality
	bc.SubSamples = c.PSF.SubSamples
	bc.MinLUTResolution = c.PSF.MinLUTRes
	bc.NumWorkers = c.Renderer.Workers
	bc.Logger = logger
	return bc
}

// CompositorConfig converts the renderer section
func (c *Config) CompositorConfig() renderer.CompositorConfig {
	return renderer.CompositorConfig{TileSize: c.Renderer.TileSize, NumWorkers: c.Renderer.Workers}
}

// SensorConfig converts the sensor section
func (c *Config) SensorConfig() camera.SensorConfig {
	s := c.Sensor
	return camera.SensorConfig{
		Exposure:          s.Exposure,
		QuantumEfficiency: s.QuantumEfficiency,
		DarkCurrent:       s.DarkCurrent,
		ReadNoise:         s.ReadNoise,
		FullWell:          s.FullWell,
		Gain:              s.Gain,
		Bias:              s.Bias,
		BitDepth:          s.BitDepth,
		Seed:              s.Seed,
		NoiseFree:         s.NoiseFree,
	}
}

// Observer returns the pose of the first frame
func (c *Config) Observer() core.Frame {
	o := c.Scene.Observer
	return core.NewLookAtFrame(vec3(o.Position), vec3(o.LookAt), vec3(o.Up))
}

// BuildScene assembles the catalog, random field and emitters
func (c *Config) BuildScene(bins core.SpectralBins, logger core.Logger) (*scene.Scene, error) {
	if logger == nil {
		logger = core.NopLogger{}
	}
	s := scene.New(bins)

	if c.Scene.Catalog != "" {
		entries, err := loaders.LoadStarCatalog(c.Scene.Catalog)
		if err != nil {
			return nil, err
		}
		n := s.AddCatalog(entries, c.Scene.MaxMagnitude)
		logger.Printf("Loaded %d of %d catalog stars from %s\n", n, len(entries), c.Scene.Catalog)
	}

	if c.Scene.RandomField != nil {
		if err := s.AddRandomField(*c.Scene.RandomField); err != nil {
			return nil, err
		}
	}

	for _, e := range c.Scene.Emitters {
		s.Emitters = append(s.Emitters, scene.Emitter{
			Position: vec3(e.Position),
			Power:    core.BlackBody(e.Temperature, bins, 32).Scale(e.Power),
		})
	}
	return s, nil
}

// BuildSlew wraps s in the configured observer motion, loading the occluder
// mask when one is configured.
func (c *Config) BuildSlew(s *scene.Scene) (*scene.Slew, error) {
	const deg = math.Pi / 180
	rate := c.Scene.Slew.Rate
	slew := &scene.Slew{
		Scene: s,
		Start: c.Observer(),
		Rate:  core.NewVec3(rate[0]*deg, rate[1]*deg, rate[2]*deg),
		Count: c.Scene.Slew.Frames,
	}

	if o := c.Scene.Occluder; o != nil {
		mask, err := loaders.LoadOccluderMask(o.Mask, o.Threshold)
		if err != nil {
			return nil, err
		}
		slew.Occluder = &scene.Occluder{Mask: mask, Depth: o.Depth}
	}
	return slew, nil
}
