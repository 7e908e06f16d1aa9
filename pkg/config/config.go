// Package config loads the YAML description of a render: optics, PSF cache,
// sensor, scene and outputs.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/df07/go-starfield/pkg/camera"
	"github.com/df07/go-starfield/pkg/psf"
	"github.com/df07/go-starfield/pkg/renderer"
	"github.com/df07/go-starfield/pkg/scene"
)

// ErrInvalid wraps every validation failure
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete render configuration
type Config struct {
	Camera   CameraConfig   `yaml:"camera"`
	Spectrum SpectrumConfig `yaml:"spectrum"`
	PSF      PSFConfig      `yaml:"psf"`
	Radius   RadiusConfig   `yaml:"radius"`
	Renderer RendererConfig `yaml:"renderer"`
	Sensor   SensorConfig   `yaml:"sensor"`
	Scene    SceneConfig    `yaml:"scene"`
	Output   OutputConfig   `yaml:"output"`
}

// CameraConfig contains optics and detector geometry, lengths in metres
type CameraConfig struct {
	Width       int     `yaml:"width"`
	Height      int     `yaml:"height"`
	FocalLength float64 `yaml:"focal_length"`
	PixelPitchX float64 `yaml:"pixel_pitch_x"`
	PixelPitchY float64 `yaml:"pixel_pitch_y"`
	FNumber     float64 `yaml:"f_number"`
}

// SpectrumConfig selects the spectral bins
type SpectrumConfig struct {
	Bins  string  `yaml:"bins"`   // rgb, uniform
	Count int     `yaml:"count"`  // uniform only
	MinNM float64 `yaml:"min_nm"` // uniform only
	MaxNM float64 `yaml:"max_nm"` // uniform only
}

// PSFConfig controls the polyphase kernel cache
type PSFConfig struct {
	Enabled    bool   `yaml:"enabled"`     // false renders single pixels
	Radius     int    `yaml:"radius"`      // kernel half-width R
	Banks      int    `yaml:"banks"`       // phase banks per axis B
	LUTQuality int    `yaml:"lut_quality"` // K
	SubSamples int    `yaml:"sub_samples"` // S
	MinLUTRes  int    `yaml:"min_lut_resolution"`
	CacheFile  string `yaml:"cache_file"`  // load if present, else build and save
}

// RadiusConfig controls per-item kernel cropping
type RadiusConfig struct {
	Threshold float64 `yaml:"threshold"`  // photons per second; 0 disables cropping
	MinRadius int     `yaml:"min_radius"`
}

// RendererConfig controls the compositor
type RendererConfig struct {
	TileSize int `yaml:"tile_size"`
	Workers  int `yaml:"workers"` // 0 = CPU count
}

// SensorConfig controls readout
type SensorConfig struct {
	Enabled           bool    `yaml:"enabled"`
	Exposure          float64 `yaml:"exposure"`
	QuantumEfficiency float64 `yaml:"quantum_efficiency"`
	DarkCurrent       float64 `yaml:"dark_current"`
	ReadNoise         float64 `yaml:"read_noise"`
	FullWell          float64 `yaml:"full_well"`
	Gain              float64 `yaml:"gain"`
	Bias              float64 `yaml:"bias"`
	BitDepth          int     `yaml:"bit_depth"`
	Seed              uint64  `yaml:"seed"`
	NoiseFree         bool    `yaml:"noise_free"`
}

// SceneConfig lists the bodies and the observer motion
type SceneConfig struct {
	Catalog      string                   `yaml:"catalog"`       // optional star catalog path
	MaxMagnitude float64                  `yaml:"max_magnitude"` // catalog cut
	RandomField  *scene.RandomFieldConfig `yaml:"random_field,omitempty"`
	Emitters     []EmitterConfig          `yaml:"emitters"`
	Observer     ObserverConfig           `yaml:"observer"`
	Slew         SlewConfig               `yaml:"slew"`
	Occluder     *OccluderConfig          `yaml:"occluder,omitempty"`
}

// EmitterConfig is a black body point source
type EmitterConfig struct {
	Position    [3]float64 `yaml:"position"`
	Power       float64    `yaml:"power"`       // watts over all bins
	Temperature float64    `yaml:"temperature"` // kelvin
}

// ObserverConfig is the first frame's pose
type ObserverConfig struct {
	Position [3]float64 `yaml:"position"`
	LookAt   [3]float64 `yaml:"look_at"`
	Up       [3]float64 `yaml:"up"`
}

// SlewConfig rotates the observer between frames
type SlewConfig struct {
	Frames int        `yaml:"frames"`
	Rate   [3]float64 `yaml:"rate"` // Euler angles per frame, degrees
}

// OccluderConfig is a camera-fixed foreground mask
type OccluderConfig struct {
	Mask      string  `yaml:"mask"`
	Threshold float64 `yaml:"threshold"`
	Depth     float64 `yaml:"depth"`
}

// OutputConfig names the products written per frame
type OutputConfig struct {
	Dir       string `yaml:"dir"`
	EXR       bool   `yaml:"exr"`
	Half      bool   `yaml:"half"` // 16-bit EXR channels
	PNG       bool   `yaml:"png"`
	SensorPNG bool   `yaml:"sensor_png"`
}

// Default returns a complete configuration rendering a random star field
func Default() *Config {
	cam := camera.DefaultConfig()
	sensor := camera.DefaultSensorConfig()
	build := psf.DefaultBuildConfig()
	field := scene.DefaultRandomFieldConfig()

	return &Config{
		Camera: CameraConfig{
			Width:       cam.Width,
			Height:      cam.Height,
			FocalLength: cam.FocalLength,
			PixelPitchX: cam.PixelPitchX,
			PixelPitchY: cam.PixelPitchY,
			FNumber:     cam.FNumber,
		},
		Spectrum: SpectrumConfig{Bins: "rgb"},
		PSF: PSFConfig{
			Enabled:    true,
			Radius:     8,
			Banks:      8,
			LUTQuality: build.LUTQuality,
			SubSamples: build.SubSamples,
			MinLUTRes:  build.MinLUTResolution,
		},
		Radius:   RadiusConfig{Threshold: 1, MinRadius: 1},
		Renderer: RendererConfig{TileSize: renderer.DefaultCompositorConfig().TileSize},
		Sensor: SensorConfig{
			Enabled:           true,
			Exposure:          sensor.Exposure,
			QuantumEfficiency: sensor.QuantumEfficiency,
			DarkCurrent:       sensor.DarkCurrent,
			ReadNoise:         sensor.ReadNoise,
			FullWell:          sensor.FullWell,
			Gain:              sensor.Gain,
			Bias:              sensor.Bias,
			BitDepth:          sensor.BitDepth,
			Seed:              sensor.Seed,
		},
		Scene: SceneConfig{
			MaxMagnitude: 8,
			RandomField:  &field,
			Observer: ObserverConfig{
				LookAt: [3]float64{1, 0, 0},
				Up:     [3]float64{0, 0, 1},
			},
			Slew: SlewConfig{Frames: 1},
		},
		Output: OutputConfig{Dir: "output", EXR: true, PNG: true},
	}
}

// Load reads and parses a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Marshal encodes the configuration as YAML
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate checks every section
func (c *Config) Validate() error {
	if _, err := camera.New(c.CameraConfig()); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := c.Bins(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.PSF.Enabled {
		if c.PSF.Radius < 0 || c.PSF.Banks < 1 {
			return fmt.Errorf("%w: psf radius %d, banks %d", ErrInvalid, c.PSF.Radius, c.PSF.Banks)
		}
		if err := c.BuildConfig(nil).Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}
	if c.Radius.Threshold < 0 || c.Radius.MinRadius < 0 {
		return fmt.Errorf("%w: radius threshold %g, min radius %d", ErrInvalid, c.Radius.Threshold, c.Radius.MinRadius)
	}
	if c.Renderer.TileSize <= 0 || c.Renderer.Workers < 0 {
		return fmt.Errorf("%w: tile size %d, workers %d", ErrInvalid, c.Renderer.TileSize, c.Renderer.Workers)
	}
	if c.Sensor.Enabled {
		if err := c.SensorConfig().Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}
	if c.Scene.RandomField != nil {
		if err := c.Scene.RandomField.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}
	for i, e := range c.Scene.Emitters {
		if e.Power < 0 || e.Temperature <= 0 {
			return fmt.Errorf("%w: emitter %d power %g, temperature %g", ErrInvalid, i, e.Power, e.Temperature)
		}
	}
	if c.Scene.Slew.Frames < 1 {
		return fmt.Errorf("%w: slew frames %d", ErrInvalid, c.Scene.Slew.Frames)
	}
	if vec3(c.Scene.Observer.LookAt).Subtract(vec3(c.Scene.Observer.Position)).LengthSquared() == 0 {
		return fmt.Errorf("%w: observer looks at its own position", ErrInvalid)
	}
	if o := c.Scene.Occluder; o != nil && (o.Mask == "" || !(o.Depth > 0)) {
		return fmt.Errorf("%w: occluder needs a mask and a positive depth", ErrInvalid)
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("%w: output dir is empty", ErrInvalid)
	}
	return nil
}
