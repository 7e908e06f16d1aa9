// Package camera models a pinhole camera with a circular aperture and the
// sensor that reads out the composited power.
package camera

import (
	"context"
	"errors"
	"fmt"
	"math"

	"seehuhn.de/go/geom/vec"

	"github.com/df07/go-starfield/pkg/core"
	"github.com/df07/go-starfield/pkg/psf"
)

// ErrNoKernel is returned when a kernel is requested from a camera without a PSF cache.
var ErrNoKernel = errors.New("camera: no PSF kernel cache configured")

// Config describes the optics and detector geometry. Lengths are in metres.
type Config struct {
	Width       int     // Detector width in pixels
	Height      int     // Detector height in pixels
	FocalLength float64 // Effective focal length
	PixelPitchX float64 // Pixel pitch along rows
	PixelPitchY float64 // Pixel pitch along columns
	FNumber     float64 // Focal ratio; aperture diameter = FocalLength / FNumber
}

// DefaultConfig returns a small wide-field star camera
func DefaultConfig() Config {
	return Config{
		Width:       512,
		Height:      512,
		FocalLength: 0.05,
		PixelPitchX: 5.5e-6,
		PixelPitchY: 5.5e-6,
		FNumber:     2.8,
	}
}

// Camera is a pinhole camera looking along +Z with +X right and +Y down.
// It satisfies renderer.Camera.
type Camera struct {
	config       Config
	fx, fy       float64 // focal length in pixels
	cx, cy       float64 // principal point
	apertureArea float64

	cache *psf.Cache
}

// New creates a camera from config
func New(config Config) (*Camera, error) {
	if config.Width <= 0 || config.Height <= 0 {
		return nil, fmt.Errorf("camera: invalid resolution %dx%d", config.Width, config.Height)
	}
	if config.FocalLength <= 0 || config.FNumber <= 0 {
		return nil, fmt.Errorf("camera: focal length and f-number must be positive")
	}
	if config.PixelPitchX <= 0 || config.PixelPitchY <= 0 {
		return nil, fmt.Errorf("camera: pixel pitch must be positive")
	}

	d := config.FocalLength / config.FNumber
	return &Camera{
		config:       config,
		fx:           config.FocalLength / config.PixelPitchX,
		fy:           config.FocalLength / config.PixelPitchY,
		cx:           float64(config.Width-1) / 2,
		cy:           float64(config.Height-1) / 2,
		apertureArea: math.Pi * d * d / 4,
	}, nil
}

func (c *Camera) Config() Config { return c.config }
func (c *Camera) Width() int     { return c.config.Width }
func (c *Camera) Height() int    { return c.config.Height }

// ApertureDiameter returns the entrance pupil diameter
func (c *Camera) ApertureDiameter() float64 {
	return c.config.FocalLength / c.config.FNumber
}

// ApertureArea returns the on-axis collecting area
func (c *Camera) ApertureArea() float64 { return c.apertureArea }

// Project maps a camera-frame point or direction onto the detector.
// Points at or behind the pupil plane and non-finite input have no image.
func (c *Camera) Project(p core.Vec3) (vec.Vec2, bool) {
	if !p.IsFinite() || p.Z <= 0 {
		return vec.Vec2{}, false
	}
	px := vec.Vec2{
		X: c.fx*p.X/p.Z + c.cx,
		Y: c.fy*p.Y/p.Z + c.cy,
	}
	if math.IsInf(px.X, 0) || math.IsInf(px.Y, 0) {
		return vec.Vec2{}, false
	}
	return px, true
}

// ProjectedApertureArea is the aperture area foreshortened by the angle
// between p and the boresight.
func (c *Camera) ProjectedApertureArea(p core.Vec3) float64 {
	l := p.Length()
	if l == 0 || p.Z <= 0 {
		return 0
	}
	return c.apertureArea * p.Z / l
}

// AiryDisk returns the diffraction response of this camera's optics
func (c *Camera) AiryDisk(bins core.SpectralBins) (*psf.AiryDisk, error) {
	return psf.NewAiryDisk(c.config.FocalLength, c.ApertureDiameter(),
		c.config.PixelPitchX, c.config.PixelPitchY, bins)
}

// UseAperturePSF builds a kernel cache from the camera's own diffraction
// pattern and attaches it.
func (c *Camera) UseAperturePSF(ctx context.Context, radius, banks int, bins core.SpectralBins, config psf.BuildConfig) error {
	airy, err := c.AiryDisk(bins)
	if err != nil {
		return err
	}
	cache, err := psf.NewCache(radius, banks, config)
	if err != nil {
		return err
	}
	if err := cache.Build(ctx, airy); err != nil {
		return err
	}
	return c.SetKernelCache(cache)
}

// SetKernelCache attaches a built cache; nil detaches it.
func (c *Camera) SetKernelCache(cache *psf.Cache) error {
	if cache != nil && !cache.IsBuilt() {
		return psf.ErrCacheNotBuilt
	}
	c.cache = cache
	return nil
}

// KernelCache returns the attached cache, or nil
func (c *Camera) KernelCache() *psf.Cache { return c.cache }

func (c *Camera) HasKernel() bool { return c.cache != nil }

func (c *Camera) KernelRadius() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.Radius()
}

func (c *Camera) KernelForPhase(fx, fy float64) (*psf.Kernel, error) {
	if c.cache == nil {
		return nil, ErrNoKernel
	}
	return c.cache.Kernel(fx, fy)
}

// ConversionFactors returns aperture_area/photon_energy per bin
func (c *Camera) ConversionFactors(bins core.SpectralBins) core.Spectrum {
	return core.ConversionFactors(c.apertureArea, bins)
}

// RadiusEstimator builds a radius table from the on-axis kernel for a
// visibility threshold in photons per second.
func (c *Camera) RadiusEstimator(bins core.SpectralBins, threshold float64, minRadius int) (*psf.RadiusEstimator, error) {
	if c.cache == nil {
		return nil, ErrNoKernel
	}
	onAxis, err := c.cache.OnAxis()
	if err != nil {
		return nil, err
	}
	return psf.NewRadiusEstimator(onAxis, c.ConversionFactors(bins), threshold, minRadius)
}
