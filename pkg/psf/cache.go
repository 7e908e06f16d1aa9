package psf

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/df07/go-starfield/pkg/core"
)

var (
	// ErrCacheNotBuilt is returned when kernels are requested before Build.
	ErrCacheNotBuilt = errors.New("psf: kernel cache has not been built")
	// ErrCacheBuilt is returned when Build is called on a finished cache.
	ErrCacheBuilt = errors.New("psf: kernel cache is already built")
	// ErrInvalidConfig reports unusable cache or evaluator parameters.
	ErrInvalidConfig = errors.New("psf: invalid configuration")
)

const (
	// MinLUTQuality is the smallest accepted LUT cells-per-kernel-pixel factor.
	MinLUTQuality = 64
	// MinSubSamples is the smallest accepted integration grid per kernel cell axis.
	MinSubSamples = 16
	// DefaultLUTResolution is the lower bound on LUT cells along each axis.
	DefaultLUTResolution = 2048
)

// BuildConfig controls the two-stage cache construction
type BuildConfig struct {
	LUTQuality       int // LUT cells per kernel pixel along each axis (K)
	SubSamples       int // jittered samples per kernel cell along each axis (S)
	MinLUTResolution int // lower bound on LUT cells along each axis
	NumWorkers       int // parallel workers (0 = use CPU count)
	Logger           core.Logger
}

// DefaultBuildConfig returns the standard quality settings
func DefaultBuildConfig() BuildConfig {
	return BuildConfig{
		LUTQuality:       MinLUTQuality,
		SubSamples:       MinSubSamples,
		MinLUTResolution: DefaultLUTResolution,
		NumWorkers:       0,
	}
}

// Validate checks the quality settings
func (bc BuildConfig) Validate() error {
	if bc.LUTQuality < MinLUTQuality {
		return fmt.Errorf("%w: LUT quality %d is below %d", ErrInvalidConfig, bc.LUTQuality, MinLUTQuality)
	}
	if bc.SubSamples < MinSubSamples {
		return fmt.Errorf("%w: sub-samples %d is below %d", ErrInvalidConfig, bc.SubSamples, MinSubSamples)
	}
	if bc.MinLUTResolution < 2 {
		return fmt.Errorf("%w: LUT resolution must be at least 2", ErrInvalidConfig)
	}
	return nil
}

// Cache is a polyphase bank of B×B kernels of radius R, one per sub-pixel
// phase. It is built once and is read-only afterwards, so a built cache may be
// shared by any number of concurrent renders.
type Cache struct {
	radius int
	banks  int
	config BuildConfig

	buildMu sync.Mutex
	built   atomic.Bool

	channels    int
	kernels     []*Kernel // banks*banks, index by*banks+bx
	fingerprint string
}

// NewCache creates an unbuilt cache for kernels of the given radius and bank count.
func NewCache(radius, banks int, config BuildConfig) (*Cache, error) {
	if radius < 0 {
		return nil, fmt.Errorf("%w: kernel radius must be non-negative, got %d", ErrInvalidConfig, radius)
	}
	if banks <= 0 {
		return nil, fmt.Errorf("%w: bank count must be positive, got %d", ErrInvalidConfig, banks)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Logger == nil {
		config.Logger = core.NopLogger{}
	}

	return &Cache{
		radius: radius,
		banks:  banks,
		config: config,
	}, nil
}

// Radius returns the full kernel radius R
func (c *Cache) Radius() int { return c.radius }

// Banks returns the number of phase banks B per axis
func (c *Cache) Banks() int { return c.banks }

// Channels returns the spectral channel count of the built kernels
func (c *Cache) Channels() int { return c.channels }

// Fingerprint identifies the optics the kernels were built for. It is empty
// unless SetFingerprint was called, and survives Save and LoadCache.
func (c *Cache) Fingerprint() string { return c.fingerprint }

// SetFingerprint records the optics the kernels were built for. Call it before
// the cache is shared.
func (c *Cache) SetFingerprint(fingerprint string) { c.fingerprint = fingerprint }

// BuildConfig returns the quality settings the cache was built with
func (c *Cache) BuildConfig() BuildConfig { return c.config }

// IsBuilt reports whether Build has completed
func (c *Cache) IsBuilt() bool { return c.built.Load() }

// LUTResolution returns the intermediate table size along each axis
func (c *Cache) LUTResolution() int {
	return max(c.config.MinLUTResolution, (2*c.radius+1)*c.config.LUTQuality)
}

// Build samples eval into an intermediate table and integrates every phase
// bank from it. The table fill and the bank integration are separate parallel
// phases; the second starts only after the first has finished.
func (c *Cache) Build(ctx context.Context, eval Evaluator) error {
	if eval == nil {
		return fmt.Errorf("%w: nil evaluator", ErrInvalidConfig)
	}
	channels := eval.Channels()
	if channels <= 0 {
		return fmt.Errorf("%w: evaluator reports %d channels", ErrInvalidConfig, channels)
	}

	c.buildMu.Lock()
	defer c.buildMu.Unlock()
	if c.built.Load() {
		return ErrCacheBuilt
	}

	start := time.Now()
	res := c.LUTResolution()
	lut := newResponseLUT(res, float64(c.radius+1), channels)
	if err := lut.fill(ctx, eval, c.config.NumWorkers); err != nil {
		return fmt.Errorf("filling response table: %w", err)
	}
	c.config.Logger.Printf("PSF table %dx%d filled in %v\n", res, res, time.Since(start))

	kernels := make([]*Kernel, c.banks*c.banks)
	err := core.ParallelFor(ctx, len(kernels), c.config.NumWorkers, func(ctx context.Context, i int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		kernels[i] = c.integrateBank(lut, i%c.banks, i/c.banks, channels)
		return nil
	})
	if err != nil {
		return fmt.Errorf("integrating phase banks: %w", err)
	}

	c.channels = channels
	c.kernels = kernels
	c.built.Store(true)

	c.config.Logger.Printf("PSF cache built: radius %d, %dx%d banks, %d channels in %v\n",
		c.radius, c.banks, c.banks, channels, time.Since(start))
	return nil
}

// integrateBank averages S×S jittered LUT samples over each kernel cell for
// the phase (bx/B, by/B) and normalises the result to unit energy per channel.
func (c *Cache) integrateBank(lut *responseLUT, bx, by, channels int) *Kernel {
	k := newKernel(c.radius, channels)
	energy := make([]float64, channels)
	acc := make([]float64, channels)

	s := c.config.SubSamples
	invS := 1 / float64(s)
	invSamples := 1 / float64(s*s)
	phaseX := float64(bx) / float64(c.banks)
	phaseY := float64(by) / float64(c.banks)

	// deterministic per-bank jitter so rebuilding yields identical kernels
	sampler := core.NewSeededSampler(int64(by*c.banks + bx))

	for y := 0; y < k.size; y++ {
		// lower edge of the cell footprint relative to the source
		cellY := float64(y-c.radius) - phaseY - 0.5
		for x := 0; x < k.size; x++ {
			cellX := float64(x-c.radius) - phaseX - 0.5

			for i := range acc {
				acc[i] = 0
			}
			for sy := 0; sy < s; sy++ {
				for sx := 0; sx < s; sx++ {
					j := sampler.Get2D()
					lut.accumulate(cellX+(float64(sx)+j.X)*invS, cellY+(float64(sy)+j.Y)*invS, acc)
				}
			}

			idx := y*k.size + x
			for ch, v := range acc {
				v *= invSamples
				k.planes[ch][idx] = v
				energy[ch] += v
			}
		}
	}

	k.normalize(energy)
	return k
}

// bankIndex maps a fractional position in [0, 1) to the nearest-lower bank.
func (c *Cache) bankIndex(f float64) int {
	if !(f > 0) {
		return 0
	}
	if f >= 1 {
		return c.banks - 1
	}
	b := int(math.Floor(f * float64(c.banks)))
	return min(max(b, 0), c.banks-1)
}

// Kernel returns the kernel for the sub-pixel phase (u, v), u and v in [0, 1).
// Phases are quantised to the bank below them; no interpolation between banks
// is done. The returned kernel is shared and must not be modified.
func (c *Cache) Kernel(u, v float64) (*Kernel, error) {
	if !c.built.Load() {
		return nil, ErrCacheNotBuilt
	}
	return c.kernels[c.bankIndex(v)*c.banks+c.bankIndex(u)], nil
}

// Bank returns the kernel of bank (bx, by).
func (c *Cache) Bank(bx, by int) (*Kernel, error) {
	if !c.built.Load() {
		return nil, ErrCacheNotBuilt
	}
	if bx < 0 || bx >= c.banks || by < 0 || by >= c.banks {
		return nil, fmt.Errorf("%w: bank (%d,%d) outside %dx%d", ErrInvalidConfig, bx, by, c.banks, c.banks)
	}
	return c.kernels[by*c.banks+bx], nil
}

// OnAxis returns bank (0,0), the kernel of a source centred on a pixel.
func (c *Cache) OnAxis() (*Kernel, error) {
	return c.Bank(0, 0)
}
