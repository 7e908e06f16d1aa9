package psf

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/df07/go-starfield/pkg/core"
)

// Kernel is a square (2R+1)² grid of spectral weights stored one plane per
// channel, row-major. Cell (R, R) is the anchor pixel of the source.
// Kernels handed out by a Cache are shared and must be treated as read-only.
type Kernel struct {
	radius int
	size   int
	planes [][]float64
}

func newKernel(radius, channels int) *Kernel {
	size := 2*radius + 1
	planes := make([][]float64, channels)
	for c := range planes {
		planes[c] = make([]float64, size*size)
	}
	return &Kernel{radius: radius, size: size, planes: planes}
}

// NewKernelFromPlanes wraps explicit per-channel weights. Every plane must hold
// (2·radius+1)² values. The planes are used as given, not copied or normalised.
func NewKernelFromPlanes(radius int, planes [][]float64) (*Kernel, error) {
	if radius < 0 {
		return nil, fmt.Errorf("%w: negative kernel radius %d", ErrInvalidConfig, radius)
	}
	if len(planes) == 0 {
		return nil, fmt.Errorf("%w: kernel needs at least one channel", ErrInvalidConfig)
	}
	size := 2*radius + 1
	for c, p := range planes {
		if len(p) != size*size {
			return nil, fmt.Errorf("%w: channel %d has %d cells, want %d", ErrInvalidConfig, c, len(p), size*size)
		}
	}
	return &Kernel{radius: radius, size: size, planes: planes}, nil
}

// Radius returns R
func (k *Kernel) Radius() int { return k.radius }

// Size returns the side length 2R+1
func (k *Kernel) Size() int { return k.size }

// Channels returns the number of spectral channels
func (k *Kernel) Channels() int { return len(k.planes) }

// Plane returns channel c's weights, row-major with stride Size().
func (k *Kernel) Plane(c int) []float64 { return k.planes[c] }

// At returns the weights of cell (x, y), both in [0, Size()).
func (k *Kernel) At(x, y int) core.Spectrum {
	out := core.NewSpectrum(len(k.planes))
	idx := y*k.size + x
	for c, p := range k.planes {
		out[c] = p[idx]
	}
	return out
}

// Sum returns the total weight per channel
func (k *Kernel) Sum() core.Spectrum {
	out := core.NewSpectrum(len(k.planes))
	for c, p := range k.planes {
		out[c] = floats.Sum(p)
	}
	return out
}

// Window returns the index range of the centred (2e+1)² sub-window for an
// effective radius e, clamped to the kernel: cells [offset, offset+size) on
// both axes.
func (k *Kernel) Window(effectiveRadius int) (offset, size int) {
	e := min(max(effectiveRadius, 0), k.radius)
	return k.radius - e, 2*e + 1
}

// normalize scales every channel with nonzero energy to unit sum; channels
// with zero energy stay zero.
func (k *Kernel) normalize(energy []float64) {
	for c, p := range k.planes {
		if energy[c] == 0 {
			continue
		}
		inv := 1 / energy[c]
		if !math.IsInf(inv, 0) {
			floats.Scale(inv, p)
			continue
		}
		// subnormal energy: divide directly so no cell becomes Inf
		for i := range p {
			p[i] /= energy[c]
		}
	}
}
