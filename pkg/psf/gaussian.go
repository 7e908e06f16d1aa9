package psf

import (
	"math"

	"github.com/df07/go-starfield/pkg/core"
)

// Gaussian is a circular Gaussian response with a per-channel sigma in pixels.
type Gaussian struct {
	Sigma core.Spectrum
}

// NewGaussian returns a Gaussian with the same sigma on every channel
func NewGaussian(channels int, sigma float64) *Gaussian {
	return &Gaussian{Sigma: core.UniformSpectrum(channels, sigma)}
}

// Channels returns the number of channels
func (g *Gaussian) Channels() int {
	return len(g.Sigma)
}

// Evaluate implements Evaluator. A zero sigma degenerates to a delta at the origin.
func (g *Gaussian) Evaluate(dst core.Spectrum, x, y float64) {
	r2 := x*x + y*y
	for i, s := range g.Sigma {
		if s <= 0 {
			if r2 == 0 {
				dst[i] = 1
			} else {
				dst[i] = 0
			}
			continue
		}
		dst[i] = math.Exp(-r2 / (2 * s * s))
	}
}
