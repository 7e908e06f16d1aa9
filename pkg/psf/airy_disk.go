package psf

import (
	"fmt"
	"math"

	"github.com/df07/go-starfield/pkg/core"
)

// AiryDisk is the diffraction pattern of an unobstructed circular aperture,
// I(r) = (2·J1(a)/a)² with a = π·r / (λ·N), evaluated at each bin's center
// wavelength. N is the f-number and r the physical distance on the focal plane.
type AiryDisk struct {
	fNumber     float64
	pitchX      float64
	pitchY      float64
	wavelengths []float64
}

// NewAiryDisk creates an Airy response. Lengths are in metres; pitch is the
// physical size of one output pixel along each axis.
func NewAiryDisk(focalLength, apertureDiameter, pitchX, pitchY float64, bins core.SpectralBins) (*AiryDisk, error) {
	if focalLength <= 0 || apertureDiameter <= 0 {
		return nil, fmt.Errorf("%w: focal length and aperture diameter must be positive", ErrInvalidConfig)
	}
	if pitchX <= 0 || pitchY <= 0 {
		return nil, fmt.Errorf("%w: pixel pitch must be positive", ErrInvalidConfig)
	}
	if len(bins) == 0 {
		return nil, fmt.Errorf("%w: at least one spectral bin is required", ErrInvalidConfig)
	}

	return &AiryDisk{
		fNumber:     focalLength / apertureDiameter,
		pitchX:      pitchX,
		pitchY:      pitchY,
		wavelengths: bins.CenterWavelengths(),
	}, nil
}

// Channels returns the number of spectral bins
func (a *AiryDisk) Channels() int {
	return len(a.wavelengths)
}

// FNumber returns the focal ratio
func (a *AiryDisk) FNumber() float64 {
	return a.fNumber
}

// Evaluate implements Evaluator
func (a *AiryDisk) Evaluate(dst core.Spectrum, x, y float64) {
	r := math.Hypot(x*a.pitchX, y*a.pitchY)

	// on axis the limit of 2·J1(a)/a is 1
	if r < 1e-20 {
		for i := range a.wavelengths {
			dst[i] = 1
		}
		return
	}

	for i, lambda := range a.wavelengths {
		if lambda <= 0 {
			dst[i] = 0
			continue
		}
		arg := math.Pi * r / (lambda * a.fNumber)
		v := 2 * math.J1(arg) / arg
		dst[i] = v * v
	}
}
