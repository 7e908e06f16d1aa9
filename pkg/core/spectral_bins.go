package core

import "fmt"

// Bin is one spectral band; wavelengths are in nanometres.
type Bin struct {
	Min    float64
	Max    float64
	Center float64
}

// NewBin creates a bin spanning [min, max] nm
func NewBin(minNM, maxNM float64) Bin {
	return Bin{Min: minNM, Max: maxNM, Center: (minNM + maxNM) / 2}
}

// SpectralBins is the ordered set of bands every Spectrum is expressed in.
type SpectralBins []Bin

// RGBBins returns the red, green, blue bands in that channel order.
func RGBBins() SpectralBins {
	return SpectralBins{
		NewBin(600, 750),
		NewBin(500, 600),
		NewBin(380, 500),
	}
}

// UniformBins splits [minNM, maxNM] into n equally wide bands.
func UniformBins(n int, minNM, maxNM float64) (SpectralBins, error) {
	if n <= 0 {
		return nil, fmt.Errorf("bin count must be positive, got %d", n)
	}
	if maxNM <= minNM {
		return nil, fmt.Errorf("invalid wavelength range [%g, %g] nm", minNM, maxNM)
	}

	width := (maxNM - minNM) / float64(n)
	bins := make(SpectralBins, n)
	for i := range bins {
		lo := minNM + float64(i)*width
		bins[i] = NewBin(lo, lo+width)
	}
	return bins, nil
}

// Channels returns the number of bins
func (b SpectralBins) Channels() int {
	return len(b)
}

// CenterWavelengths returns each bin's center wavelength in metres.
func (b SpectralBins) CenterWavelengths() []float64 {
	out := make([]float64, len(b))
	for i, bin := range b {
		out[i] = bin.Center * 1e-9
	}
	return out
}
