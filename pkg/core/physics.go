package core

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
)

const (
	PlanckConstant = 6.62607015e-34 // J·s
	SpeedOfLight   = 299792458.0    // m/s
	Boltzmann      = 1.380649e-23   // J/K

	// ZeroMagnitudeIrradiance is the irradiance of a magnitude 0 source (IAU 2015 B2), W/m².
	ZeroMagnitudeIrradiance = 2.518021002e-8
)

// PhotonEnergy returns the energy in joules of a photon of the given wavelength
// in metres. Non-positive wavelengths yield 0.
func PhotonEnergy(lambda float64) float64 {
	if lambda <= 0 {
		return 0
	}
	return PlanckConstant * SpeedOfLight / lambda
}

// ConversionFactors returns area/photon_energy per bin (photons per joule per
// unit irradiance). Bins with zero photon energy get a factor of 0.
func ConversionFactors(area float64, bins SpectralBins) Spectrum {
	out := NewSpectrum(len(bins))
	for i, lambda := range bins.CenterWavelengths() {
		e := PhotonEnergy(lambda)
		if e == 0 {
			continue
		}
		out[i] = area / e
	}
	return out
}

// PlanckRadiance is the black-body spectral radiance (W·sr⁻¹·m⁻³) at lambda metres.
func PlanckRadiance(temperature, lambda float64) float64 {
	if temperature <= 0 || lambda <= 0 {
		return 0
	}
	a := 2 * PlanckConstant * SpeedOfLight * SpeedOfLight / math.Pow(lambda, 5)
	x := PlanckConstant * SpeedOfLight / (lambda * Boltzmann * temperature)
	return a / math.Expm1(x)
}

// BlackBody integrates Planck's law over each bin with the trapezoidal rule
// using steps samples per bin and returns the relative distribution,
// normalised so the channels sum to 1.
func BlackBody(temperature float64, bins SpectralBins, steps int) Spectrum {
	if steps < 2 {
		steps = 2
	}
	out := NewSpectrum(len(bins))
	lambda := make([]float64, steps)
	radiance := make([]float64, steps)
	for i, bin := range bins {
		floats.Span(lambda, bin.Min*1e-9, bin.Max*1e-9)
		for j, l := range lambda {
			radiance[j] = PlanckRadiance(temperature, l)
		}
		out[i] = integrate.Trapezoidal(lambda, radiance)
	}

	total := out.Sum()
	if total > 0 {
		floats.Scale(1/total, out)
	}
	return out
}

// MagnitudeToIrradiance converts a visual magnitude to total irradiance in W/m².
func MagnitudeToIrradiance(magnitude float64) float64 {
	return ZeroMagnitudeIrradiance * math.Pow(10, -0.4*magnitude)
}

// StarIrradiance distributes the irradiance of a star of the given magnitude and
// effective temperature over the bins.
func StarIrradiance(magnitude, temperature float64, bins SpectralBins) Spectrum {
	return BlackBody(temperature, bins, 32).Scale(MagnitudeToIrradiance(magnitude))
}

// ColorIndexTemperature estimates a star's effective temperature in kelvin
// from its B-V colour index (Ballesteros 2012).
func ColorIndexTemperature(bv float64) float64 {
	return 4600 * (1/(0.92*bv+1.7) + 1/(0.92*bv+0.62))
}

// DefaultColorIndex is assumed for stars with a single photometric band.
const DefaultColorIndex = 0.3

// TychoToJohnson converts Tycho BT/VT magnitudes to Johnson V and B-V.
// Either input may be NaN; ok is false when both are.
func TychoToJohnson(bt, vt float64) (v, bv float64, ok bool) {
	hasBT, hasVT := !math.IsNaN(bt), !math.IsNaN(vt)
	switch {
	case hasBT && hasVT:
		return vt - 0.090*(bt-vt), 0.850 * (bt - vt), true
	case hasVT:
		return vt, DefaultColorIndex, true
	case hasBT:
		return bt, DefaultColorIndex, true
	default:
		return math.NaN(), math.NaN(), false
	}
}
