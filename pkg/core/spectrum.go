package core

import (
	"gonum.org/v1/gonum/floats"
)

// Spectrum is a per-channel spectral value. Its length is the channel count of
// the spectral bin set in use; all spectra combined in one operation must have
// the same length.
type Spectrum []float64

// NewSpectrum returns a zero spectrum with n channels
func NewSpectrum(n int) Spectrum {
	return make(Spectrum, n)
}

// UniformSpectrum returns a spectrum with every channel set to value
func UniformSpectrum(n int, value float64) Spectrum {
	s := make(Spectrum, n)
	for i := range s {
		s[i] = value
	}
	return s
}

// Channels returns the number of channels
func (s Spectrum) Channels() int {
	return len(s)
}

// Clone returns an independent copy
func (s Spectrum) Clone() Spectrum {
	out := make(Spectrum, len(s))
	copy(out, s)
	return out
}

// Add returns the element-wise sum
func (s Spectrum) Add(other Spectrum) Spectrum {
	return floats.AddTo(make(Spectrum, len(s)), s, other)
}

// AddInPlace accumulates other into s
func (s Spectrum) AddInPlace(other Spectrum) {
	floats.Add(s, other)
}

// Scale returns the spectrum multiplied by a scalar
func (s Spectrum) Scale(c float64) Spectrum {
	return floats.ScaleTo(make(Spectrum, len(s)), c, s)
}

// Mul returns the element-wise product
func (s Spectrum) Mul(other Spectrum) Spectrum {
	return floats.MulTo(make(Spectrum, len(s)), s, other)
}

// Max returns the maximum channel value, or 0 for an empty spectrum
func (s Spectrum) Max() float64 {
	if len(s) == 0 {
		return 0
	}
	return floats.Max(s)
}

// Sum returns the total over all channels
func (s Spectrum) Sum() float64 {
	return floats.Sum(s)
}

// IsZero reports whether every channel is exactly zero
func (s Spectrum) IsZero() bool {
	for _, v := range s {
		if v != 0 {
			return false
		}
	}
	return true
}
