package psf

import (
	"fmt"

	"github.com/df07/go-starfield/pkg/core"
)

// RadiusEntry records the faintest source, by maximum-channel irradiance, whose
// kernel still produces a visible contribution at Chebyshev distance Radius.
type RadiusEntry struct {
	Radius        int
	MinIrradiance float64
}

// RadiusEstimator picks a per-source kernel radius from its brightness.
// Entries are kept in ascending radius order; MinIrradiance is not assumed
// monotonic because diffraction side lobes can raise sensitivity further out.
type RadiusEstimator struct {
	entries   []RadiusEntry
	minRadius int
}

// NewRadiusEstimator scans each ring of the on-axis kernel and records, for
// every radius with nonzero sensitivity, the irradiance needed for that ring
// to reach threshold photons. conversion holds area/photon_energy per channel.
func NewRadiusEstimator(onAxis *Kernel, conversion core.Spectrum, threshold float64, minRadius int) (*RadiusEstimator, error) {
	if onAxis == nil {
		return nil, fmt.Errorf("%w: nil on-axis kernel", ErrInvalidConfig)
	}
	if len(conversion) != onAxis.Channels() {
		return nil, fmt.Errorf("%w: %d conversion factors for %d kernel channels",
			ErrInvalidConfig, len(conversion), onAxis.Channels())
	}
	if threshold < 0 {
		return nil, fmt.Errorf("%w: negative visibility threshold %g", ErrInvalidConfig, threshold)
	}

	R := onAxis.Radius()
	var entries []RadiusEntry
	for r := 1; r <= R; r++ {
		s := ringSensitivity(onAxis, conversion, r)
		if s > 0 {
			entries = append(entries, RadiusEntry{Radius: r, MinIrradiance: threshold / s})
		}
	}

	return &RadiusEstimator{
		entries:   entries,
		minRadius: min(max(minRadius, 0), R),
	}, nil
}

// ringSensitivity is the largest weight·conversion over the ring at
// Chebyshev distance r from the kernel centre, across all channels.
func ringSensitivity(k *Kernel, conversion core.Spectrum, r int) float64 {
	c := k.radius
	best := 0.0
	visit := func(x, y int) {
		idx := y*k.size + x
		for ch, p := range k.planes {
			if s := p[idx] * conversion[ch]; s > best {
				best = s
			}
		}
	}

	for x := c - r; x <= c+r; x++ {
		visit(x, c-r)
		visit(x, c+r)
	}
	// columns without the corners, already covered by the rows
	for y := c - r + 1; y <= c+r-1; y++ {
		visit(c-r, y)
		visit(c+r, y)
	}
	return best
}

// NewRadiusEstimatorFromEntries builds an estimator from an explicit table.
// Entries must be in ascending radius order.
func NewRadiusEstimatorFromEntries(entries []RadiusEntry, minRadius int) (*RadiusEstimator, error) {
	for i := 1; i < len(entries); i++ {
		if entries[i].Radius <= entries[i-1].Radius {
			return nil, fmt.Errorf("%w: radius table not ascending at index %d", ErrInvalidConfig, i)
		}
	}
	if minRadius < 0 {
		return nil, fmt.Errorf("%w: negative minimum radius %d", ErrInvalidConfig, minRadius)
	}
	return &RadiusEstimator{
		entries:   append([]RadiusEntry(nil), entries...),
		minRadius: minRadius,
	}, nil
}

// Radius returns the largest radius whose threshold is met by irradiance,
// scanning from the outermost ring inwards, or the minimum radius if none is.
func (e *RadiusEstimator) Radius(irradiance float64) int {
	for i := len(e.entries) - 1; i >= 0; i-- {
		if e.entries[i].MinIrradiance <= irradiance {
			return e.entries[i].Radius
		}
	}
	return e.minRadius
}

// Entries returns a copy of the table
func (e *RadiusEstimator) Entries() []RadiusEntry {
	return append([]RadiusEntry(nil), e.entries...)
}

// MinRadius returns the fallback radius
func (e *RadiusEstimator) MinRadius() int { return e.minRadius }
