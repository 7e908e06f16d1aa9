package scene

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
	"seehuhn.de/go/geom/vec"

	"github.com/df07/go-starfield/pkg/core"
	"github.com/df07/go-starfield/pkg/loaders"
)

// StarDirection converts right ascension and declination in degrees to a
// unit world vector.
func StarDirection(ra, dec float64) core.Vec3 {
	a, d := ra*math.Pi/180, dec*math.Pi/180
	return core.NewVec3(math.Cos(d)*math.Cos(a), math.Cos(d)*math.Sin(a), math.Sin(d))
}

// NewStar creates a black body star of the given visual magnitude and temperature
func NewStar(ra, dec, magnitude, temperature float64, bins core.SpectralBins) Star {
	return Star{
		Direction:  StarDirection(ra, dec),
		Irradiance: core.StarIrradiance(magnitude, temperature, bins),
	}
}

// AddCatalog converts catalog entries to stars and appends those no fainter
// than maxMagnitude. Entries without any magnitude are skipped. It returns
// the number of stars added.
func (s *Scene) AddCatalog(entries []loaders.CatalogEntry, maxMagnitude float64) int {
	added := 0
	for _, e := range entries {
		v, bv, ok := core.TychoToJohnson(e.BT, e.VT)
		if !ok || v > maxMagnitude {
			continue
		}
		s.Stars = append(s.Stars, NewStar(e.RA, e.Dec, v, core.ColorIndexTemperature(bv), s.Bins))
		added++
	}
	return added
}

// RandomFieldConfig describes a synthetic star field
type RandomFieldConfig struct {
	Count            int     `yaml:"count"`
	MinMagnitude     float64 `yaml:"min_magnitude"`     // brightest
	MaxMagnitude     float64 `yaml:"max_magnitude"`     // faintest
	MeanTemperature  float64 `yaml:"mean_temperature"`  // kelvin
	TemperatureSigma float64 `yaml:"temperature_sigma"` // kelvin
	Seed             uint64  `yaml:"seed"`
}

// DefaultRandomFieldConfig returns a field resembling the naked-eye sky
func DefaultRandomFieldConfig() RandomFieldConfig {
	return RandomFieldConfig{
		Count:            5000,
		MinMagnitude:     -1,
		MaxMagnitude:     7,
		MeanTemperature:  5800,
		TemperatureSigma: 1500,
		Seed:             1,
	}
}

var errRandomField = errors.New("invalid random field")

// Validate checks the field parameters
func (c RandomFieldConfig) Validate() error {
	switch {
	case c.Count < 0:
		return fmt.Errorf("%w: count %d", errRandomField, c.Count)
	case !(c.MaxMagnitude >= c.MinMagnitude):
		return fmt.Errorf("%w: magnitude range [%g, %g]", errRandomField, c.MinMagnitude, c.MaxMagnitude)
	case !(c.MeanTemperature > 0) || c.TemperatureSigma < 0:
		return fmt.Errorf("%w: temperature %g±%g", errRandomField, c.MeanTemperature, c.TemperatureSigma)
	}
	return nil
}

// minTemperature keeps sampled temperatures physical
const minTemperature = 2000

// AddRandomField appends a deterministic random star field. Directions are
// uniform on the sphere and magnitudes follow counts growing about threefold
// per magnitude.
func (s *Scene) AddRandomField(config RandomFieldConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}

	src := rand.NewPCG(config.Seed, config.Seed^0x5851f42d4c957f2d)
	rng := rand.New(src)
	temps := distuv.Normal{Mu: config.MeanTemperature, Sigma: config.TemperatureSigma, Src: src}

	for range config.Count {
		dir := core.SampleOnUnitSphere(vec.Vec2{X: rng.Float64(), Y: rng.Float64()})

		mag := sampleMagnitude(rng.Float64(), config.MinMagnitude, config.MaxMagnitude)
		temp := math.Max(minTemperature, temps.Rand())
		s.Stars = append(s.Stars, Star{Direction: dir, Irradiance: core.StarIrradiance(mag, temp, s.Bins)})
	}
	return nil
}

// sampleMagnitude inverts the cumulative count N(<m) ∝ 10^(0.5m) on [lo, hi]
func sampleMagnitude(u, lo, hi float64) float64 {
	if hi == lo {
		return lo
	}
	const k = 0.5 * math.Ln10
	a, b := math.Exp(k*lo), math.Exp(k*hi)
	return math.Log(a+u*(b-a)) / k
}
