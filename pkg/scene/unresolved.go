package scene

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/df07/go-starfield/pkg/core"
)

// EmitterIrradiance is the irradiance of an isotropic source of the given
// power at distance d. A zero distance yields zero.
func EmitterIrradiance(power core.Spectrum, d float64) core.Spectrum {
	if d <= 0 {
		return core.NewSpectrum(len(power))
	}
	return power.Scale(1 / (4 * math.Pi * d * d))
}

// phaseAngle returns the sun-body-observer angle
func phaseAngle(body, sun, observer core.Vec3) float64 {
	toSun := sun.Subtract(body).Normalize()
	toObs := observer.Subtract(body).Normalize()
	return math.Acos(math.Max(-1, math.Min(1, toSun.Dot(toObs))))
}

// LambertPhase is the normalised phase function of a Lambertian sphere
func LambertPhase(alpha float64) float64 {
	return (math.Sin(alpha) + (math.Pi-alpha)*math.Cos(alpha)) / math.Pi
}

// Irradiance at observer from the sunlit sphere. The geometric albedo of a
// Lambertian sphere is 2/3 of its Bond albedo.
func (ls LambertianSphere) Irradiance(sun Sun, observer core.Vec3) core.Spectrum {
	rs := ls.Position.Subtract(sun.Position).Length()
	d := ls.Position.Subtract(observer).Length()
	if rs == 0 || d == 0 {
		return core.NewSpectrum(len(sun.Power))
	}

	incident := EmitterIrradiance(sun.Power, rs)
	alpha := phaseAngle(ls.Position, sun.Position, observer)
	scale := (2.0 / 3.0) * ls.Radius * ls.Radius / (d * d) * LambertPhase(alpha)
	return incident.Mul(ls.Albedo).Scale(scale)
}

// HGPhase is the two-parameter IAU phase function
func HGPhase(alpha, g float64) float64 {
	t := math.Tan(alpha / 2)
	phi1 := math.Exp(-3.33 * math.Pow(t, 0.63))
	phi2 := math.Exp(-1.87 * math.Pow(t, 1.22))
	return (1-g)*phi1 + g*phi2
}

// ApparentMagnitude of the asteroid as seen from observer
func (a Asteroid) ApparentMagnitude(sun Sun, observer core.Vec3) float64 {
	r := a.Position.Subtract(sun.Position).Length() / AstronomicalUnit
	delta := a.Position.Subtract(observer).Length() / AstronomicalUnit
	alpha := phaseAngle(a.Position, sun.Position, observer)
	phase := HGPhase(alpha, a.G)
	if r == 0 || delta == 0 || phase <= 0 {
		return math.Inf(1)
	}
	return a.H + 5*math.Log10(r*delta) - 2.5*math.Log10(phase)
}

// Irradiance distributes the asteroid's magnitude over the sun's spectrum
// weighted by its reflectance.
func (a Asteroid) Irradiance(sun Sun, observer core.Vec3) core.Spectrum {
	shape := sun.Power.Clone()
	if a.Albedo != nil {
		shape = shape.Mul(a.Albedo)
	}
	total := shape.Sum()
	if total <= 0 {
		return core.NewSpectrum(len(sun.Power))
	}
	floats.Scale(core.MagnitudeToIrradiance(a.ApparentMagnitude(sun, observer))/total, shape)
	return shape
}
