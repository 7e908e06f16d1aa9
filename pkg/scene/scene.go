// Package scene holds the unresolved bodies of a star field and resolves
// them into render lists for a given observer pose.
package scene

import (
	"errors"
	"fmt"
	"math"

	"github.com/df07/go-starfield/pkg/core"
	"github.com/df07/go-starfield/pkg/renderer"
)

// AstronomicalUnit in metres
const AstronomicalUnit = 1.495978707e11

// ErrNoSun is returned when reflecting bodies are viewed without a light source.
var ErrNoSun = errors.New("scene: reflecting bodies need a sun")

// Star is a source at infinity
type Star struct {
	Direction  core.Vec3     // unit vector in the world frame
	Irradiance core.Spectrum // W/m² per channel at the observer
}

// Emitter is an isotropic point light at a finite distance
type Emitter struct {
	Position core.Vec3
	Power    core.Spectrum // W per channel, radiated into 4π sr
}

// Sun illuminates reflecting bodies
type Sun struct {
	Position core.Vec3
	Power    core.Spectrum // W per channel, radiated into 4π sr
}

// LambertianSphere is an unresolved diffuse sphere lit by the sun
type LambertianSphere struct {
	Position core.Vec3
	Radius   float64
	Albedo   core.Spectrum // Bond albedo per channel
}

// Asteroid is an unresolved body described by the IAU H-G magnitude system
type Asteroid struct {
	Position core.Vec3
	H        float64       // absolute magnitude
	G        float64       // slope parameter
	Albedo   core.Spectrum // relative spectral reflectance; nil means grey
}

// Scene is a flat collection of unresolved bodies in one world frame
// (metres; +Z towards the celestial north pole, +X towards RA 0).
type Scene struct {
	Bins      core.SpectralBins
	Stars     []Star
	Emitters  []Emitter
	Spheres   []LambertianSphere
	Asteroids []Asteroid
	Sun       *Sun
}

// New creates an empty scene for the given spectral bins
func New(bins core.SpectralBins) *Scene {
	return &Scene{Bins: bins}
}

// Channels returns the spectral channel count
func (s *Scene) Channels() int { return len(s.Bins) }

// Len returns the number of bodies a view will produce
func (s *Scene) Len() int {
	return len(s.Stars) + len(s.Emitters) + len(s.Spheres) + len(s.Asteroids)
}

// View resets list and fills it with every body seen from observer, in
// camera coordinates. Irradiances are evaluated at the observer's position.
func (s *Scene) View(observer core.Frame, list *renderer.RenderList) error {
	if list.Channels() != s.Channels() {
		return fmt.Errorf("scene has %d channels, render list has %d", s.Channels(), list.Channels())
	}
	if s.Sun == nil && (len(s.Spheres) > 0 || len(s.Asteroids) > 0) {
		return ErrNoSun
	}
	list.Reset()

	for i, star := range s.Stars {
		if err := list.Add(observer.ToLocalDirection(star.Direction), math.Inf(1), star.Irradiance); err != nil {
			return fmt.Errorf("star %d: %w", i, err)
		}
	}

	for i, e := range s.Emitters {
		local := observer.ToLocalPoint(e.Position)
		irr := EmitterIrradiance(e.Power, local.Length())
		if err := list.Add(local, local.Length(), irr); err != nil {
			return fmt.Errorf("emitter %d: %w", i, err)
		}
	}

	for i, sp := range s.Spheres {
		local := observer.ToLocalPoint(sp.Position)
		irr := sp.Irradiance(*s.Sun, observer.Origin)
		if err := list.Add(local, local.Length(), irr); err != nil {
			return fmt.Errorf("sphere %d: %w", i, err)
		}
	}

	for i, a := range s.Asteroids {
		local := observer.ToLocalPoint(a.Position)
		irr := a.Irradiance(*s.Sun, observer.Origin)
		if err := list.Add(local, local.Length(), irr); err != nil {
			return fmt.Errorf("asteroid %d: %w", i, err)
		}
	}
	return nil
}
