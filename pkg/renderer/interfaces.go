// Package renderer composites point sources into spectral frame buffers.
package renderer

import (
	"seehuhn.de/go/geom/vec"

	"github.com/df07/go-starfield/pkg/core"
	"github.com/df07/go-starfield/pkg/psf"
)

// Camera is everything the compositor needs from an optical model.
// Implementations must be safe for concurrent use once rendering starts.
type Camera interface {
	// Project maps a camera-frame position or direction to continuous pixel
	// coordinates (pixel centres on integers). ok is false when the point has
	// no image, e.g. it lies behind the camera.
	Project(p core.Vec3) (pixel vec.Vec2, ok bool)

	// ProjectedApertureArea is the collecting area seen from p, in m².
	ProjectedApertureArea(p core.Vec3) float64

	HasKernel() bool
	KernelRadius() int

	// KernelForPhase returns the kernel for fractional pixel offsets in [0, 1).
	KernelForPhase(fx, fy float64) (*psf.Kernel, error)
}

// RadiusEstimator picks an effective kernel radius from a source's
// maximum-channel irradiance.
type RadiusEstimator interface {
	Radius(irradiance float64) int
}
