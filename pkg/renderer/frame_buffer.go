package renderer

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/df07/go-starfield/pkg/core"
)

// FrameBuffer holds per-pixel spectral power and an optional depth layer.
// Each layer is stored row-major; power is one plane per channel.
type FrameBuffer struct {
	width    int
	height   int
	channels int

	power [][]float64
	depth []float64
}

// NewFrameBuffer creates a buffer with no layers enabled
func NewFrameBuffer(width, height, channels int) (*FrameBuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("invalid channel count %d", channels)
	}
	return &FrameBuffer{width: width, height: height, channels: channels}, nil
}

// EnablePower allocates the power accumulation layer, zeroed
func (fb *FrameBuffer) EnablePower() {
	if fb.power != nil {
		return
	}
	fb.power = make([][]float64, fb.channels)
	for c := range fb.power {
		fb.power[c] = make([]float64, fb.width*fb.height)
	}
}

// EnableDepth allocates the depth layer with every pixel at +Inf, i.e. empty
func (fb *FrameBuffer) EnableDepth() {
	if fb.depth != nil {
		return
	}
	fb.depth = make([]float64, fb.width*fb.height)
	for i := range fb.depth {
		fb.depth[i] = math.Inf(1)
	}
}

func (fb *FrameBuffer) Width() int     { return fb.width }
func (fb *FrameBuffer) Height() int    { return fb.height }
func (fb *FrameBuffer) Channels() int  { return fb.channels }
func (fb *FrameBuffer) HasPower() bool { return fb.power != nil }
func (fb *FrameBuffer) HasDepth() bool { return fb.depth != nil }

// Power returns channel c's plane, or nil when power is disabled
func (fb *FrameBuffer) Power(c int) []float64 {
	if fb.power == nil {
		return nil
	}
	return fb.power[c]
}

// Depth returns the depth plane, or nil when depth is disabled
func (fb *FrameBuffer) Depth() []float64 { return fb.depth }

// SetDepth records the distance of the nearest surface at pixel (x, y).
func (fb *FrameBuffer) SetDepth(x, y int, d float64) {
	if fb.depth == nil || x < 0 || y < 0 || x >= fb.width || y >= fb.height {
		return
	}
	fb.depth[y*fb.width+x] = d
}

// PowerAt returns the spectral power at pixel (x, y)
func (fb *FrameBuffer) PowerAt(x, y int) core.Spectrum {
	out := core.NewSpectrum(fb.channels)
	if fb.power == nil || x < 0 || y < 0 || x >= fb.width || y >= fb.height {
		return out
	}
	idx := y*fb.width + x
	for c, p := range fb.power {
		out[c] = p[idx]
	}
	return out
}

// TotalPower sums each channel over the whole frame
func (fb *FrameBuffer) TotalPower() core.Spectrum {
	out := core.NewSpectrum(fb.channels)
	for c, p := range fb.power {
		out[c] = floats.Sum(p)
	}
	return out
}

// Clear resets power to zero and depth to empty
func (fb *FrameBuffer) Clear() {
	for _, p := range fb.power {
		clear(p)
	}
	for i := range fb.depth {
		fb.depth[i] = math.Inf(1)
	}
}
