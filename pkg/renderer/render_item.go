package renderer

import (
	"fmt"

	"github.com/df07/go-starfield/pkg/core"
)

// RenderItem is one point source prepared for compositing. It holds no
// pointers; its irradiance lives in the owning RenderList's slab.
type RenderItem struct {
	Position        core.Vec3 // camera-frame position, or direction for sources at infinity
	Depth           float64   // distance used for occlusion; +Inf at infinity
	EffectiveRadius int

	irradiance int // offset into RenderList.irradiance
}

// RenderList is a flat batch of render items sharing one contiguous
// irradiance slab of Len()·Channels() values.
type RenderList struct {
	channels   int
	items      []RenderItem
	irradiance []float64
}

// NewRenderList creates an empty list for the given channel count
func NewRenderList(channels, capacity int) *RenderList {
	return &RenderList{
		channels:   channels,
		items:      make([]RenderItem, 0, capacity),
		irradiance: make([]float64, 0, capacity*channels),
	}
}

// Add appends a source, copying its irradiance. The effective radius starts at 0.
func (rl *RenderList) Add(position core.Vec3, depth float64, irradiance core.Spectrum) error {
	if len(irradiance) != rl.channels {
		return fmt.Errorf("irradiance has %d channels, list expects %d", len(irradiance), rl.channels)
	}
	rl.items = append(rl.items, RenderItem{
		Position:   position,
		Depth:      depth,
		irradiance: len(rl.irradiance),
	})
	rl.irradiance = append(rl.irradiance, irradiance...)
	return nil
}

func (rl *RenderList) Len() int      { return len(rl.items) }
func (rl *RenderList) Channels() int { return rl.channels }

// Item returns item i by value
func (rl *RenderList) Item(i int) RenderItem { return rl.items[i] }

// Items exposes the backing slice; callers may adjust effective radii in place.
func (rl *RenderList) Items() []RenderItem { return rl.items }

// Irradiance returns item i's irradiance as a view into the slab.
func (rl *RenderList) Irradiance(i int) core.Spectrum {
	off := rl.items[i].irradiance
	return core.Spectrum(rl.irradiance[off : off+rl.channels : off+rl.channels])
}

// AssignRadii sets every item's effective radius once, before tiling.
// A nil estimator gives every item the full radius.
func (rl *RenderList) AssignRadii(estimator RadiusEstimator, fullRadius int) {
	for i := range rl.items {
		if estimator == nil {
			rl.items[i].EffectiveRadius = fullRadius
			continue
		}
		rl.items[i].EffectiveRadius = estimator.Radius(rl.Irradiance(i).Max())
	}
}

// Reset empties the list while keeping its storage
func (rl *RenderList) Reset() {
	rl.items = rl.items[:0]
	rl.irradiance = rl.irradiance[:0]
}
