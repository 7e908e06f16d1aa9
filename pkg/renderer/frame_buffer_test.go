package renderer

import (
	"image"
	"math"
	"testing"

	"github.com/df07/go-starfield/pkg/core"
)

func TestNewFrameBuffer_Invalid(t *testing.T) {
	tests := []struct {
		name           string
		w, h, channels int
	}{
		{"zero width", 0, 4, 1},
		{"negative height", 4, -1, 1},
		{"no channels", 4, 4, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewFrameBuffer(tt.w, tt.h, tt.channels); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestFrameBuffer_Layers(t *testing.T) {
	fb, err := NewFrameBuffer(3, 2, 2)
	if err != nil {
		t.Fatalf("NewFrameBuffer failed: %v", err)
	}
	if fb.HasPower() || fb.HasDepth() {
		t.Fatal("New buffer should have no layers")
	}
	if fb.Power(0) != nil || fb.Depth() != nil {
		t.Error("Disabled layers should be nil")
	}

	fb.EnablePower()
	fb.EnableDepth()
	if len(fb.Power(1)) != 6 {
		t.Errorf("Expected 6 power values, got %d", len(fb.Power(1)))
	}
	for i, d := range fb.Depth() {
		if !math.IsInf(d, 1) {
			t.Errorf("depth %d should start empty, got %g", i, d)
		}
	}

	fb.Power(0)[4] = 1.5
	fb.Power(1)[4] = 2.5
	fb.SetDepth(1, 1, 7)
	fb.SetDepth(9, 9, 1) // ignored

	if got := fb.PowerAt(1, 1); got[0] != 1.5 || got[1] != 2.5 {
		t.Errorf("PowerAt(1,1) = %v", got)
	}
	if got := fb.TotalPower(); got[0] != 1.5 || got[1] != 2.5 {
		t.Errorf("TotalPower = %v", got)
	}
	if fb.Depth()[4] != 7 {
		t.Errorf("Expected depth 7, got %g", fb.Depth()[4])
	}

	// enabling again must not wipe the layer
	fb.EnablePower()
	if fb.Power(0)[4] != 1.5 {
		t.Error("EnablePower reset an existing layer")
	}

	fb.Clear()
	if !fb.TotalPower().IsZero() || !math.IsInf(fb.Depth()[4], 1) {
		t.Error("Clear should zero power and empty depth")
	}
}

func TestNewTileGrid(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		tileSize      int
		expectedCount int
	}{
		{"exact fit", 128, 64, 64, 2},
		{"partial tiles", 100, 70, 64, 4},
		{"single tile", 10, 10, 64, 1},
		{"small tiles", 10, 10, 3, 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tiles := NewTileGrid(tt.width, tt.height, tt.tileSize)
			if len(tiles) != tt.expectedCount {
				t.Fatalf("Expected %d tiles, got %d", tt.expectedCount, len(tiles))
			}

			covered := 0
			for i, tile := range tiles {
				if tile.ID != i {
					t.Errorf("tile %d has ID %d", i, tile.ID)
				}
				if !tile.Bounds.In(image.Rect(0, 0, tt.width, tt.height)) {
					t.Errorf("tile %d bounds %v exceed the image", i, tile.Bounds)
				}
				covered += tile.Bounds.Dx() * tile.Bounds.Dy()
			}
			if covered != tt.width*tt.height {
				t.Errorf("Tiles cover %d pixels, expected %d", covered, tt.width*tt.height)
			}
		})
	}
}

func TestTile_Expanded(t *testing.T) {
	frame := image.Rect(0, 0, 100, 80)
	tiles := NewTileGrid(100, 80, 32)

	if got := tiles[0].Expanded(4, frame); got != image.Rect(0, 0, 36, 36) {
		t.Errorf("corner tile: got %v", got)
	}
	if got := tiles[1].Expanded(4, frame); got != image.Rect(28, 0, 68, 36) {
		t.Errorf("edge tile: got %v", got)
	}
	last := tiles[len(tiles)-1]
	if got := last.Expanded(4, frame); got != image.Rect(92, 60, 100, 80) {
		t.Errorf("last tile: got %v", got)
	}
}

type fixedEstimator map[float64]int

func (f fixedEstimator) Radius(irradiance float64) int { return f[irradiance] }

func TestRenderList(t *testing.T) {
	list := NewRenderList(2, 0)
	if err := list.Add(core.NewVec3(0, 0, 1), 5, core.Spectrum{1, 4}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := list.Add(core.NewVec3(1, 0, 1), math.Inf(1), core.Spectrum{3, 2}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := list.Add(core.NewVec3(1, 0, 1), 1, core.Spectrum{3}); err == nil {
		t.Error("Expected channel count error")
	}

	if list.Len() != 2 {
		t.Fatalf("Expected 2 items, got %d", list.Len())
	}
	irr := list.Irradiance(1)
	if irr[0] != 3 || irr[1] != 2 || len(irr) != 2 || cap(irr) != 2 {
		t.Errorf("Unexpected irradiance view %v (cap %d)", irr, cap(irr))
	}

	list.AssignRadii(fixedEstimator{4: 2, 3: 1}, 5)
	if list.Item(0).EffectiveRadius != 2 || list.Item(1).EffectiveRadius != 1 {
		t.Errorf("Radii from estimator: got %d and %d", list.Item(0).EffectiveRadius, list.Item(1).EffectiveRadius)
	}

	list.AssignRadii(nil, 5)
	if list.Item(0).EffectiveRadius != 5 || list.Item(1).EffectiveRadius != 5 {
		t.Error("Nil estimator should assign the full radius")
	}

	list.Reset()
	if list.Len() != 0 {
		t.Errorf("Expected empty list after Reset, got %d", list.Len())
	}
}
