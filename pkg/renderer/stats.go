package renderer

import "time"

// RenderStats contains statistics about one compositing call
type RenderStats struct {
	Items       int           // Items in the render list
	Dropped     int           // Items with no valid in-frame projection
	Occluded    int           // Items hidden behind closer depth
	Splatted    int           // Items that reached the buffer
	Tiles       int           // Tiles in the grid
	ActiveTiles int           // Tiles with at least one binned item
	Duration    time.Duration // Wall time of the call
}

// tileStats are counted by one tile task and summed after the barrier
type tileStats struct {
	occluded int
	splatted int
}

func (s *RenderStats) add(t tileStats) {
	s.Occluded += t.occluded
	s.Splatted += t.splatted
}
