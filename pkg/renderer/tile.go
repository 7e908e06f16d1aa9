package renderer

import "image"

// Tile is one cell of the compositing grid
type Tile struct {
	ID     int             // Unique tile identifier, row-major
	Bounds image.Rectangle // Pixel bounds (x0,y0,x1,y1)
}

// NewTileGrid creates a grid of tiles covering the entire image
func NewTileGrid(width, height, tileSize int) []Tile {
	var tiles []Tile
	tileID := 0

	tilesX := (width + tileSize - 1) / tileSize // Ceiling division
	tilesY := (height + tileSize - 1) / tileSize

	for tileY := 0; tileY < tilesY; tileY++ {
		for tileX := 0; tileX < tilesX; tileX++ {
			x0 := tileX * tileSize
			y0 := tileY * tileSize
			x1 := min(x0+tileSize, width) // Don't exceed image bounds
			y1 := min(y0+tileSize, height)

			tiles = append(tiles, Tile{ID: tileID, Bounds: image.Rect(x0, y0, x1, y1)})
			tileID++
		}
	}

	return tiles
}

// Expanded returns the tile bounds grown by margin on every side and clipped to frame.
func (t Tile) Expanded(margin int, frame image.Rectangle) image.Rectangle {
	return t.Bounds.Inset(-margin).Intersect(frame)
}

// localBuffer is a tile's private accumulation area
type localBuffer struct {
	bounds image.Rectangle
	stride int
	planes [][]float64
}

func newLocalBuffer(bounds image.Rectangle, channels int) *localBuffer {
	n := bounds.Dx() * bounds.Dy()
	planes := make([][]float64, channels)
	for c := range planes {
		planes[c] = make([]float64, n)
	}
	return &localBuffer{bounds: bounds, stride: bounds.Dx(), planes: planes}
}

// offset returns the plane index of frame pixel (x, y), which must be inside bounds.
func (lb *localBuffer) offset(x, y int) int {
	return (y-lb.bounds.Min.Y)*lb.stride + (x - lb.bounds.Min.X)
}
