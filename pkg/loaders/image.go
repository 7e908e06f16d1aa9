package loaders

import (
	"fmt"
	"image"
	_ "image/jpeg" // JPEG decoder
	_ "image/png"  // PNG decoder
	"os"
)

// OccluderMask marks pixels covered by a foreground body
type OccluderMask struct {
	Width   int
	Height  int
	Covered []bool
}

// LoadOccluderMask loads a PNG or JPEG image; every pixel whose luminance is
// above threshold (0..1) counts as covered.
func LoadOccluderMask(filename string, threshold float64) (*OccluderMask, error) {
	if err := validateFilePath(filename, ".png", ".jpg", ".jpeg"); err != nil {
		return nil, err
	}

	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	defer file.Close()

	// Decode image (auto-detects PNG/JPEG from file header)
	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	return NewOccluderMask(img, threshold), nil
}

// NewOccluderMask thresholds an image into a mask
func NewOccluderMask(img image.Image, threshold float64) *OccluderMask {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	covered := make([]bool, width*height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			// RGBA is alpha-premultiplied in [0, 65535]
			r, g, b, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
			lum := (0.2126*float64(r) + 0.7152*float64(g) + 0.0722*float64(b)) / 65535.0
			covered[y*width+x] = lum > threshold
		}
	}

	return &OccluderMask{
		Width:   width,
		Height:  height,
		Covered: covered,
	}
}

// Count returns the number of covered pixels
func (m *OccluderMask) Count() int {
	n := 0
	for _, c := range m.Covered {
		if c {
			n++
		}
	}
	return n
}
