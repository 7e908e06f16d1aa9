package imageio

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/df07/go-starfield/pkg/camera"
	"github.com/df07/go-starfield/pkg/renderer"
)

// ToneMapConfig controls preview rendering of linear power
type ToneMapConfig struct {
	WhitePercentile float64 // fraction of lit pixels below white, in (0, 1]
	Gamma           float64
}

// DefaultToneMapConfig keeps the brightest 0.1% of lit pixels saturated
func DefaultToneMapConfig() ToneMapConfig {
	return ToneMapConfig{WhitePercentile: 0.999, Gamma: 2.2}
}

// Preview tone-maps fb into an 8-bit image. Three-channel buffers map to RGB;
// any other channel count is shown as the grey sum.
func Preview(fb *renderer.FrameBuffer, config ToneMapConfig) (*image.RGBA, error) {
	if !fb.HasPower() {
		return nil, errors.New("frame buffer has no power layer")
	}
	if !(config.WhitePercentile > 0 && config.WhitePercentile <= 1) || !(config.Gamma > 0) {
		return nil, fmt.Errorf("invalid tone map %+v", config)
	}

	width, height := fb.Width(), fb.Height()
	rgb := fb.Channels() == 3
	pixel := func(i int) (r, g, b float64) {
		if rgb {
			return fb.Power(0)[i], fb.Power(1)[i], fb.Power(2)[i]
		}
		var sum float64
		for c := range fb.Channels() {
			sum += fb.Power(c)[i]
		}
		return sum, sum, sum
	}

	var lit []float64
	for i := range width * height {
		r, g, b := pixel(i)
		if m := math.Max(r, math.Max(g, b)); m > 0 {
			lit = append(lit, m)
		}
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	if len(lit) == 0 {
		for i := 3; i < len(img.Pix); i += 4 {
			img.Pix[i] = 255
		}
		return img, nil
	}
	sort.Float64s(lit)
	white := stat.Quantile(config.WhitePercentile, stat.Empirical, lit, nil)

	invGamma := 1 / config.Gamma
	toByte := func(v float64) uint8 {
		v = math.Pow(math.Max(v/white, 0), invGamma)
		return uint8(255*math.Min(v, 1) + 0.5)
	}
	for y := range height {
		for x := range width {
			r, g, b := pixel(y*width + x)
			img.SetRGBA(x, y, color.RGBA{R: toByte(r), G: toByte(g), B: toByte(b), A: 255})
		}
	}
	return img, nil
}

// SensorImage converts digital counts to a 16-bit grey image scaled to the
// full ADC range.
func SensorImage(s *camera.SensorImage) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, s.Width, s.Height))
	shift := 16 - s.BitDepth
	for y := range s.Height {
		for x := range s.Width {
			img.SetGray16(x, y, color.Gray16{Y: s.Counts[y*s.Width+x] << shift})
		}
	}
	return img
}

// SavePNG writes img to filename
func SavePNG(filename string, img image.Image) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create PNG file: %w", err)
	}
	if err := png.Encode(file, img); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode PNG: %w", err)
	}
	return file.Close()
}
