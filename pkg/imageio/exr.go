// Package imageio writes rendered frames: OpenEXR for the linear power and
// depth layers, PNG for previews and sensor counts.
package imageio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/mrjoshuak/go-openexr/exr"
	"github.com/mrjoshuak/go-openexr/half"

	"github.com/df07/go-starfield/pkg/renderer"
)

// DepthChannel names the depth layer in EXR output
const DepthChannel = "Z"

// EXROptions controls EXR output
type EXROptions struct {
	Half         bool              // 16-bit channels instead of 32-bit float
	ChannelNames []string          // one per spectral channel; nil picks defaults
	Attributes   map[string]string // extra string header attributes
}

// ChannelNames returns default names for n spectral channels: R, G, B for
// three channels, otherwise S00, S01, ...
func ChannelNames(n int) []string {
	if n == 3 {
		return []string{"R", "G", "B"}
	}
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("S%02d", i)
	}
	return names
}

// WriteEXR encodes the power planes of fb, and its depth layer when present,
// as a ZIP-compressed scanline EXR.
func WriteEXR(w io.WriteSeeker, fb *renderer.FrameBuffer, opts EXROptions) error {
	if !fb.HasPower() {
		return errors.New("frame buffer has no power layer")
	}
	names := opts.ChannelNames
	if names == nil {
		names = ChannelNames(fb.Channels())
	}
	if len(names) != fb.Channels() {
		return fmt.Errorf("%d channel names for %d channels", len(names), fb.Channels())
	}

	width, height := fb.Width(), fb.Height()
	header := exr.NewScanlineHeader(width, height)
	header.SetCompression(exr.CompressionZIP)

	type layer struct {
		name  string
		half  bool
		slice exr.Slice
	}
	var layers []layer
	for c, name := range names {
		layers = append(layers, layer{name, opts.Half, newSlice(fb.Power(c), width, height, opts.Half)})
	}
	if fb.HasDepth() {
		// depth keeps full float precision
		layers = append(layers, layer{DepthChannel, false, newSlice(fb.Depth(), width, height, false)})
	}

	// channels are stored in name order
	sort.Slice(layers, func(i, j int) bool { return layers[i].name < layers[j].name })
	cl := exr.NewChannelList()
	frame := exr.NewFrameBuffer()
	for _, l := range layers {
		if l.half {
			cl.Add(exr.NewChannel(l.name, exr.PixelTypeHalf))
		} else {
			cl.Add(exr.NewChannel(l.name, exr.PixelTypeFloat))
		}
		frame.Set(l.name, l.slice)
	}
	header.SetChannels(cl)

	keys := make([]string, 0, len(opts.Attributes))
	for k := range opts.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		header.Set(&exr.Attribute{Name: k, Type: exr.AttrTypeString, Value: opts.Attributes[k]})
	}

	sw, err := exr.NewScanlineWriter(w, header)
	if err != nil {
		return fmt.Errorf("failed to create EXR writer: %w", err)
	}
	sw.SetFrameBuffer(frame)
	if err := sw.WritePixels(0, height-1); err != nil {
		return fmt.Errorf("failed to write EXR pixels: %w", err)
	}
	return sw.Close()
}

func newSlice(plane []float64, width, height int, useHalf bool) exr.Slice {
	data := make([]float32, len(plane))
	for i, v := range plane {
		data[i] = float32(v)
	}
	if !useHalf {
		return exr.NewSliceFromFloat32(data, width, height)
	}
	h := make([]half.Half, len(data))
	half.ConvertBatch32(h, data)
	return exr.NewSliceFromHalf(h, width, height)
}

// SaveEXR writes fb to filename
func SaveEXR(filename string, fb *renderer.FrameBuffer, opts EXROptions) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create EXR file: %w", err)
	}
	if err := WriteEXR(file, fb, opts); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// EXRImage is a decoded EXR file
type EXRImage struct {
	Width      int
	Height     int
	Channels   map[string][]float32 // row-major planes
	Attributes map[string]string    // string attributes
}

// ReadEXR decodes every channel of a scanline EXR as float32
func ReadEXR(r io.ReaderAt, size int64) (*EXRImage, error) {
	f, err := exr.OpenReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open EXR: %w", err)
	}
	sr, err := exr.NewScanlineReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to create EXR reader: %w", err)
	}

	dw := sr.DataWindow()
	fb, _ := exr.AllocateChannels(sr.Header().Channels(), dw)
	sr.SetFrameBuffer(fb)
	if err := sr.ReadPixels(int(dw.Min.Y), int(dw.Max.Y)); err != nil {
		return nil, fmt.Errorf("failed to read EXR pixels: %w", err)
	}

	img := &EXRImage{
		Width:      int(dw.Width()),
		Height:     int(dw.Height()),
		Channels:   make(map[string][]float32),
		Attributes: make(map[string]string),
	}
	for _, name := range fb.Names() {
		s := fb.Get(name)
		plane := make([]float32, img.Width*img.Height)
		for y := range img.Height {
			for x := range img.Width {
				plane[y*img.Width+x] = s.GetFloat32(x, y)
			}
		}
		img.Channels[name] = plane
	}
	for _, attr := range sr.Header().Attributes() {
		if attr.Type == exr.AttrTypeString {
			if v, ok := attr.Value.(string); ok {
				img.Attributes[attr.Name] = v
			}
		}
	}
	return img, nil
}
